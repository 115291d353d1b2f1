package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

func TestSubmitAttempt(t *testing.T) {
	var received models.Attempt
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Submit(context.Background(), models.Attempt{
		Title:             "Two Sum",
		SubmittedSolution: "solution",
		Users:             []string{"alice", "bob"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "Two Sum", received.Title)
	assert.ElementsMatch(t, []string{"alice", "bob"}, received.Users)
}

func TestSubmitAttemptRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Submit(context.Background(), models.Attempt{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
