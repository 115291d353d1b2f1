package match_management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
)

func setupRouter(t *testing.T) (*chi.Mux, *Matchmaker) {
	mm, _, _ := setupMatchmaker(t)
	r := chi.NewRouter()
	r.Post("/find_match", mm.FindMatchHandler)
	r.Delete("/terminate_match", mm.TerminateMatchHandler)
	r.Post("/confirm_match/{match_id}", mm.ConfirmMatchHandler)
	r.Get("/check_connection/queue", mm.QueueConnectionHandler)
	return r, mm
}

func TestFindMatchHandlerRejectsBadBody(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/find_match", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFindMatchHandlerRejectsMissingFields(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"user_id":"alice","difficulty":"easy"}`
	req := httptest.NewRequest(http.MethodPost, "/find_match", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "required")
}

func TestFindMatchHandlerTimesOutToNoMatch(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"user_id":"alice","difficulty":"easy","category":"arrays"}`
	req := httptest.NewRequest(http.MethodPost, "/find_match", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no_match", resp["status"])
}

func TestTerminateMatchHandlerNotQueued(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"user_id":"alice","difficulty":"easy","category":"arrays"}`
	req := httptest.NewRequest(http.MethodDelete, "/terminate_match", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmMatchHandlerInvalidID(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"user_id":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/confirm_match/no-such-match", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmMatchHandlerSecondConfirmer(t *testing.T) {
	r, mm := setupRouter(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")
	mm.confirm.HSet(ctx, keys.Match("match-1"), "user_one_confirmation", 1)

	body := `{"user_id":"bob"}`
	req := httptest.NewRequest(http.MethodPost, "/confirm_match/match-1", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "match confirmed", resp["message"])

	details := resp["match_details"].(map[string]interface{})
	assert.Equal(t, "match-1", details["match_id"])
	assert.Equal(t, "alice", details["user_one"])
	assert.Equal(t, "bob", details["user_two"])
}

func TestQueueConnectionHandler(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/check_connection/queue", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis_status":"up"`)
}
