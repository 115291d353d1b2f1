// Package questions is the HTTP client for the question-bank service's
// pool endpoint.
package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

type Client struct {
	poolURL    string
	httpClient *http.Client
}

func NewClient(poolURL string) *Client {
	return &Client{
		poolURL:    poolURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch samples one question for the bucket from the pool endpoint.
func (c *Client) Fetch(ctx context.Context, category, difficulty string) (*models.Question, error) {
	url := fmt.Sprintf("%s/%s/%s/", c.poolURL, category, difficulty)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call question service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question service returned status %d", resp.StatusCode)
	}

	var question models.Question
	if err := json.NewDecoder(resp.Body).Decode(&question); err != nil {
		return nil, fmt.Errorf("failed to decode question response: %w", err)
	}
	return &question, nil
}
