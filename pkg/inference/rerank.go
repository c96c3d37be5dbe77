package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RerankBackend scores (query, candidate) pairs with a cross-encoder model.
type RerankBackend interface {
	Score(ctx context.Context, model, query string, candidates []string) ([]float32, error)
}

// HTTPRerankClient calls a local inference server's /rerank endpoint.
type HTTPRerankClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRerankClient constructs a client against baseURL.
func NewHTTPRerankClient(baseURL string, client *http.Client) *HTTPRerankClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRerankClient{baseURL: baseURL, client: client}
}

type rerankRequest struct {
	Model      string   `json:"model"`
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type rerankResponse struct {
	Scores []float32 `json:"scores"`
}

// Score implements RerankBackend.
func (c *HTTPRerankClient) Score(ctx context.Context, model, query string, candidates []string) ([]float32, error) {
	body, err := json.Marshal(rerankRequest{Model: model, Query: query, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank request: status %d", resp.StatusCode)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}
	if len(result.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank response: got %d scores for %d candidates", len(result.Scores), len(candidates))
	}
	return result.Scores, nil
}
