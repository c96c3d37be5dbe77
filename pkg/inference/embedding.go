// Package inference provides HTTP clients for the embedding and
// cross-encoder rerank backends (C11): pure-function calls against a local
// inference server, model-agnostic per request.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// EmbeddingBackend embeds a batch of texts with the given model.
type EmbeddingBackend interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// HTTPEmbeddingClient calls a local inference server's /embed endpoint.
type HTTPEmbeddingClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEmbeddingClient constructs a client against baseURL (e.g.
// http://localhost:8000).
func NewHTTPEmbeddingClient(baseURL string, client *http.Client) *HTTPEmbeddingClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEmbeddingClient{baseURL: baseURL, client: client}
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements EmbeddingBackend.
func (c *HTTPEmbeddingClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed response: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}
