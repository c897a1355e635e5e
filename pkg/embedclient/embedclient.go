// Package embedclient implements C1, the embedding service client: a single
// fixed-shape POST, batched, retried with backoff, and cached by the caller.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unergybot/tke/pkg/models"
)

// Client calls an external embedding service over POST /embed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// New builds a Client against baseURL (e.g. "http://embed-service:8000").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
	}
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch embeds a batch of non-empty texts, each vector L2-normalized by
// the service. Empty strings are never sent; if texts is empty the call is a
// no-op returning an empty slice. Errors are always surfaced, never replaced
// by a zero vector.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	nonEmpty := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	body, err := json.Marshal(embedRequest{Inputs: nonEmpty, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal embed request: %v", models.ErrDependency, err)
	}

	var out embedResponse
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // network error: retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("embed service returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("embed service returned %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: embed batch: %v", models.ErrDependency, err)
	}
	return out.Embeddings, nil
}

// EmbedOne embeds a single text and returns its vector.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embed service returned no vector for non-empty text", models.ErrDependency)
	}
	return vectors[0], nil
}
