package semsearch

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

// RerankDoc is one candidate document submitted to the cross-encoder.
type RerankDoc struct {
	ID   string
	Text string
}

// Reranker scores (query, doc) pairs via an external cross-encoder service.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []RerankDoc) (map[string]float64, error)
}

// HTTPReranker calls an external reranking service over POST /rerank,
// the same fixed-shape-POST-plus-backoff idiom pkg/embedclient uses.
type HTTPReranker struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// NewHTTPReranker builds an HTTPReranker against baseURL.
func NewHTTPReranker(baseURL string) *HTTPReranker {
	return &HTTPReranker{baseURL: baseURL, httpClient: &http.Client{Timeout: 15 * time.Second}, maxRetries: 2}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	DocIDs   []string `json:"doc_ids"`
	DocTexts []string `json:"doc_texts"`
}

type rerankResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Rerank submits query against docs and returns a doc-id → score map.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []RerankDoc) (map[string]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	req := rerankRequest{Query: query}
	for _, d := range docs {
		req.DocIDs = append(req.DocIDs, d.ID)
		req.DocTexts = append(req.DocTexts, d.Text)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal rerank request: %v", models.ErrDependency, err)
	}

	var out rerankResponse
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries)
	err = backoff.Retry(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("rerank service returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("rerank service returned %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", models.ErrDependency, err)
	}
	return out.Scores, nil
}
