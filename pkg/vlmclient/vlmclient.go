// Package vlmclient implements C2, the vision-language-model job client:
// multipart file submission, webhook-or-poll result waiting, and a
// Redis-backed job cache shared with C11's connection.
package vlmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unergybot/tke/pkg/models"
)

// Status is a VLM job's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is a completed job's payload, shape depends on the template used
// (page mapping validation vs. per-image analysis); callers unmarshal
// the Result field into the shape they expect.
type Result struct {
	Status      Status          `json:"status"`
	Progress    float64         `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SubmitOptions carries the optional multipart fields for submit_file.
type SubmitOptions struct {
	Template   string
	WebhookURL string
	Options    map[string]any
}

type submitResponse struct {
	JobID             string  `json:"job_id"`
	Status            Status  `json:"status"`
	EstimatedDuration float64 `json:"estimated_duration,omitempty"`
	CheckStatusURL    string  `json:"check_status_url,omitempty"`
	SubmittedAt       string  `json:"submitted_at,omitempty"`
}

// JobStore is the result cache C2 requires: job_id-keyed, TTL'd, supporting
// either a webhook write or a poll write racing to the same key.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*Result, bool, error)
	Set(ctx context.Context, jobID string, result *Result, ttl time.Duration) error
}

// Client submits files to the VLM service and waits for results.
type Client struct {
	baseURL    string
	apiKey     string
	webhookURL string
	httpClient *http.Client
	store      JobStore
	jobTTL     time.Duration
	pollEvery  time.Duration
}

// New builds a Client. webhookURL may be empty (poll-only deployments).
func New(baseURL, apiKey, webhookURL string, store JobStore) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		jobTTL:     time.Hour,
		pollEvery:  2 * time.Second,
	}
}

// SubmitFile uploads path as a multipart POST to /api/v1/jobs/upload and
// returns the assigned job_id. Network/5xx errors retry up to 3 times with
// exponential backoff (base 2s); 4xx errors do not retry.
func (c *Client) SubmitFile(ctx context.Context, path string, opts SubmitOptions) (string, error) {
	var out submitResponse
	policy := backoff.WithMaxRetries(newBackoff(), 3)
	err := backoff.Retry(func() error {
		body, contentType, err := buildMultipart(path, opts, c.webhookURL)
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs/upload", body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("vlm service returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("vlm service returned %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}, policy)
	if err != nil {
		return "", fmt.Errorf("%w: submit file %s: %v", models.ErrDependency, path, err)
	}
	return out.JobID, nil
}

func buildMultipart(path string, opts SubmitOptions, webhookURL string) (*bytes.Buffer, string, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", path)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if opts.Template != "" {
		_ = w.WriteField("prompt_template", opts.Template)
	}
	if webhookURL != "" {
		_ = w.WriteField("webhook_url", webhookURL)
	}
	if opts.Options != nil {
		raw, err := json.Marshal(opts.Options)
		if err != nil {
			return nil, "", err
		}
		_ = w.WriteField("options", string(raw))
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// SetPollInterval overrides the default 2s poll interval used by
// WaitForResult; primarily useful in tests.
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollEvery = d
}

// GetStatus polls GET /api/v1/jobs/{job_id} once, without consulting the job store.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build status request: %v", models.ErrDependency, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll job %s: %v", models.ErrDependency, jobID, err)
	}
	defer resp.Body.Close()

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode job status %s: %v", models.ErrDependency, jobID, err)
	}
	return &out, nil
}

// WaitForResult loops: (1) read the job store, return on hit; (2) poll the
// VLM service; on completion write to the store and return; (3) on failure
// write an error record and return it; (4) enforce the overall deadline.
// A webhook-delivered store write racing this loop simply wins the next
// store read.
func (c *Client) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*Result, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		if cached, ok, err := c.store.Get(ctx, jobID); err == nil && ok {
			return cached, nil
		}

		result, err := c.GetStatus(ctx, jobID)
		if err != nil {
			errResult := &Result{Status: StatusFailed, Error: err.Error()}
			_ = c.store.Set(ctx, jobID, errResult, c.jobTTL)
			return nil, fmt.Errorf("%w: wait for job %s: %v", models.ErrDependency, jobID, err)
		}
		switch result.Status {
		case StatusCompleted, StatusFailed:
			_ = c.store.Set(ctx, jobID, result, c.jobTTL)
			if result.Status == StatusFailed {
				return result, fmt.Errorf("%w: job %s failed: %s", models.ErrDependency, jobID, result.Error)
			}
			return result, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: job %s did not complete within %s", models.ErrTimeout, jobID, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// The client has no template-specific methods (no CompareImages or
// ValidateMappings): C5 calls SubmitFile/WaitForResult directly with its
// own payload and the template it selects.
