// Package client is the Go client for the cybermed backend: a thin REST
// wrapper plus the progress poller used by watch-style UIs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cybermed/agent/internal/jobs"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks to the cybermed backend API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

// SetToken sets the bearer token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login authenticates and stores the issued token on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/token", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.AccessToken
	return nil
}

// StartRequest selects documents for a classification run.
type StartRequest struct {
	AllDocuments bool     `json:"all_documents"`
	DocumentIDs  []string `json:"document_ids,omitempty"`
}

// StartResponse is the acceptance body for a classification start.
type StartResponse struct {
	Status           string   `json:"status"`
	CurrentCount     int      `json:"current_count"`
	TotalCount       int      `json:"total_count"`
	SkippedDocuments []string `json:"skipped_documents"`
	Message          string   `json:"message"`
}

// StartClassification starts a classification job. A conflicting in-flight
// job surfaces as jobs.ErrAlreadyRunning rather than a generic error.
func (c *Client) StartClassification(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var resp StartResponse
	if err := c.do(ctx, http.MethodPost, "/classifier/classify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress is a job progress snapshot as reported by the server.
type Progress struct {
	Status       string `json:"status"`
	CurrentCount int    `json:"current_count"`
	TotalCount   int    `json:"total_count"`
	Error        string `json:"error"`
}

// Terminal reports whether the snapshot is in a terminal state.
func (p Progress) Terminal() bool {
	return p.Status == "completed" || p.Status == "error"
}

// GetProgress reads the current job progress.
func (c *Client) GetProgress(ctx context.Context) (*Progress, error) {
	var resp Progress
	if err := c.do(ctx, http.MethodGet, "/classifier/progress", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusConflict {
			return jobs.ErrAlreadyRunning
		}
		var errBody struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
