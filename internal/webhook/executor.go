// Package webhook ships the default action executor: an HTTP client driven
// by the task payload.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"taskscheduler-go/internal/storage"
)

// payload is the subset of the task payload the executor understands.
// Anything else in the payload is ignored.
type payload struct {
	URL    string          `json:"url"`
	Method string          `json:"method"`
	Body   json.RawMessage `json:"body"`
}

// Executor calls the webhook named in the task payload and reports the
// response. Non-2xx statuses and transport errors both count as failures.
type Executor struct {
	client *http.Client
}

// NewExecutor creates an Executor with the given per-request timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{
		client: &http.Client{Timeout: timeout},
	}
}

// Execute performs the HTTP request described by the task payload.
// On 2xx it returns {"status": code, "response": body}.
func (e *Executor) Execute(ctx context.Context, task *storage.Task) (json.RawMessage, error) {
	var p payload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("missing 'url' in payload")
	}

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch method {
	case http.MethodPost, http.MethodPut:
		raw := p.Body
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response failed: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(text))
	}

	out, err := json.Marshal(map[string]interface{}{
		"status":   resp.StatusCode,
		"response": string(text),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding output failed: %v", err)
	}
	return out, nil
}
