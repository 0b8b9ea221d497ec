// Package suspensionapi is the client for the external suspension/revival
// API, the single writer for suspension state transitions.
package suspensionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/terminal-bench/noticeflow/internal/codes"
	"github.com/terminal-bench/noticeflow/pkg/circuit"
)

// Response is the API outcome. Success and error message are exposed as
// accessors so batch callers can branch without exception-style control
// flow.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the call succeeded.
func (r *Response) OK() bool {
	return r != nil && r.Success
}

// ErrorMessage returns the failure message, empty on success.
func (r *Response) ErrorMessage() string {
	if r == nil {
		return "no response"
	}
	if r.Success {
		return ""
	}
	return r.Message
}

// SuspensionRequest is the payload for applying a suspension.
type SuspensionRequest struct {
	NoticeNo           string                 `json:"notice_no"`
	SuspensionType     codes.SuspensionType   `json:"suspension_type"`
	ReasonOfSuspension codes.SuspensionReason `json:"reason_of_suspension"`
	AuthorisingOfficer string                 `json:"authorising_officer"`
	SuspensionSource   codes.Subsystem        `json:"suspension_source"`
	DueDateOfRevival   *time.Time             `json:"due_date_of_revival,omitempty"`
	Remarks            string                 `json:"remarks,omitempty"`
}

type revivalRequest struct {
	NoticeNo           string          `json:"notice_no"`
	RevivalRemarks     string          `json:"revival_remarks"`
	AuthorisingOfficer string          `json:"authorising_officer"`
	RevivalSource      codes.Subsystem `json:"revival_source"`
}

// Client calls the suspension API over HTTP. Every call is bounded by the
// configured per-call timeout and guarded by a circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	timeout time.Duration
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a suspension API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.NewBreaker(circuit.Config{
			Name:        "suspension-api",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 3,
		}),
		timeout: timeout,
	}
}

// ApplyRevivalSingle clears the active suspension on one notice.
func (c *Client) ApplyRevivalSingle(ctx context.Context, noticeNo, remarks, officer string, source codes.Subsystem) (*Response, error) {
	return c.post(ctx, "/v1/apply-revival", revivalRequest{
		NoticeNo:           noticeNo,
		RevivalRemarks:     remarks,
		AuthorisingOfficer: officer,
		RevivalSource:      source,
	})
}

// ApplySuspensionSingle applies a suspension to one notice.
func (c *Client) ApplySuspensionSingle(ctx context.Context, req SuspensionRequest) (*Response, error) {
	return c.post(ctx, "/v1/apply-suspension", req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp Response
	err = c.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("suspension api call failed: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("suspension api returned %d", httpResp.StatusCode)
		}

		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
