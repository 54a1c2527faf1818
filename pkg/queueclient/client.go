// Package queueclient implements the caller half of the PetPlantr analysis
// queue protocol: idempotent submission, 202-ladder resolution, and bounded
// polling of the status resource until a terminal payload or a structured
// problem appears.
package queueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medancode420/PetPlantr/pkg/idempotency"
	"github.com/medancode420/PetPlantr/pkg/problem"
)

// maxBodyBytes bounds how much of any response body is read.
const maxBodyBytes = 1 << 20

// Client talks to a queue endpoint over HTTP.
type Client struct {
	httpClient *http.Client
	headers    http.Header
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a default header sent on every request, e.g. an
// authorization header injected by the hosting application.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// NewClient creates a queue client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Accepted describes a deferred job: where to poll and how long to wait.
// StatusURL is always non-empty and RetryAfterSeconds always falls in
// [MinRetryAfterSeconds, MaxRetryAfterSeconds]. Laddered is nil when the
// server signalled nothing either way.
type Accepted struct {
	StatusURL         string
	RetryAfterSeconds int
	Laddered          *bool
}

// SubmissionOutcome is the classified result of one submission. Exactly one
// of Accepted and Problem is non-nil.
type SubmissionOutcome struct {
	Accepted *Accepted
	Problem  *problem.Problem
}

// SubmitOptions carries per-submission settings.
type SubmitOptions struct {
	// IdempotencyKey is attached as the Idempotency-Key header when non-empty.
	// The server is the sole authority on key collisions.
	IdempotencyKey string
	// Headers are merged over the client's default headers.
	Headers http.Header
}

// Submit serializes body as JSON (an empty object when nil), issues exactly
// one POST against endpoint, and classifies the response. Transport failures
// are returned as errors; every classified response becomes an outcome.
func (c *Client) Submit(ctx context.Context, endpoint string, body any, opts SubmitOptions) (SubmissionOutcome, error) {
	payload := []byte("{}")
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return SubmissionOutcome{}, fmt.Errorf("marshal submission body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return SubmissionOutcome{}, fmt.Errorf("create submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	mergeHeaders(req.Header, c.headers)
	mergeHeaders(req.Header, opts.Headers)
	if opts.IdempotencyKey != "" {
		req.Header.Set(idempotency.Header, opts.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmissionOutcome{}, fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	return classify(resp), nil
}

// classify maps a submission response onto the outcome union, evaluated once
// per response: problem+json errors first, then the 202 ladder, then
// everything else as an unexpected response.
func classify(resp *http.Response) SubmissionOutcome {
	switch {
	case resp.StatusCode >= 400 && problem.IsMediaType(resp.Header.Get("Content-Type")):
		return SubmissionOutcome{
			Problem: problem.Decode(resp.Body, resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	case resp.StatusCode == http.StatusAccepted:
		return resolveAccepted(resp)
	default:
		var detail string
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes)); err == nil {
			detail = strings.TrimSpace(string(raw))
		}
		return SubmissionOutcome{Problem: problem.Unexpected(resp.StatusCode, detail)}
	}
}

// deferredBody is the optional JSON payload of a 202 response.
type deferredBody struct {
	StatusURL  string   `json:"status_url"`
	PollAfterS *float64 `json:"poll_after_s"`
	Laddered   *bool    `json:"laddered"`
}

// resolveAccepted derives the monitor URL and wait hint from a 202 response.
// Status URL precedence: Link rel=monitor, Link rel=status, Location, then
// the body's status_url as backfill only. A 202 with no discoverable URL is
// reclassified as a problem rather than a valid acceptance.
func resolveAccepted(resp *http.Response) SubmissionOutcome {
	var body deferredBody
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes)); err == nil && len(raw) > 0 {
		// Malformed bodies are ignored; headers alone can carry the contract.
		_ = json.Unmarshal(raw, &body)
	}

	statusURL := MonitorURL(resp.Header.Get("Link"))
	if statusURL == "" {
		statusURL = resp.Header.Get("Location")
	}
	if statusURL == "" {
		statusURL = body.StatusURL
	}
	if statusURL == "" {
		return SubmissionOutcome{Problem: problem.MissingStatusURL()}
	}

	retryAfter := RetryAfterSeconds(resp.Header.Get("Retry-After"), DefaultRetryAfterSeconds)
	if body.PollAfterS != nil {
		retryAfter = RetryAfterFromNumber(*body.PollAfterS, retryAfter)
	}

	laddered := body.Laddered
	if laddered == nil {
		if v := resp.Header.Get("X-Queue-Ladder"); v != "" {
			b := strings.EqualFold(v, "true")
			laddered = &b
		}
	}

	return SubmissionOutcome{Accepted: &Accepted{
		StatusURL:         statusURL,
		RetryAfterSeconds: retryAfter,
		Laddered:          laddered,
	}}
}

// mergeHeaders overwrites dst entries with src values.
func mergeHeaders(dst, src http.Header) {
	for key, values := range src {
		dst.Del(key)
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
