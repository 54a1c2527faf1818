package queueclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/medancode420/PetPlantr/pkg/problem"
)

// StatusResult is one observation of the status resource. Interpretation of
// StatusCode is left to the poll loop.
type StatusResult struct {
	StatusCode int
	// Problem is set when the response carried a problem+json body.
	Problem *problem.Problem
	// Data holds the raw JSON body, or nil when the body was empty or not
	// valid JSON. Parse failures are recovered locally, never surfaced.
	Data json.RawMessage
}

// FetchOptions carries per-fetch settings.
type FetchOptions struct {
	Headers http.Header
}

// FetchStatus issues a single GET against statusURL and classifies the
// response by content type only. Transport failures are returned as errors.
func (c *Client) FetchStatus(ctx context.Context, statusURL string, opts FetchOptions) (StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("create status request: %w", err)
	}
	mergeHeaders(req.Header, c.headers)
	mergeHeaders(req.Header, opts.Headers)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusResult{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	result := StatusResult{StatusCode: resp.StatusCode}
	if problem.IsMediaType(resp.Header.Get("Content-Type")) {
		result.Problem = problem.Decode(resp.Body, resp.StatusCode, http.StatusText(resp.StatusCode))
		return result, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil && len(raw) > 0 && json.Valid(raw) {
		result.Data = raw
	}
	return result, nil
}
