package queueclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/medancode420/PetPlantr/pkg/problem"
)

const (
	// MinPollInterval bounds how aggressively a caller may re-poll.
	MinPollInterval = 250 * time.Millisecond
	// MaxPollInterval bounds how long a caller may be told to wait.
	MaxPollInterval = 10 * time.Second
	// DefaultPollInterval applies when PollConfig.Interval is zero.
	DefaultPollInterval = time.Second
)

// ErrPollTimeout reports that a polling session exhausted its caller-supplied
// budget before the job reached a terminal state.
var ErrPollTimeout = errors.New("poll budget exceeded")

// PollConfig bounds a single polling session. Interval is fixed for the
// whole session; the server's Retry-After hint informs the caller's choice
// but is not re-resolved per iteration.
type PollConfig struct {
	// Interval between fetches, clamped into [MinPollInterval, MaxPollInterval].
	Interval time.Duration
	// Timeout is the total wall-clock budget. Zero means unbounded.
	Timeout time.Duration
	// Headers are merged over the client's default headers on every fetch.
	Headers http.Header
}

// PollOutcome is the terminal payload of a polling session: final data or a
// structured problem, never both.
type PollOutcome struct {
	StatusCode int
	Data       json.RawMessage
	Problem    *problem.Problem
}

// Poll repeatedly fetches statusURL until a terminal response, the budget, or
// cancellation. 202 is the only status that continues the loop; a problem or
// any other status ends it with the fetched payload as final. Fetches within
// one session are strictly sequential. The budget and cancellation are
// checked at iteration boundaries, and the inter-poll delay itself is
// interruptible; an in-flight fetch is never aborted by the loop.
//
// Problems terminate the loop as valid outcomes. Timeout and cancellation are
// aborted operations and come back as errors: errors.Is against
// ErrPollTimeout or ctx.Err() distinguishes them.
func (c *Client) Poll(ctx context.Context, statusURL string, cfg PollConfig) (PollOutcome, error) {
	interval := clampInterval(cfg.Interval)
	start := time.Now()

	for {
		if cfg.Timeout > 0 && time.Since(start) > cfg.Timeout {
			return PollOutcome{}, fmt.Errorf("polling %s exceeded %s: %w", statusURL, cfg.Timeout, ErrPollTimeout)
		}
		if err := ctx.Err(); err != nil {
			return PollOutcome{}, fmt.Errorf("polling cancelled: %w", err)
		}

		result, err := c.FetchStatus(ctx, statusURL, FetchOptions{Headers: cfg.Headers})
		if err != nil {
			return PollOutcome{}, err
		}
		if result.Problem != nil || result.StatusCode != http.StatusAccepted {
			return PollOutcome{
				StatusCode: result.StatusCode,
				Data:       result.Data,
				Problem:    result.Problem,
			}, nil
		}

		if err := sleep(ctx, interval); err != nil {
			return PollOutcome{}, fmt.Errorf("polling cancelled: %w", err)
		}
	}
}

// sleep waits for d or until ctx is cancelled, whichever fires first. The
// timer is always stopped so repeated iterations do not leak.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultPollInterval
	}
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}
