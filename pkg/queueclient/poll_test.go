package queueclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medancode420/PetPlantr/pkg/problem"
)

func TestPollUntilDone(t *testing.T) {
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 3 {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"status":"IN_PROGRESS"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	outcome, err := NewClient().Poll(context.Background(), srv.URL, PollConfig{Interval: MinPollInterval})
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if outcome.Problem != nil {
		t.Fatalf("unexpected problem: %+v", outcome.Problem)
	}
	if outcome.StatusCode != http.StatusOK || string(outcome.Data) != `{"ok":true}` {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := fetches.Load(); got != 4 {
		t.Fatalf("expected 4 fetches (three deferred), got %d", got)
	}
}

func TestPollStopsOnProblem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, &problem.Problem{Title: "Job failed", Status: 500})
	}))
	defer srv.Close()

	outcome, err := NewClient().Poll(context.Background(), srv.URL, PollConfig{Interval: MinPollInterval})
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if outcome.Problem == nil || outcome.Problem.Title != "Job failed" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestPollTreatsNon202AsTerminal(t *testing.T) {
	// Any 2xx other than 202 ends the loop, even without a body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	outcome, err := NewClient().Poll(context.Background(), srv.URL, PollConfig{Interval: MinPollInterval})
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if outcome.StatusCode != http.StatusNoContent || outcome.Data != nil || outcome.Problem != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestPollCancelledMidDelay(t *testing.T) {
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient().Poll(ctx, srv.URL, PollConfig{Interval: 5 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected no fetch after cancellation, got %d", got)
	}
}

func TestPollTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := NewClient().Poll(context.Background(), srv.URL, PollConfig{
		Interval: MinPollInterval,
		Timeout:  300 * time.Millisecond,
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestSleepInterruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sleep(ctx, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep did not return promptly: %s", elapsed)
	}
}

func TestClampInterval(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{0, DefaultPollInterval},
		{time.Millisecond, MinPollInterval},
		{time.Second, time.Second},
		{time.Minute, MaxPollInterval},
	}
	for _, tc := range cases {
		if got := clampInterval(tc.in); got != tc.want {
			t.Fatalf("clampInterval(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
