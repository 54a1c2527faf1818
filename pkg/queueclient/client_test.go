package queueclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medancode420/PetPlantr/pkg/problem"
)

func submitTo(t *testing.T, handler http.HandlerFunc, opts SubmitOptions) SubmissionOutcome {
	t.Helper()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	outcome, err := NewClient().Submit(context.Background(), srv.URL, map[string]string{"image_url": "http://img"}, opts)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return outcome
}

func TestSubmitAcceptedFromHeaders(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.Header().Set("Location", "/s/1")
		w.WriteHeader(http.StatusAccepted)
	}, SubmitOptions{})

	if outcome.Problem != nil {
		t.Fatalf("unexpected problem: %+v", outcome.Problem)
	}
	acc := outcome.Accepted
	if acc == nil {
		t.Fatal("expected accepted outcome")
	}
	if acc.StatusURL != "/s/1" || acc.RetryAfterSeconds != 5 {
		t.Fatalf("unexpected accepted: %+v", acc)
	}
	if acc.Laddered != nil {
		t.Fatalf("expected laddered undefined, got %v", *acc.Laddered)
	}
}

func TestSubmitAcceptedFromBodyBackfill(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status_url":"/s/2","poll_after_s":30}`))
	}, SubmitOptions{})

	acc := outcome.Accepted
	if acc == nil {
		t.Fatalf("expected accepted outcome, got problem %+v", outcome.Problem)
	}
	if acc.StatusURL != "/s/2" || acc.RetryAfterSeconds != 30 {
		t.Fatalf("unexpected accepted: %+v", acc)
	}
}

func TestSubmitMissingStatusURL(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}, SubmitOptions{})

	if outcome.Accepted != nil {
		t.Fatalf("expected problem, got accepted %+v", outcome.Accepted)
	}
	p := outcome.Problem
	if p == nil || p.Status != 502 || p.Title != "Missing status URL" {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestSubmitProblemPassthrough(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", problem.MediaType)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"title":"Conflict","status":409}`))
	}, SubmitOptions{})

	p := outcome.Problem
	if p == nil || p.Title != "Conflict" || p.Status != 409 {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestSubmitMalformedProblemBodySynthesizes(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", problem.MediaType)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not json"))
	}, SubmitOptions{})

	p := outcome.Problem
	if p == nil || p.Status != 503 || p.Title != "Service Unavailable" {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestSubmitUnexpectedResponse(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain result"))
	}, SubmitOptions{})

	p := outcome.Problem
	if p == nil || p.Title != "Unexpected response" || p.Status != 200 {
		t.Fatalf("unexpected problem: %+v", p)
	}
	if p.Detail != "plain result" {
		t.Fatalf("expected body captured as detail, got %q", p.Detail)
	}
}

func TestSubmitStatusURLPrecedence(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `</s/link>; rel="monitor"`)
		w.Header().Set("Location", "/s/location")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status_url":"/s/body"}`))
	}, SubmitOptions{})

	if outcome.Accepted == nil || outcome.Accepted.StatusURL != "/s/link" {
		t.Fatalf("expected Link header to win, got %+v", outcome.Accepted)
	}
}

func TestSubmitLadderedFromHeader(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/s/1")
		w.Header().Set("X-Queue-Ladder", "TRUE")
		w.WriteHeader(http.StatusAccepted)
	}, SubmitOptions{})

	acc := outcome.Accepted
	if acc == nil || acc.Laddered == nil || !*acc.Laddered {
		t.Fatalf("expected laddered true, got %+v", acc)
	}
}

func TestSubmitLadderedBodyOverridesHeader(t *testing.T) {
	outcome := submitTo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/s/1")
		w.Header().Set("X-Queue-Ladder", "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"laddered":false}`))
	}, SubmitOptions{})

	acc := outcome.Accepted
	if acc == nil || acc.Laddered == nil || *acc.Laddered {
		t.Fatalf("expected laddered false from body, got %+v", acc)
	}
}

func TestSubmitSendsIdempotencyKeyAndHeaders(t *testing.T) {
	var gotKey, gotContentType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Location", "/s/1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(WithHeader("Authorization", "Key secret"))
	if _, err := client.Submit(context.Background(), srv.URL, nil, SubmitOptions{IdempotencyKey: "abc:1"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if gotKey != "abc:1" {
		t.Fatalf("unexpected idempotency key: %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if gotAuth != "Key secret" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
}

func TestSubmitOmitsIdempotencyKeyWhenUnset(t *testing.T) {
	var sawKey bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawKey = r.Header["Idempotency-Key"]
		w.Header().Set("Location", "/s/1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if _, err := NewClient().Submit(context.Background(), srv.URL, nil, SubmitOptions{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if sawKey {
		t.Fatal("idempotency key sent without a caller-supplied value")
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	_, err := NewClient().Submit(context.Background(), "http://127.0.0.1:1", nil, SubmitOptions{})
	if err == nil {
		t.Fatal("expected transport error")
	}
}
