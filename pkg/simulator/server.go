// Package simulator implements the server half of the analysis queue ladder
// for local development: it accepts submissions, answers 202 with the full
// header set the real queue exposes, and walks jobs to a fabricated result
// over a configurable number of polls.
package simulator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/medancode420/PetPlantr/pkg/idempotency"
	"github.com/medancode420/PetPlantr/pkg/jobstore"
	"github.com/medancode420/PetPlantr/pkg/problem"
)

const maxSubmissionBytes = 1 << 20

// Config tunes the simulated ladder.
type Config struct {
	// BaseURL prefixes status URLs when set; otherwise they stay relative.
	BaseURL string
	// RetryAfterSeconds is the advertised re-poll hint.
	RetryAfterSeconds int
	// CompleteAfterPolls is how many status fetches return 202 before the
	// job completes.
	CompleteAfterPolls int
}

// Server serves the queue wire contract over a job store.
type Server struct {
	store jobstore.Store
	cfg   Config
}

func New(store jobstore.Store, cfg Config) *Server {
	if cfg.RetryAfterSeconds <= 0 {
		cfg.RetryAfterSeconds = 1
	}
	if cfg.CompleteAfterPolls <= 0 {
		cfg.CompleteAfterPolls = 3
	}
	return &Server{store: store, cfg: cfg}
}

// Router wires the simulator routes with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(exposeHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/v1/analyses", s.handleSubmit)
	r.Get("/v1/analyses/{id}", s.handleStatus)
	return r
}

// exposeHeaders makes the ladder headers readable from browser-hosted
// callers.
func exposeHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers",
			"Location, Link, Retry-After, Cache-Control, RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes))
	if err != nil {
		problem.Write(w, &problem.Problem{Title: "Unreadable body", Status: http.StatusBadRequest})
		return
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		problem.Write(w, &problem.Problem{Title: "Invalid JSON", Status: http.StatusBadRequest})
		return
	}

	key, err := idempotency.FromRequest(r)
	if err != nil && !errors.Is(err, idempotency.ErrMissingKey) {
		problem.Write(w, &problem.Problem{
			Title:  "Invalid Idempotency-Key",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
		})
		return
	}

	hash := payloadHash(payload)
	if key != "" {
		existing, err := s.store.GetByKey(r.Context(), key)
		switch {
		case err == nil && existing.PayloadHash != hash:
			problem.Write(w, &problem.Problem{
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: "idempotency key reused with a different payload",
			})
			return
		case err == nil:
			s.writeAccepted(w, existing)
			return
		case !errors.Is(err, jobstore.ErrNotFound):
			problem.Write(w, &problem.Problem{Title: "Store unavailable", Status: http.StatusInternalServerError})
			return
		}
	}

	now := time.Now().UTC()
	job := jobstore.Job{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		PayloadHash:    hash,
		Payload:        payload,
		Status:         jobstore.StatusInQueue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(r.Context(), job); err != nil {
		problem.Write(w, &problem.Problem{Title: "Store unavailable", Status: http.StatusInternalServerError})
		return
	}

	s.writeAccepted(w, job)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.Get(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		problem.Write(w, &problem.Problem{Title: "Not Found", Status: http.StatusNotFound})
		return
	}
	if err != nil {
		problem.Write(w, &problem.Problem{Title: "Store unavailable", Status: http.StatusInternalServerError})
		return
	}

	job = s.advance(job)
	if err := s.store.Update(r.Context(), job); err != nil {
		problem.Write(w, &problem.Problem{Title: "Store unavailable", Status: http.StatusInternalServerError})
		return
	}

	switch job.Status {
	case jobstore.StatusCompleted:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(job.Result)
	case jobstore.StatusError:
		problem.Write(w, &problem.Problem{
			Title:  "Analysis failed",
			Status: http.StatusInternalServerError,
			Detail: job.Error,
		})
	default:
		s.writeDeferred(w, job)
	}
}

// advance walks the job one ladder step per observed poll.
func (s *Server) advance(job jobstore.Job) jobstore.Job {
	if job.Status != jobstore.StatusInQueue && job.Status != jobstore.StatusInProgress {
		return job
	}
	job.Polls++
	if job.Polls > s.cfg.CompleteAfterPolls {
		job.Status = jobstore.StatusCompleted
		job.Result = fabricateResult()
		return job
	}
	if job.Status == jobstore.StatusInQueue && job.Polls > 1 {
		job.Status = jobstore.StatusInProgress
	}
	return job
}

// writeAccepted emits the full 202 ladder: headers first, body as backfill.
func (s *Server) writeAccepted(w http.ResponseWriter, job jobstore.Job) {
	statusURL := s.statusURL(job.ID)
	h := w.Header()
	h.Set("Location", statusURL)
	h.Set("Link", fmt.Sprintf(`<%s>; rel="monitor"`, statusURL))
	h.Set("Retry-After", strconv.Itoa(s.cfg.RetryAfterSeconds))
	h.Set("X-Queue-Ladder", "true")
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status_url":   statusURL,
		"poll_after_s": s.cfg.RetryAfterSeconds,
		"laddered":     true,
	})
}

func (s *Server) writeDeferred(w http.ResponseWriter, job jobstore.Job) {
	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(s.cfg.RetryAfterSeconds))
	h.Set("Cache-Control", "no-store")
	h.Set("RateLimit-Limit", "120")
	h.Set("RateLimit-Remaining", "119")
	h.Set("RateLimit-Reset", "60")
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	queuePosition := 0
	if job.Status == jobstore.StatusInQueue {
		queuePosition = s.cfg.CompleteAfterPolls - job.Polls + 1
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         job.Status,
		"queue_position": queuePosition,
	})
}

func (s *Server) statusURL(id string) string {
	return s.cfg.BaseURL + "/v1/analyses/" + id
}

func payloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// fabricateResult mirrors the analysis API's completed-response shape.
func fabricateResult() json.RawMessage {
	return json.RawMessage(`{
  "predicted_breed": "samoyed",
  "confidence": 0.97,
  "is_high_confidence": true,
  "model_version": "clip-lora-v2",
  "top_predictions": [{"samoyed": 0.97}, {"eskimo_dog": 0.02}]
}`)
}
