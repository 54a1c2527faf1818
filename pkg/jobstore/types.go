// Package jobstore persists analysis jobs for the queue simulator. Backends
// share one Store interface: an in-memory map for tests and local runs, Redis
// for shared development environments, and Postgres where durability matters.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status enumerates the queue lifecycle shared with the analysis API.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a worker.
	StatusInQueue Status = "IN_QUEUE"
	// StatusInProgress indicates the job is executing.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the job finished with a result.
	StatusCompleted Status = "COMPLETED"
	// StatusError indicates the job failed.
	StatusError Status = "ERROR"
)

// Job is one tracked analysis submission.
type Job struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	PayloadHash    string          `json:"payload_hash,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         Status          `json:"status"`
	// Polls counts status fetches observed for this job; the simulator
	// advances the ladder from it.
	Polls     int             `json:"polls"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ErrNotFound is returned when no job matches the lookup.
var ErrNotFound = errors.New("job not found")

// Store persists jobs and supports idempotency-key lookups.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// GetByKey finds the job previously created under an idempotency key.
	GetByKey(ctx context.Context, key string) (Job, error)
	Update(ctx context.Context, job Job) error
}
