package jobstore

import (
	"context"
	"sync"
	"time"
)

// MemStore keeps jobs in memory. It backs tests and single-process runs.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]Job
	byKey map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[string]Job),
		byKey: make(map[string]string),
	}
}

func (s *MemStore) Create(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[job.ID] = job
	if job.IdempotencyKey != "" {
		s.byKey[job.IdempotencyKey] = job.ID
	}
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemStore) GetByKey(ctx context.Context, key string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return Job{}, ErrNotFound
	}
	job, ok := s.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemStore) Update(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[job.ID]; !ok {
		return ErrNotFound
	}
	job.UpdatedAt = time.Now().UTC()
	s.items[job.ID] = job
	return nil
}
