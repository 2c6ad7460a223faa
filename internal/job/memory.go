package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for PostgresRepository in production.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Create persists a new job. Stores a clone to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j.Clone()
	return nil
}

// FindByID retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// ActiveByUser returns the user's pending and processing jobs, newest first.
func (r *MemoryRepository) ActiveByUser(_ context.Context, userID string) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0)
	for _, j := range r.jobs {
		if j.UserID == userID && !j.Status.IsTerminal() {
			result = append(result, j.Clone())
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result, nil
}

// UpdateProgress sets the job's progress, rejecting out-of-range values.
func (r *MemoryRepository) UpdateProgress(_ context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return ErrProgressOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
	return nil
}

// Transition moves the job to the given status after validating the edge.
func (r *MemoryRepository) Transition(_ context.Context, id string, to Status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, to, errMsg, "")
}

// MarkProcessing transitions pending -> processing and records the external job ID.
func (r *MemoryRepository) MarkProcessing(_ context.Context, id, externalJobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, StatusProcessing, "", externalJobID)
}

// transitionLocked performs a validated state transition. Caller holds r.mu.
func (r *MemoryRepository) transitionLocked(id string, to Status, errMsg, externalJobID string) error {
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !CanTransition(j.Status, to) {
		return transitionError(j.Status, to)
	}

	now := time.Now()
	j.Status = to
	j.UpdatedAt = now
	if to.IsTerminal() {
		j.CompletedAt = now
	}
	if to == StatusFailed && errMsg != "" {
		j.ErrorMessage = errMsg
	}
	if externalJobID != "" {
		j.ExternalJobID = externalJobID
	}
	return nil
}

// LinkVideo atomically completes the job with the given video.
func (r *MemoryRepository) LinkVideo(_ context.Context, id, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusProcessing {
		return transitionError(j.Status, StatusCompleted)
	}

	now := time.Now()
	j.VideoID = videoID
	j.Status = StatusCompleted
	j.Progress = 100
	j.UpdatedAt = now
	j.CompletedAt = now
	return nil
}

// FailStuck bulk-fails processing jobs not updated within the threshold.
func (r *MemoryRepository) FailStuck(_ context.Context, olderThan time.Duration, errMsg string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var count int64
	for _, j := range r.jobs {
		if j.Status != StatusProcessing || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		now := time.Now()
		j.Status = StatusFailed
		j.ErrorMessage = errMsg
		j.UpdatedAt = now
		j.CompletedAt = now
		count++
	}
	return count, nil
}

// DeleteTerminalOlderThan removes old completed and failed jobs.
func (r *MemoryRepository) DeleteTerminalOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var count int64
	for id, j := range r.jobs {
		if j.Status.IsTerminal() && !j.CompletedAt.IsZero() && j.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			count++
		}
	}
	return count, nil
}
