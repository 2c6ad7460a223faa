package video

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[string]*Video),
	}
}

// Create persists a new video. Stores a clone to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v.Clone()
	return nil
}

// FindByID retrieves a video by its ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return v.Clone(), nil
}

// ListByUser returns one page of the user's videos, newest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string, opts ListOptions) (*Page, error) {
	opts = opts.normalize()

	r.mu.RLock()
	matched := make([]*Video, 0)
	for _, v := range r.videos {
		if v.UserID != userID {
			continue
		}
		if opts.Status != "" && v.Status != opts.Status {
			continue
		}
		matched = append(matched, v.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool {
		return matched[i].CreatedAt.After(matched[k].CreatedAt)
	})

	total := len(matched)
	totalPages := (total + opts.Limit - 1) / opts.Limit
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &Page{
		Videos:     matched[start:end],
		Page:       opts.Page,
		Limit:      opts.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}
