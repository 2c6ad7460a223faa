package video

import (
	"context"
	"errors"
	"testing"
	"time"
)

func storeVideo(t *testing.T, repo *MemoryRepository, userID string, createdAt time.Time) *Video {
	t.Helper()
	v, err := New(userID, "a cat surfing", "portrait", "model", "https://cdn.example.com/v.mp4")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v.CreatedAt = createdAt
	if err := repo.Create(context.Background(), v); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func TestMemoryRepository_FindByID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	v := storeVideo(t, repo, "user-1", time.Now())

	found, err := repo.FindByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.ID != v.ID {
		t.Errorf("expected ID %s, got %s", v.ID, found.ID)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestMemoryRepository_ListByUser(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now()

	var ids []string
	for i := 0; i < 5; i++ {
		v := storeVideo(t, repo, "user-1", base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, v.ID)
	}
	storeVideo(t, repo, "user-2", base)

	t.Run("newest first", func(t *testing.T) {
		page, err := repo.ListByUser(ctx, "user-1", ListOptions{})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if page.Total != 5 {
			t.Errorf("expected total 5, got %d", page.Total)
		}
		if len(page.Videos) != 5 {
			t.Fatalf("expected 5 videos, got %d", len(page.Videos))
		}
		if page.Videos[0].ID != ids[4] {
			t.Errorf("expected newest video first, got %s", page.Videos[0].ID)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := repo.ListByUser(ctx, "user-1", ListOptions{Page: 2, Limit: 2})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(page.Videos) != 2 {
			t.Fatalf("expected 2 videos on page 2, got %d", len(page.Videos))
		}
		if page.TotalPages != 3 {
			t.Errorf("expected 3 total pages, got %d", page.TotalPages)
		}
		if page.Videos[0].ID != ids[2] {
			t.Errorf("unexpected first video on page 2: %s", page.Videos[0].ID)
		}
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		page, err := repo.ListByUser(ctx, "user-1", ListOptions{Page: 99, Limit: 2})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(page.Videos) != 0 {
			t.Errorf("expected empty page, got %d videos", len(page.Videos))
		}
	})

	t.Run("status filter", func(t *testing.T) {
		page, err := repo.ListByUser(ctx, "user-1", ListOptions{Status: StatusFailed})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if page.Total != 0 {
			t.Errorf("expected no failed videos, got %d", page.Total)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		page, err := repo.ListByUser(ctx, "user-3", ListOptions{})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if page.Total != 0 {
			t.Errorf("expected total 0, got %d", page.Total)
		}
	})
}

func TestMemoryRepository_CreateStoresClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	v := storeVideo(t, repo, "user-1", time.Now())

	v.Prompt = "mutated after create"
	got, err := repo.FindByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Prompt != "a cat surfing" {
		t.Errorf("stored video mutated externally: %q", got.Prompt)
	}
}
