package user

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	u := New("Alice@Example.com", "alice", "hash")
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("find by ID", func(t *testing.T) {
		got, err := repo.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Email != u.Email {
			t.Errorf("expected email %q, got %q", u.Email, got.Email)
		}
	})

	t.Run("find by email is case-insensitive", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, "alice@example.COM")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if got.ID != u.ID {
			t.Errorf("expected ID %s, got %s", u.ID, got.ID)
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := New("ALICE@example.com", "alice2", "hash2")
		if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailInUse) {
			t.Errorf("expected ErrEmailInUse, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := repo.FindByEmail(ctx, "bob@example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}
