package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzhipeng728/sora/internal/user"
)

func newTestService() *Service {
	return NewService(user.NewMemoryRepository(), "test-secret")
}

func TestService_Register(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "alice@example.com", "correct horse battery", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "alice", u.Username)
	assert.NotEmpty(t, token)
	// The stored credential is a hash, never the password itself.
	assert.NotContains(t, u.PasswordHash, "correct horse")

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, _, err := svc.Register(ctx, "alice@example.com", "another password", "alice2")
		assert.ErrorIs(t, err, user.ErrEmailInUse)
	})

	t.Run("duplicate email case-insensitive", func(t *testing.T) {
		_, _, err := svc.Register(ctx, "ALICE@example.com", "another password", "alice3")
		assert.ErrorIs(t, err, user.ErrEmailInUse)
	})
}

func TestService_Register_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"missing at sign", "alice.example.com", "longenough", ErrInvalidEmail},
		{"missing domain dot", "alice@example", "longenough", ErrInvalidEmail},
		{"whitespace in email", "al ice@example.com", "longenough", ErrInvalidEmail},
		{"short password", "alice@example.com", "seven77", ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.email, tt.password, "alice")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Login(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "alice@example.com", "correct horse battery", "alice")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		u, token, err := svc.Login(ctx, "alice@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, u.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "bob@example.com", "correct horse battery")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_UserFromToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, token, err := svc.Register(ctx, "alice@example.com", "correct horse battery", "alice")
	require.NoError(t, err)

	t.Run("valid token resolves user", func(t *testing.T) {
		u, err := svc.UserFromToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, u.ID)
		assert.Equal(t, registered.Email, u.Email)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := svc.UserFromToken(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed with a different secret rejected", func(t *testing.T) {
		other := NewService(user.NewMemoryRepository(), "other-secret")
		_, foreignToken, err := other.Register(ctx, "eve@example.com", "longenough", "eve")
		require.NoError(t, err)

		_, err = svc.UserFromToken(ctx, foreignToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestService_ValidateToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	registered, token, err := svc.Register(ctx, "alice@example.com", "correct horse battery", "alice")
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, userID)

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
