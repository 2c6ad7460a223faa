// Package auth provides credential verification and token issuance. It is a
// thin collaborator for the job pipeline: handlers only need "verify
// credentials -> user id".
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/luzhipeng728/sora/internal/user"
)

// Static errors for auth operations.
var (
	// ErrInvalidEmail is returned when the email is not well-formed.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when the password is shorter than 8 characters.
	ErrWeakPassword = errors.New("password must be at least 8 characters long")
	// ErrInvalidCredentials is returned on a failed login. It does not reveal
	// whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for a missing, malformed or expired token.
	ErrInvalidToken = errors.New("invalid or expired token")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	// bcryptCost is the hashing work factor for passwords.
	bcryptCost = 12
	// tokenTTL is how long issued tokens remain valid.
	tokenTTL = 7 * 24 * time.Hour
	// minPasswordLen is the minimum accepted password length.
	minPasswordLen = 8
)

// Service verifies credentials and issues JWTs.
type Service struct {
	users  user.Repository
	secret []byte
}

// NewService creates an auth service signing tokens with the given secret.
func NewService(users user.Repository, secret string) *Service {
	return &Service{users: users, secret: []byte(secret)}
}

// claims is the JWT payload carried by issued tokens.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Register creates a new account and returns the user with a fresh token.
func (s *Service) Register(ctx context.Context, email, password, username string) (*user.User, string, error) {
	if !emailRe.MatchString(email) {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := user.New(email, username, string(hash))
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// UserFromToken validates a token and loads the account it identifies.
func (s *Service) UserFromToken(ctx context.Context, token string) (*user.User, error) {
	userID, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

// ValidateToken checks the token signature and expiry, returning the user ID.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// issueToken signs a token for the user, valid for tokenTTL.
func (s *Service) issueToken(u *user.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
