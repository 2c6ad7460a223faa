// Package video provides the Video entity for finished artifacts and
// repository interfaces for persistence. A Video is created exactly once per
// successfully completed job and is immutable thereafter.
package video

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a video artifact.
type Status string

const (
	// StatusCompleted is the only status produced by the job orchestrator.
	StatusCompleted Status = "completed"
	// StatusFailed exists for administrative tooling; the orchestrator never
	// creates failed videos.
	StatusFailed Status = "failed"
)

// Static errors for video operations.
var (
	// ErrVideoNotFound is returned when a video cannot be found by ID.
	ErrVideoNotFound = errors.New("video not found")
	// ErrInvalidPrompt is returned when the prompt is empty or too long.
	ErrInvalidPrompt = errors.New("prompt must be between 1 and 1000 characters")
	// ErrInvalidOrientation is returned for an unknown orientation value.
	ErrInvalidOrientation = errors.New("orientation must be either portrait or landscape")
	// ErrInvalidURL is returned when the video URL is not a well-formed absolute URL.
	ErrInvalidURL = errors.New("invalid video URL")
)

// Video represents a finished generation artifact.
type Video struct {
	// ID is the unique identifier for this video.
	ID string
	// UserID is the owner of the video.
	UserID string
	// Prompt is copied from the job that produced the video.
	Prompt string
	// Orientation is the aspect-ratio selector used for generation.
	Orientation string
	// ModelUsed is the provider model identifier.
	ModelUsed string
	// VideoURL is the artifact location; always a well-formed absolute URL.
	VideoURL string
	// ThumbnailURL is an optional preview image location.
	ThumbnailURL string
	// Duration is the optional length in seconds.
	Duration int
	// Status is the artifact state.
	Status Status
	// Metadata holds optional free-form attributes.
	Metadata map[string]string
	// CreatedAt is when the video record was created.
	CreatedAt time.Time
}

// New creates a completed Video, validating prompt, orientation and URL.
func New(userID, prompt, orientation, modelUsed, videoURL string) (*Video, error) {
	if l := len([]rune(strings.TrimSpace(prompt))); l < 1 || l > 1000 {
		return nil, ErrInvalidPrompt
	}
	if orientation != "portrait" && orientation != "landscape" {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidOrientation, orientation)
	}
	if !isAbsoluteURL(videoURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, videoURL)
	}

	return &Video{
		ID:          uuid.NewString(),
		UserID:      userID,
		Prompt:      prompt,
		Orientation: orientation,
		ModelUsed:   modelUsed,
		VideoURL:    videoURL,
		Status:      StatusCompleted,
		CreatedAt:   time.Now(),
	}, nil
}

// isAbsoluteURL reports whether raw parses as an absolute URL with a host.
func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// Clone creates a copy of the video for safe reads.
func (v *Video) Clone() *Video {
	c := *v
	if v.Metadata != nil {
		c.Metadata = make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			c.Metadata[k] = val
		}
	}
	return &c
}

// ListOptions controls pagination when listing a user's videos.
type ListOptions struct {
	// Page is 1-based; values below 1 are treated as 1.
	Page int
	// Limit is capped at 100; values below 1 default to 20.
	Limit int
	// Status optionally filters by artifact status.
	Status Status
}

// maxPageSize caps the page size for listings.
const maxPageSize = 100

// normalize applies defaults and caps to the options.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	return o
}

// Page is one page of a user's videos.
type Page struct {
	Videos     []*Video
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Repository defines the interface for video persistence.
type Repository interface {
	// Create persists a new video.
	Create(ctx context.Context, v *Video) error

	// FindByID retrieves a video by its unique identifier.
	// Returns ErrVideoNotFound if the video does not exist.
	FindByID(ctx context.Context, id string) (*Video, error)

	// ListByUser returns one page of the user's videos, newest first.
	ListByUser(ctx context.Context, userID string, opts ListOptions) (*Page, error)
}
