// Package job provides the VideoJob aggregate for tracking video generation
// requests. It includes the job state machine, repository interfaces for
// persistence, and the GenerationService that drives a job from creation to a
// terminal state.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luzhipeng728/sora/internal/job/id"
)

// Orientation selects the aspect ratio of the generated video and maps to a
// provider model identifier.
type Orientation string

const (
	// OrientationPortrait generates a vertical video.
	OrientationPortrait Orientation = "portrait"
	// OrientationLandscape generates a horizontal video.
	OrientationLandscape Orientation = "landscape"
)

// IsValid returns true if the orientation is valid.
func (o Orientation) IsValid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job was created but processing has not started.
	StatusPending Status = "pending"
	// StatusProcessing indicates the generation stream is being consumed.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the job finished with a linked video.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job encountered an error.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Static errors for job operations.
var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrProgressOutOfRange is returned when a progress update is outside 0-100.
	ErrProgressOutOfRange = errors.New("progress must be between 0 and 100")
	// ErrEmptyPrompt is returned when the prompt is empty after trimming.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrPromptTooLong is returned when the prompt exceeds 1000 characters.
	ErrPromptTooLong = errors.New("prompt must be less than 1000 characters")
)

// maxPromptLen is the maximum accepted prompt length in characters.
const maxPromptLen = 1000

// validTransitions defines which state transitions are allowed.
// Completion is only reachable through LinkVideo, which bypasses this table
// on purpose: it is the single path that attaches a video atomically.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionError builds an ErrInvalidTransition naming both states, so the
// caller can tell a stale read from a programming error.
func transitionError(from, to Status) error {
	return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, from, to)
}

// Job represents one video generation request and its tracked lifecycle.
// UserID, Prompt and Orientation are immutable after creation; everything
// else is mutated exclusively by the orchestrator run that owns the job.
type Job struct {
	// ID is the unique identifier for this job.
	ID string
	// UserID is the owner of the job.
	UserID string
	// Prompt is the trimmed generation prompt (1-1000 characters).
	Prompt string
	// Orientation selects the provider model.
	Orientation Orientation
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// ExternalJobID is the identifier assigned by the generation provider, if any.
	ExternalJobID string
	// ErrorMessage is set when the job fails.
	ErrorMessage string
	// VideoID links to the finished video, set only on completion.
	VideoID string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// CompletedAt is set exactly once, at the first transition into a terminal state.
	CompletedAt time.Time
}

// New creates a pending Job for the given user, prompt and orientation.
// The prompt is trimmed and validated; orientation defaults to portrait.
func New(userID, prompt string, orientation Orientation) (*Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len([]rune(prompt)) > maxPromptLen {
		return nil, ErrPromptTooLong
	}
	if orientation == "" {
		orientation = OrientationPortrait
	}
	if !orientation.IsValid() {
		return nil, fmt.Errorf("invalid orientation %q", orientation)
	}

	now := time.Now()
	return &Job{
		ID:          id.Generate(),
		UserID:      userID,
		Prompt:      prompt,
		Orientation: orientation,
		Status:      StatusPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
