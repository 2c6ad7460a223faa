package job

import (
	"context"
	"time"
)

// Repository defines the interface for job persistence.
// It acts as a port in the hexagonal architecture pattern.
//
// Transition and LinkVideo are conditional updates keyed on the job's current
// status: a racing second writer gets ErrInvalidTransition instead of
// silently overwriting a terminal state.
type Repository interface {
	// Create persists a new job.
	Create(ctx context.Context, j *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// ActiveByUser returns the user's jobs with status pending or processing,
	// newest first.
	ActiveByUser(ctx context.Context, userID string) ([]*Job, error)

	// UpdateProgress sets the job's progress percentage and refreshes
	// UpdatedAt. Values outside 0-100 are rejected with
	// ErrProgressOutOfRange without mutating the stored value.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// Transition moves the job to the given status, validating the edge
	// against the state machine. A transition into a terminal state sets
	// CompletedAt; a transition to failed records errMsg. Returns
	// ErrInvalidTransition (naming both states) for a disallowed edge.
	Transition(ctx context.Context, id string, to Status, errMsg string) error

	// MarkProcessing transitions pending -> processing and records the
	// provider-assigned job identifier, if any.
	MarkProcessing(ctx context.Context, id, externalJobID string) error

	// LinkVideo atomically sets videoID, status=completed, progress=100 and
	// CompletedAt. It is the only path to successful completion and requires
	// the job to be processing; otherwise ErrInvalidTransition is returned.
	LinkVideo(ctx context.Context, id, videoID string) error

	// FailStuck bulk-fails processing jobs whose UpdatedAt is older than the
	// threshold, recording errMsg and setting CompletedAt. Returns the number
	// of jobs reclaimed. Used by the startup recovery sweep.
	FailStuck(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error)

	// DeleteTerminalOlderThan removes completed and failed jobs whose
	// CompletedAt is older than the cutoff. Returns the number deleted.
	DeleteTerminalOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
