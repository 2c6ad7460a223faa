package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/luzhipeng728/sora/internal/sora"
	"github.com/luzhipeng728/sora/internal/storage"
	"github.com/luzhipeng728/sora/internal/stream"
	"github.com/luzhipeng728/sora/internal/video"
)

const (
	// StuckThreshold is how long a processing job may go without an update
	// before the recovery sweep presumes it orphaned by a crash.
	StuckThreshold = 5 * time.Minute

	// restartFailureMessage is recorded on jobs reclaimed by the recovery sweep.
	restartFailureMessage = "Job was interrupted by server restart"

	// noArtifactMessage is recorded when the stream ends without a video URL.
	noArtifactMessage = "Video generation completed but no video URL was received"

	// defaultMaxConcurrentJobs caps simultaneously running orchestrations.
	defaultMaxConcurrentJobs = 8

	// readBufSize is the chunk size for reading the generation stream.
	readBufSize = 4096
)

// GenerationService orchestrates video generation jobs. It wires the Sora
// client, the stream decoder and the job/video repositories into a single
// job's lifecycle: one independent run per job, launched fire-and-forget by
// job creation and never awaited.
type GenerationService struct {
	jobs     Repository
	videos   video.Repository
	client   sora.Client
	archiver storage.Archiver
	logger   *slog.Logger
	// sem bounds concurrent background runs; launches past the ceiling wait
	// for a slot instead of piling up unbounded goroutines on the provider.
	sem *semaphore.Weighted
}

// ServiceOption is a function that configures a GenerationService.
type ServiceOption func(*GenerationService)

// WithMaxConcurrentJobs sets the ceiling on simultaneously running
// orchestrations.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *GenerationService) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithArchiver enables best-effort mirroring of finished artifacts into
// durable storage. Archival failures never fail the job.
func WithArchiver(a storage.Archiver) ServiceOption {
	return func(s *GenerationService) {
		s.archiver = a
	}
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	jobs Repository,
	videos video.Repository,
	client sora.Client,
	logger *slog.Logger,
	opts ...ServiceOption,
) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GenerationService{
		jobs:   jobs,
		videos: videos,
		client: client,
		logger: logger,
		sem:    semaphore.NewWeighted(defaultMaxConcurrentJobs),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the input and persists a new pending job.
func (s *GenerationService) CreateJob(ctx context.Context, userID, prompt string, orientation Orientation) (*Job, error) {
	j, err := New(userID, prompt, orientation)
	if err != nil {
		return nil, err
	}

	s.logger.Info("creating new job",
		slog.String("job_id", j.ID),
		slog.String("user_id", userID),
		slog.String("orientation", string(j.Orientation)),
	)

	if err := s.jobs.Create(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *GenerationService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.jobs.FindByID(ctx, id)
}

// ActiveJobs returns the user's pending and processing jobs.
func (s *GenerationService) ActiveJobs(ctx context.Context, userID string) ([]*Job, error) {
	return s.jobs.ActiveByUser(ctx, userID)
}

// StartBackgroundProcessing launches the orchestrator run for a job and
// returns immediately. The caller should pass a context detached from the
// request (context.WithoutCancel) so the run outlives the HTTP response.
// Runs past the concurrency ceiling wait for a slot in the background;
// creation itself never blocks.
func (s *GenerationService) StartBackgroundProcessing(ctx context.Context, jobID string) {
	go func() {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.Error("failed to acquire processing slot",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			s.failJob(ctx, jobID, err.Error())
			return
		}
		defer s.sem.Release(1)

		s.Process(ctx, jobID)
	}()
}

// Process drives one job from pending to a terminal state. Every failure is
// absorbed into a failed transition; the job record is the source of truth
// for the outcome, so a run never leaves its job stuck in processing.
func (s *GenerationService) Process(ctx context.Context, jobID string) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			// Already deleted: nothing to do, not an error.
			s.logger.Warn("job vanished before processing",
				slog.String("job_id", jobID),
			)
			return
		}
		s.failJob(ctx, jobID, err.Error())
		return
	}

	if err := s.run(ctx, j); err != nil {
		s.logger.Error("job processing failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		s.failJob(ctx, jobID, err.Error())
	}
}

// run executes the happy-path orchestration; any returned error becomes a
// failed transition in Process.
func (s *GenerationService) run(ctx context.Context, j *Job) error {
	logger := s.logger.With(slog.String("job_id", j.ID))

	if err := s.jobs.MarkProcessing(ctx, j.ID, ""); err != nil {
		return err
	}

	model := sora.ModelFor(string(j.Orientation))
	logger.Info("opening generation stream",
		slog.String("model", model),
	)

	body, err := s.client.Generate(ctx, j.Prompt, model)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	parser := stream.NewParser(logger)
	buf := make([]byte, readBufSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if err := s.handleEvents(ctx, j, model, parser.Feed(buf[:n])); err != nil {
				return err
			}
		}
		if parser.Finished() {
			break
		}
		if readErr == io.EOF {
			if err := s.handleEvents(ctx, j, model, parser.Flush()); err != nil {
				return err
			}
			break
		}
		if readErr != nil {
			return fmt.Errorf("stream reading failed: %w", readErr)
		}
	}

	// The stream is done. If no completion event got the job linked to a
	// video, the run produced nothing usable.
	updated, err := s.jobs.FindByID(ctx, j.ID)
	if err != nil {
		return err
	}
	if updated.Status != StatusCompleted {
		logger.Info("stream finished without artifact")
		return s.jobs.Transition(ctx, j.ID, StatusFailed, noArtifactMessage)
	}

	logger.Info("job completed",
		slog.String("video_id", updated.VideoID),
	)
	return nil
}

// handleEvents applies decoded stream events to the job.
func (s *GenerationService) handleEvents(ctx context.Context, j *Job, model string, events []stream.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case stream.KindProgress:
			// Out-of-range values are rejected by the store; skip, don't abort.
			if err := s.jobs.UpdateProgress(ctx, j.ID, ev.Progress); err != nil {
				s.logger.Warn("skipping progress update",
					slog.String("job_id", j.ID),
					slog.Int("progress", ev.Progress),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.logger.Debug("job progress",
				slog.String("job_id", j.ID),
				slog.Int("progress", ev.Progress),
			)
		case stream.KindCompletion:
			if err := s.completeJob(ctx, j, model, ev.VideoURL); err != nil {
				return err
			}
		}
	}
	return nil
}

// completeJob creates the video record and links it to the job. It is
// idempotent against duplicate completion events: a job that is already
// completed is left untouched and no second video is created.
func (s *GenerationService) completeJob(ctx context.Context, j *Job, model, videoURL string) error {
	current, err := s.jobs.FindByID(ctx, j.ID)
	if err != nil {
		return err
	}
	if current.Status == StatusCompleted {
		s.logger.Debug("duplicate completion event ignored",
			slog.String("job_id", j.ID),
		)
		return nil
	}

	v, err := video.New(j.UserID, j.Prompt, string(j.Orientation), model, videoURL)
	if err != nil {
		return err
	}

	if s.archiver != nil {
		if archiveURL, err := s.archiver.Archive(ctx, v.ID+".mp4", videoURL); err != nil {
			s.logger.Warn("artifact archival failed",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		} else {
			v.Metadata = map[string]string{"archive_url": archiveURL}
		}
	}

	if err := s.videos.Create(ctx, v); err != nil {
		return err
	}
	if err := s.jobs.LinkVideo(ctx, j.ID, v.ID); err != nil {
		// A racing writer completed the job first; the duplicate is dropped.
		if errors.Is(err, ErrInvalidTransition) {
			s.logger.Warn("video link lost race, job already terminal",
				slog.String("job_id", j.ID),
				slog.String("video_id", v.ID),
			)
			return nil
		}
		return err
	}

	s.logger.Info("video linked",
		slog.String("job_id", j.ID),
		slog.String("video_id", v.ID),
		slog.String("video_url", videoURL),
	)
	return nil
}

// failJob transitions the job to failed, logging instead of propagating when
// the transition itself is rejected (the job may already be terminal).
func (s *GenerationService) failJob(ctx context.Context, jobID, msg string) {
	if err := s.jobs.Transition(ctx, jobID, StatusFailed, msg); err != nil {
		s.logger.Error("failed to mark job failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// RecoverStuckJobs reclaims jobs orphaned by a crash or restart: processing
// jobs with no update for StuckThreshold are bulk-failed with a fixed
// message. Run once at startup, before serving traffic.
func (s *GenerationService) RecoverStuckJobs(ctx context.Context) (int64, error) {
	count, err := s.jobs.FailStuck(ctx, StuckThreshold, restartFailureMessage)
	if err != nil {
		return 0, fmt.Errorf("recover stuck jobs: %w", err)
	}
	if count > 0 {
		s.logger.Info("recovered stuck jobs",
			slog.Int64("count", count),
		)
	}
	return count, nil
}
