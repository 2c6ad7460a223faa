// Package bootstrap provides dependency initialization for the API server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luzhipeng728/sora/internal/auth"
	"github.com/luzhipeng728/sora/internal/config"
	"github.com/luzhipeng728/sora/internal/job"
	"github.com/luzhipeng728/sora/internal/sora"
	"github.com/luzhipeng728/sora/internal/storage"
	"github.com/luzhipeng728/sora/internal/user"
	"github.com/luzhipeng728/sora/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService  *job.GenerationService
	AuthService *auth.Service
	Videos      video.Repository

	// pool is non-nil when Postgres repositories are in use.
	pool *pgxpool.Pool
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize repositories
	var (
		jobs   job.Repository
		videos video.Repository
		users  user.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		deps.pool = pool
		jobs = job.NewPostgresRepository(pool)
		videos = video.NewPostgresRepository(pool)
		users = user.NewPostgresRepository(pool)
		logger.Info("postgres repositories configured")
	} else {
		jobs = job.NewMemoryRepository()
		videos = video.NewMemoryRepository()
		users = user.NewMemoryRepository()
		logger.Info("in-memory repositories configured")
	}

	// Initialize Sora client
	soraClient, err := sora.NewClient(cfg.SoraAPIURL, sora.WithToken(cfg.SoraAPIToken))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create Sora client: %w", err)
	}

	// Initialize generation service
	svcOpts := []job.ServiceOption{
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
	}
	if archiver, err := initArchiver(cfg, logger); err != nil {
		deps.Close()
		return nil, err
	} else if archiver != nil {
		svcOpts = append(svcOpts, job.WithArchiver(archiver))
	}

	deps.JobService = job.NewGenerationService(jobs, videos, soraClient, logger, svcOpts...)
	deps.AuthService = auth.NewService(users, cfg.JWTSecret)
	deps.Videos = videos

	return deps, nil
}

// initArchiver creates the artifact archiver selected by configuration,
// or nil when archival is disabled.
func initArchiver(cfg *config.Config, logger *slog.Logger) (storage.Archiver, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		archiver, err := storage.NewS3Archiver(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 archiver: %w", err)
		}
		logger.Info("S3 archival configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return archiver, nil
	}

	if cfg.ArchiveDir != "" {
		archiver, err := storage.NewLocalArchiver(cfg.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("create local archiver: %w", err)
		}
		logger.Info("local archival configured",
			slog.String("dir", cfg.ArchiveDir),
		)
		return archiver, nil
	}

	return nil, nil
}
