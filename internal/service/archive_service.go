package service

import (
	"context"
	"log/slog"
	"time"
)

// Archiver uploads one batch of events and reports where it went.
type Archiver interface {
	ArchiveOnce(ctx context.Context) (path string, n int, err error)
}

// ArchiveMetrics counts archived events.
type ArchiveMetrics interface {
	ObserveArchived(n int)
}

// ArchiveService drains the event log into object storage on a timer.
type ArchiveService struct {
	archiver Archiver
	metrics  ArchiveMetrics
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService. metrics may be nil.
func NewArchiveService(archiver Archiver, metrics ArchiveMetrics, interval time.Duration, logger *slog.Logger) *ArchiveService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveService{
		archiver: archiver,
		metrics:  metrics,
		interval: interval,
		logger:   logger.With(slog.String("component", "archive")),
	}
}

// Run drains on every tick until ctx is done.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Drain(ctx); err != nil {
				s.logger.ErrorContext(ctx, "event archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Drain archives batches until none are pending and returns the total
// number of events archived.
func (s *ArchiveService) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		path, n, err := s.archiver.ArchiveOnce(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
		if s.metrics != nil {
			s.metrics.ObserveArchived(n)
		}
		s.logger.InfoContext(ctx, "events archived", slog.String("path", path), slog.Int("count", n))
	}
}
