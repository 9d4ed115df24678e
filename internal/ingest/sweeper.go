package ingest

import (
	"context"
	"time"

	"github.com/franckalain/traypositions/internal/models"
	"go.uber.org/zap"
)

// ExpiryRegistry lists and forgets stored uploads
type ExpiryRegistry interface {
	ExpiredUploads(ctx context.Context, before time.Time, limit int) ([]*models.Upload, error)
	DeleteUpload(ctx context.Context, name string) error
}

const sweepBatch = 100

// Sweeper deletes rehosted uploads once they are older than the TTL
type Sweeper struct {
	storage  Storage
	registry ExpiryRegistry
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper; a zero ttl disables it
func NewSweeper(storage Storage, registry ExpiryRegistry, ttl, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		storage:  storage,
		registry: registry,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 {
		s.logger.Info("upload retention disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("upload sweeper started", zap.Duration("ttl", s.ttl), zap.Duration("interval", s.interval))
	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("upload sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes every upload older than the TTL and returns how many were removed
func (s *Sweeper) Sweep(ctx context.Context) (removed int, err error) {
	cutoff := s.now().Add(-s.ttl).UTC()
	defer func() {
		if removed > 0 {
			s.logger.Info("expired uploads removed", zap.Int("count", removed))
		}
	}()

	for {
		expired, err := s.registry.ExpiredUploads(ctx, cutoff, sweepBatch)
		if err != nil {
			return removed, err
		}

		for _, upload := range expired {
			if err := s.storage.Delete(ctx, upload.Name); err != nil {
				// keep the record so the next run tries again
				s.logger.Warn("failed to delete upload", zap.String("name", upload.Name), zap.Error(err))
				return removed, err
			}
			if err := s.registry.DeleteUpload(ctx, upload.Name); err != nil {
				return removed, err
			}
			removed++
		}

		if len(expired) < sweepBatch {
			return removed, nil
		}
	}
}
