package repository

import (
	"context"
	"sync/atomic"
	"time"

	"groomly/internal/domain"
	"groomly/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSnapshotRepository serves from the primary (Redis) until it
// errors, then degrades to the in-memory fallback and re-probes the
// primary after a cool-down.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotRepository
	fallback  domain.SnapshotRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

const failoverRetryAfter = time.Minute

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSnapshotRepository) shouldProbe() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > failoverRetryAfter
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error) {
	if !r.isDown.Load() {
		snap, err := r.primary.GetSnapshot(ctx, shopID, date)
		if err == nil {
			return snap, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		snap, err := r.primary.GetSnapshot(ctx, shopID, date)
		if err == nil {
			r.isDown.Store(false)
			return snap, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetSnapshot(ctx, shopID, date)
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, snap *models.AvailabilitySnapshot) error {
	if !r.isDown.Load() {
		if err := r.primary.SetSnapshot(ctx, snap); err != nil {
			r.markDown(err)
		} else {
			return nil
		}
	}
	return r.fallback.SetSnapshot(ctx, snap)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, shopID string, date time.Time) error {
	if !r.isDown.Load() {
		if err := r.primary.ClearSnapshot(ctx, shopID, date); err != nil {
			r.markDown(err)
		} else {
			return nil
		}
	}
	return r.fallback.ClearSnapshot(ctx, shopID, date)
}
