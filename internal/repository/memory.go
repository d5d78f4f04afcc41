package repository

import (
	"context"
	"sync"
	"time"

	"groomly/internal/models"
)

type memoryEntry struct {
	snap      *models.AvailabilitySnapshot
	expiresAt time.Time
}

// MemorySnapshotRepository keeps availability snapshots in-process.
// Used standalone in single-instance deployments and as the failover
// fallback when Redis is configured.
type MemorySnapshotRepository struct {
	snapshots sync.Map
	ttl       time.Duration
}

func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{ttl: ttl}
}

func snapshotKey(shopID string, date time.Time) string {
	return shopID + ":" + models.DayKey(date)
}

func (r *MemorySnapshotRepository) GetSnapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error) {
	val, ok := r.snapshots.Load(snapshotKey(shopID, date))
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.snapshots.Delete(snapshotKey(shopID, date))
		return nil, nil
	}
	return entry.snap, nil
}

func (r *MemorySnapshotRepository) SetSnapshot(ctx context.Context, snap *models.AvailabilitySnapshot) error {
	r.snapshots.Store(snapshotKey(snap.ShopID, snap.Date), &memoryEntry{
		snap:      snap,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(ctx context.Context, shopID string, date time.Time) error {
	r.snapshots.Delete(snapshotKey(shopID, date))
	return nil
}
