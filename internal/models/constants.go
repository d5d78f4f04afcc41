package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const DateLayout = "2006-01-02"

const (
	// MinutesPerDay caps interval end minutes.
	MinutesPerDay = 24 * 60

	// DefaultTxnMaxAttempts bounds optimistic transaction retries.
	DefaultTxnMaxAttempts = 5

	// DefaultMaxAdvanceDays is the default booking horizon.
	DefaultMaxAdvanceDays = 365

	// DefaultSnapshotTTL lifetime of cached availability snapshots, seconds.
	DefaultSnapshotTTL = 5 * 60

	// WorkerQueueSize notification worker queue size.
	WorkerQueueSize = 256
)
