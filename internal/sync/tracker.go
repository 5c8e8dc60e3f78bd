package sync

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/database"
)

// Tracker persists the sync cursor and the resumable initial-sync
// progress in the kv table. Only the orchestrator writes it, and only
// after the corresponding batch's writes are durable.
type Tracker struct {
	db *database.DB
}

// NewTracker creates a Tracker over the given database
func NewTracker(db *database.DB) *Tracker {
	return &Tracker{db: db}
}

// InitialProgress is the resumable state of an incomplete first full
// backfill. The row is deleted once the backfill completes.
type InitialProgress struct {
	TotalProcessed    int    `json:"totalProcessed"`
	CurrentBatchIndex int    `json:"currentBatchIndex"`
	Completed         bool   `json:"completed"`
	StartedAt         string `json:"startedAt"`
}

// LoadCursor returns the committed sync cursor, nil when no sync has
// ever completed.
func (t *Tracker) LoadCursor() (*time.Time, error) {
	value, found, err := t.db.GetValue(database.KeyLastSyncTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync cursor: %w", err)
	}
	if !found {
		return nil, nil
	}

	cursor, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync cursor %q: %w", value, err)
	}
	return &cursor, nil
}

// CommitCursor durably advances the cursor
func (t *Tracker) CommitCursor(cursor time.Time) error {
	if err := t.db.SetValue(database.KeyLastSyncTime, cursor.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to commit sync cursor: %w", err)
	}
	return nil
}

// LoadInitialProgress returns the in-flight backfill state, nil when no
// backfill is pending.
func (t *Tracker) LoadInitialProgress() (*InitialProgress, error) {
	value, found, err := t.db.GetValue(database.KeyInitialSyncProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial sync progress: %w", err)
	}
	if !found {
		return nil, nil
	}

	var progress InitialProgress
	if err := json.Unmarshal([]byte(value), &progress); err != nil {
		return nil, fmt.Errorf("failed to parse initial sync progress: %w", err)
	}
	return &progress, nil
}

// SaveInitialProgress persists the backfill checkpoint
func (t *Tracker) SaveInitialProgress(progress *InitialProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal initial sync progress: %w", err)
	}
	if err := t.db.SetValue(database.KeyInitialSyncProgress, string(data)); err != nil {
		return fmt.Errorf("failed to save initial sync progress: %w", err)
	}
	return nil
}

// ClearInitialProgress removes the backfill checkpoint once complete
func (t *Tracker) ClearInitialProgress() error {
	if err := t.db.DeleteValue(database.KeyInitialSyncProgress); err != nil {
		return fmt.Errorf("failed to clear initial sync progress: %w", err)
	}
	return nil
}
