package metrics

import (
	"context"
	"log/slog"
	"time"
)

// CursorStore is the slice of the database needed to observe sync state
type CursorStore interface {
	GetValue(key string) (string, bool, error)
}

// StartCursorAgeCollector periodically reads the committed sync cursor
// and exports it as a gauge, so alerting can catch a sync that silently
// stopped advancing.
func StartCursorAgeCollector(ctx context.Context, store CursorStore, cursorKey string, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	collectCursorAge(store, cursorKey, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cursor age collector stopping")
			return
		case <-ticker.C:
			collectCursorAge(store, cursorKey, logger)
		}
	}
}

func collectCursorAge(store CursorStore, cursorKey string, logger *slog.Logger) {
	value, found, err := store.GetValue(cursorKey)
	if err != nil {
		logger.Error("Failed to read sync cursor", "error", err)
		return
	}
	if !found {
		return
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		logger.Error("Failed to parse sync cursor", "value", value, "error", err)
		return
	}

	SyncLastSuccessTimestamp.Set(float64(t.Unix()))
}
