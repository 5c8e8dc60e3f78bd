package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"garmin-connect-sync/internal/metrics"
)

// Keys used in the kv table. The names match what the original
// deployment stored so an existing database stays readable.
const (
	KeyLastSyncTime            = "lastSyncTime"
	KeyInitialSyncProgress     = "initial_sync_progress"
	KeyActivityStats           = "activity_stats"
	KeyGPSActivitiesCache      = "gps_activities_cache"
	KeyStrengthActivitiesCache = "strength_activities_cache"
)

// GetValue returns the value for a key, or "" with found=false
func (db *DB) GetValue(key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get kv %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue stores a value under a key, replacing any previous value
func (db *DB) SetValue(key, value string) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpSetValue))
	defer timer.ObserveDuration()

	_, err := db.conn.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpSetValue).Inc()
		return fmt.Errorf("failed to set kv %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes a key; deleting a missing key is not an error
func (db *DB) DeleteValue(key string) error {
	_, err := db.conn.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete kv %q: %w", key, err)
	}
	return nil
}
