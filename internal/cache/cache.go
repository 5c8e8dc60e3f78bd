// Package cache maintains precomputed JSON blobs in the kv table so
// read endpoints never run aggregate queries on the hot path.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/metrics"
)

const (
	kindStats              = "activity_stats"
	kindGPSActivities      = "gps_activities"
	kindStrengthActivities = "strength_activities"
)

// Refresher recomputes the cached blobs from the activities table
type Refresher struct {
	db     *database.DB
	logger *slog.Logger
}

// NewRefresher creates a Refresher
func NewRefresher(db *database.DB, logger *slog.Logger) *Refresher {
	return &Refresher{db: db, logger: logger}
}

// RefreshAll recomputes every cache blob. All three are attempted even
// when one fails; the first error is returned.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	var firstErr error
	for _, refresh := range []func(context.Context) error{
		r.RefreshStats,
		r.RefreshGPSActivities,
		r.RefreshStrengthActivities,
	} {
		if err := refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RefreshStats recomputes the overall activity stats blob
func (r *Refresher) RefreshStats(ctx context.Context) error {
	stats, err := r.db.GetActivityStats()
	if err != nil {
		return r.fail(kindStats, err)
	}
	return r.store(kindStats, database.KeyActivityStats, stats)
}

// RefreshGPSActivities recomputes the GPS activity listing blob
func (r *Refresher) RefreshGPSActivities(ctx context.Context) error {
	activities, err := r.db.ListGPSActivities()
	if err != nil {
		return r.fail(kindGPSActivities, err)
	}
	if activities == nil {
		activities = []*database.GPSActivity{}
	}
	return r.store(kindGPSActivities, database.KeyGPSActivitiesCache, activities)
}

// RefreshStrengthActivities recomputes the strength activity listing blob
func (r *Refresher) RefreshStrengthActivities(ctx context.Context) error {
	activities, err := r.db.ListStrengthActivities()
	if err != nil {
		return r.fail(kindStrengthActivities, err)
	}
	if activities == nil {
		activities = []*database.StrengthActivity{}
	}
	return r.store(kindStrengthActivities, database.KeyStrengthActivitiesCache, activities)
}

func (r *Refresher) store(kind, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return r.fail(kind, fmt.Errorf("failed to marshal %s cache: %w", kind, err))
	}
	if err := r.db.SetValue(key, string(data)); err != nil {
		return r.fail(kind, err)
	}
	metrics.CacheRefreshesTotal.WithLabelValues(kind, "success").Inc()
	r.logger.Debug("cache refreshed", "kind", kind, "bytes", len(data))
	return nil
}

func (r *Refresher) fail(kind string, err error) error {
	metrics.CacheRefreshesTotal.WithLabelValues(kind, "error").Inc()
	return err
}
