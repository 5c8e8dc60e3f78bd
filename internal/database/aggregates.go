package database

import (
	"fmt"
	"time"
)

// ActivityStats is the overall summary recomputed by the cache refresher
type ActivityStats struct {
	TotalActivities int64            `json:"totalActivities"`
	CountsByType    map[string]int64 `json:"countsByType"`
	TotalDistance   float64          `json:"totalDistance"`
	TotalDuration   float64          `json:"totalDuration"`
	TotalCalories   float64          `json:"totalCalories"`
	GeneratedAt     string           `json:"generatedAt"`
}

// GetActivityStats computes the overall stats from the activities table
func (db *DB) GetActivityStats() (*ActivityStats, error) {
	stats := &ActivityStats{
		CountsByType: make(map[string]int64),
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(distance), 0),
		       COALESCE(SUM(duration), 0),
		       COALESCE(SUM(calories), 0)
		FROM activities
	`).Scan(&stats.TotalActivities, &stats.TotalDistance, &stats.TotalDuration, &stats.TotalCalories)
	if err != nil {
		return nil, fmt.Errorf("failed to compute activity totals: %w", err)
	}

	rows, err := db.conn.Query(`SELECT type, COUNT(*) FROM activities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.CountsByType[typ] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}
	return stats, nil
}

// GPSActivity is a listing row for the GPS-activity cache. The full
// track stays out of the cache; start/end and bounds are enough for the
// read side.
type GPSActivity struct {
	ID             int64    `json:"id"`
	Name           *string  `json:"name"`
	Type           string   `json:"type"`
	StartTime      *string  `json:"startTime"`
	Distance       *float64 `json:"distance"`
	StartLatitude  *float64 `json:"startLatitude"`
	StartLongitude *float64 `json:"startLongitude"`
	EndLatitude    *float64 `json:"endLatitude"`
	EndLongitude   *float64 `json:"endLongitude"`
	MinLatitude    *float64 `json:"minLatitude"`
	MaxLatitude    *float64 `json:"maxLatitude"`
	MinLongitude   *float64 `json:"minLongitude"`
	MaxLongitude   *float64 `json:"maxLongitude"`
}

// ListGPSActivities returns all activities with a GPS track, newest first
func (db *DB) ListGPSActivities() ([]*GPSActivity, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, type, start_time, distance,
		       start_latitude, start_longitude, end_latitude, end_longitude,
		       min_latitude, max_latitude, min_longitude, max_longitude
		FROM activities
		WHERE has_gps = 1
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gps activities: %w", err)
	}
	defer rows.Close()

	var out []*GPSActivity
	for rows.Next() {
		var g GPSActivity
		err := rows.Scan(&g.ID, &g.Name, &g.Type, &g.StartTime, &g.Distance,
			&g.StartLatitude, &g.StartLongitude, &g.EndLatitude, &g.EndLongitude,
			&g.MinLatitude, &g.MaxLatitude, &g.MinLongitude, &g.MaxLongitude)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gps activity: %w", err)
		}
		out = append(out, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gps activities: %w", err)
	}
	return out, nil
}

// StrengthActivity is a listing row for the strength-activity cache
type StrengthActivity struct {
	ID               int64    `json:"id"`
	Name             *string  `json:"name"`
	StartTime        *string  `json:"startTime"`
	TotalReps        *int64   `json:"totalReps"`
	TotalSets        *int64   `json:"totalSets"`
	TotalWorkingTime *float64 `json:"totalWorkingTime"`
	TotalRestTime    *float64 `json:"totalRestTime"`
	WorkToRestRatio  *float64 `json:"workToRestRatio"`
	WorkPercentage   *int64   `json:"workPercentage"`
}

// ListStrengthActivities returns all strength activities with their
// session aggregates, newest first
func (db *DB) ListStrengthActivities() ([]*StrengthActivity, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, start_time, total_reps, total_sets,
		       total_working_time, total_rest_time, work_to_rest_ratio, work_percentage
		FROM activities
		WHERE has_strength = 1
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list strength activities: %w", err)
	}
	defer rows.Close()

	var out []*StrengthActivity
	for rows.Next() {
		var s StrengthActivity
		err := rows.Scan(&s.ID, &s.Name, &s.StartTime, &s.TotalReps, &s.TotalSets,
			&s.TotalWorkingTime, &s.TotalRestTime, &s.WorkToRestRatio, &s.WorkPercentage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strength activity: %w", err)
		}
		out = append(out, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strength activities: %w", err)
	}
	return out, nil
}
