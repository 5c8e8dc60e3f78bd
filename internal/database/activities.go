package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"garmin-connect-sync/internal/metrics"
)

// Activity represents one normalized exercise session. Optional metrics
// are pointer-typed so absence survives the round trip to SQLite as NULL
// instead of being coerced to zero.
type Activity struct {
	ID        int64
	Name      *string
	Type      string
	StartTime *string
	Duration  *float64
	MovingTime *float64

	Calories      *float64
	AverageHR     *float64
	MaxHR         *float64
	Distance      *float64
	AverageSpeed  *float64
	MaxSpeed      *float64
	ElevationGain *float64
	ElevationLoss *float64

	AveragePower        *float64
	MaxPower            *float64
	NormalizedPower     *float64
	TrainingStressScore *float64
	AverageCadence      *float64
	MaxCadence          *float64

	HasGPS         bool
	StartLatitude  *float64
	StartLongitude *float64
	EndLatitude    *float64
	EndLongitude   *float64
	MinLatitude    *float64
	MaxLatitude    *float64
	MinLongitude   *float64
	MaxLongitude   *float64
	GPSTrackJSON   *string

	HasWeather         bool
	WeatherTemperature *float64
	WeatherHumidity    *float64
	WeatherWindSpeed   *float64
	WeatherDescription *string
	WeatherStation     *string
	WeatherIssueTime   *string

	HasStrength      bool
	TotalReps        *int64
	TotalSets        *int64
	TotalWorkingTime *float64
	TotalRestTime    *float64
	WorkToRestRatio  *float64
	WorkPercentage   *int64

	CreatedAt int64
	UpdatedAt int64
}

// ExerciseSet represents one logged ACTIVE set within a strength activity
type ExerciseSet struct {
	ID         int64
	ActivityID int64

	ExerciseName string
	Category     string
	SetNumber    int

	Reps      *int64
	Weight    *float64
	Duration  *float64
	StartTime *string

	TotalReps        int64
	TotalVolume      float64
	TotalSets        int64
	TotalWorkingTime float64
}

const activityColumns = `
	id, name, type, start_time, duration, moving_time,
	calories, average_hr, max_hr, distance, average_speed, max_speed,
	elevation_gain, elevation_loss,
	average_power, max_power, normalized_power, training_stress_score,
	average_cadence, max_cadence,
	has_gps, start_latitude, start_longitude, end_latitude, end_longitude,
	min_latitude, max_latitude, min_longitude, max_longitude, gps_track_json,
	has_weather, weather_temperature, weather_humidity, weather_wind_speed,
	weather_description, weather_station, weather_issue_time,
	has_strength, total_reps, total_sets, total_working_time, total_rest_time,
	work_to_rest_ratio, work_percentage,
	created_at, updated_at`

func scanActivity(row interface{ Scan(...any) error }) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.Name, &a.Type, &a.StartTime, &a.Duration, &a.MovingTime,
		&a.Calories, &a.AverageHR, &a.MaxHR, &a.Distance, &a.AverageSpeed, &a.MaxSpeed,
		&a.ElevationGain, &a.ElevationLoss,
		&a.AveragePower, &a.MaxPower, &a.NormalizedPower, &a.TrainingStressScore,
		&a.AverageCadence, &a.MaxCadence,
		&a.HasGPS, &a.StartLatitude, &a.StartLongitude, &a.EndLatitude, &a.EndLongitude,
		&a.MinLatitude, &a.MaxLatitude, &a.MinLongitude, &a.MaxLongitude, &a.GPSTrackJSON,
		&a.HasWeather, &a.WeatherTemperature, &a.WeatherHumidity, &a.WeatherWindSpeed,
		&a.WeatherDescription, &a.WeatherStation, &a.WeatherIssueTime,
		&a.HasStrength, &a.TotalReps, &a.TotalSets, &a.TotalWorkingTime, &a.TotalRestTime,
		&a.WorkToRestRatio, &a.WorkPercentage,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertActivity writes one activity and its child sets as a single
// transaction: delete-all-existing-sets, upsert the activity row
// (created_at preserved when the row already exists), insert the new
// sets. Re-applying the same payload leaves exactly one activity row and
// the set rows implied by the latest payload.
func (db *DB) UpsertActivity(a *Activity, sets []*ExerciseSet) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertActivity))
	defer timer.ObserveDuration()

	now := time.Now().Unix()
	a.CreatedAt = now
	a.UpdatedAt = now

	tx, err := db.conn.Begin()
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivity).Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete first so a crash mid-write leaves at worst missing sets,
	// never stale ones attached to a fresh activity row.
	if _, err := tx.Exec(`DELETE FROM exercise_sets WHERE activity_id = ?`, a.ID); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivity).Inc()
		return fmt.Errorf("failed to delete existing sets: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?,
		        ?, ?,
		        ?, ?, ?, ?,
		        ?, ?,
		        ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?,
		        ?, ?, ?, ?,
		        ?, ?, ?,
		        ?, ?, ?, ?, ?,
		        ?, ?,
		        ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_time = excluded.start_time,
			duration = excluded.duration,
			moving_time = excluded.moving_time,
			calories = excluded.calories,
			average_hr = excluded.average_hr,
			max_hr = excluded.max_hr,
			distance = excluded.distance,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			elevation_gain = excluded.elevation_gain,
			elevation_loss = excluded.elevation_loss,
			average_power = excluded.average_power,
			max_power = excluded.max_power,
			normalized_power = excluded.normalized_power,
			training_stress_score = excluded.training_stress_score,
			average_cadence = excluded.average_cadence,
			max_cadence = excluded.max_cadence,
			has_gps = excluded.has_gps,
			start_latitude = excluded.start_latitude,
			start_longitude = excluded.start_longitude,
			end_latitude = excluded.end_latitude,
			end_longitude = excluded.end_longitude,
			min_latitude = excluded.min_latitude,
			max_latitude = excluded.max_latitude,
			min_longitude = excluded.min_longitude,
			max_longitude = excluded.max_longitude,
			gps_track_json = excluded.gps_track_json,
			has_weather = excluded.has_weather,
			weather_temperature = excluded.weather_temperature,
			weather_humidity = excluded.weather_humidity,
			weather_wind_speed = excluded.weather_wind_speed,
			weather_description = excluded.weather_description,
			weather_station = excluded.weather_station,
			weather_issue_time = excluded.weather_issue_time,
			has_strength = excluded.has_strength,
			total_reps = excluded.total_reps,
			total_sets = excluded.total_sets,
			total_working_time = excluded.total_working_time,
			total_rest_time = excluded.total_rest_time,
			work_to_rest_ratio = excluded.work_to_rest_ratio,
			work_percentage = excluded.work_percentage,
			updated_at = excluded.updated_at
	`,
		a.ID, a.Name, a.Type, a.StartTime, a.Duration, a.MovingTime,
		a.Calories, a.AverageHR, a.MaxHR, a.Distance, a.AverageSpeed, a.MaxSpeed,
		a.ElevationGain, a.ElevationLoss,
		a.AveragePower, a.MaxPower, a.NormalizedPower, a.TrainingStressScore,
		a.AverageCadence, a.MaxCadence,
		a.HasGPS, a.StartLatitude, a.StartLongitude, a.EndLatitude, a.EndLongitude,
		a.MinLatitude, a.MaxLatitude, a.MinLongitude, a.MaxLongitude, a.GPSTrackJSON,
		a.HasWeather, a.WeatherTemperature, a.WeatherHumidity, a.WeatherWindSpeed,
		a.WeatherDescription, a.WeatherStation, a.WeatherIssueTime,
		a.HasStrength, a.TotalReps, a.TotalSets, a.TotalWorkingTime, a.TotalRestTime,
		a.WorkToRestRatio, a.WorkPercentage,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivity).Inc()
		return fmt.Errorf("failed to upsert activity %d: %w", a.ID, err)
	}

	for _, s := range sets {
		_, err := tx.Exec(`
			INSERT INTO exercise_sets (
				activity_id, exercise_name, category, set_number,
				reps, weight, duration, start_time,
				total_reps, total_volume, total_sets, total_working_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, s.ExerciseName, s.Category, s.SetNumber,
			s.Reps, s.Weight, s.Duration, s.StartTime,
			s.TotalReps, s.TotalVolume, s.TotalSets, s.TotalWorkingTime)
		if err != nil {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivity).Inc()
			return fmt.Errorf("failed to insert exercise set for activity %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertActivity).Inc()
		return fmt.Errorf("failed to commit activity %d: %w", a.ID, err)
	}
	return nil
}

// GetActivity retrieves an activity by ID, nil if not found
func (db *DB) GetActivity(activityID int64) (*Activity, error) {
	row := db.conn.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, activityID)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// HasActivity reports whether an activity row exists
func (db *DB) HasActivity(activityID int64) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM activities WHERE id = ?`, activityID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check activity existence: %w", err)
	}
	return true, nil
}

// DeleteActivity removes an activity; its sets go with it via cascade
func (db *DB) DeleteActivity(activityID int64) error {
	result, err := db.conn.Exec(`DELETE FROM activities WHERE id = ?`, activityID)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("activity not found")
	}
	return nil
}

// GetExerciseSets returns the sets for an activity in insertion order
func (db *DB) GetExerciseSets(activityID int64) ([]*ExerciseSet, error) {
	rows, err := db.conn.Query(`
		SELECT id, activity_id, exercise_name, category, set_number,
		       reps, weight, duration, start_time,
		       total_reps, total_volume, total_sets, total_working_time
		FROM exercise_sets
		WHERE activity_id = ?
		ORDER BY id ASC
	`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercise sets: %w", err)
	}
	defer rows.Close()

	var sets []*ExerciseSet
	for rows.Next() {
		var s ExerciseSet
		err := rows.Scan(
			&s.ID, &s.ActivityID, &s.ExerciseName, &s.Category, &s.SetNumber,
			&s.Reps, &s.Weight, &s.Duration, &s.StartTime,
			&s.TotalReps, &s.TotalVolume, &s.TotalSets, &s.TotalWorkingTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise set: %w", err)
		}
		sets = append(sets, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exercise sets: %w", err)
	}
	return sets, nil
}

// ActivityRef is a compact listing row for backfill endpoints
type ActivityRef struct {
	ID        int64    `json:"id"`
	Name      *string  `json:"name"`
	Type      string   `json:"type"`
	StartTime *string  `json:"startTime"`
	Distance  *float64 `json:"distance"`
}

// ListActivitiesWithoutGPS returns distance-bearing activities missing a
// GPS track, newest first
func (db *DB) ListActivitiesWithoutGPS() ([]*ActivityRef, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, type, start_time, distance
		FROM activities
		WHERE has_gps = 0 AND distance IS NOT NULL AND distance > 0
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities without gps: %w", err)
	}
	defer rows.Close()

	var refs []*ActivityRef
	for rows.Next() {
		var r ActivityRef
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.StartTime, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan activity ref: %w", err)
		}
		refs = append(refs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity refs: %w", err)
	}
	return refs, nil
}
