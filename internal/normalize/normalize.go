// Package normalize maps raw Garmin payloads into the relational shape
// stored by the database package. Variant payload shapes are resolved
// here exactly once; nothing downstream re-sniffs JSON.
package normalize

import (
	"math"

	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
)

// StrengthTrainingType is the upstream type key that carries exercise sets
const StrengthTrainingType = "strength_training"

// outdoorTypes is the fixed set of distance-bearing outdoor activity
// types eligible for GPS and weather enrichment.
var outdoorTypes = map[string]bool{
	"running": true,
	"cycling": true,
	"walking": true,
	"hiking":  true,
}

// Enrichments carries the per-activity enrichment payloads. Each is
// independently optional; nil means the fetch was skipped or degraded
// to absent.
type Enrichments struct {
	GPS     *garmin.GPSPayload
	Weather *garmin.WeatherPayload
	Sets    []garmin.RawSet
}

// TypeKey returns the activity's type, passing unknown upstream
// categories through verbatim rather than rejecting them.
func TypeKey(raw *garmin.RawActivity) string {
	if raw.ActivityType.TypeKey == "" {
		return "unknown"
	}
	return raw.ActivityType.TypeKey
}

// NeedsGPS reports whether a GPS fetch applies: outdoor type with a
// positive distance.
func NeedsGPS(raw *garmin.RawActivity) bool {
	if !outdoorTypes[TypeKey(raw)] {
		return false
	}
	return raw.Distance != nil && *raw.Distance > 0
}

// NeedsWeather reports whether a weather fetch applies
func NeedsWeather(raw *garmin.RawActivity) bool {
	return outdoorTypes[TypeKey(raw)]
}

// NeedsExerciseSets reports whether a set-breakdown fetch applies
func NeedsExerciseSets(raw *garmin.RawActivity) bool {
	return TypeKey(raw) == StrengthTrainingType
}

// EstimateCalls returns the number of extra upstream calls the activity
// will cost beyond its listing. The estimate is static and known before
// any call is made, which is what lets the call-budget check run ahead
// of admission.
func EstimateCalls(raw *garmin.RawActivity) int {
	calls := 0
	if NeedsGPS(raw) {
		calls++
	}
	if NeedsWeather(raw) {
		calls++
	}
	if NeedsExerciseSets(raw) {
		calls++
	}
	return calls
}

// Normalize maps one raw activity plus its enrichments into an Activity
// row and its child set rows.
func Normalize(raw *garmin.RawActivity, enr Enrichments) (*database.Activity, []*database.ExerciseSet) {
	typeKey := TypeKey(raw)

	a := &database.Activity{
		ID:         raw.ActivityID,
		Name:       raw.ActivityName,
		Type:       typeKey,
		StartTime:  raw.StartTimeLocal,
		Duration:   raw.Duration,
		MovingTime: raw.MovingDuration,

		Calories:      raw.Calories,
		AverageHR:     raw.AverageHR,
		MaxHR:         raw.MaxHR,
		Distance:      raw.Distance,
		AverageSpeed:  raw.AverageSpeed,
		MaxSpeed:      raw.MaxSpeed,
		ElevationGain: raw.ElevationGain,
		ElevationLoss: raw.ElevationLoss,
	}

	// Power and cadence only mean something for the moving types
	if outdoorTypes[typeKey] {
		a.AveragePower = raw.AvgPower
		a.MaxPower = raw.MaxPower
		a.NormalizedPower = raw.NormalizedPower
		a.TrainingStressScore = raw.TrainingStressScore
		a.AverageCadence = firstNonNil(raw.AvgRunCadence, raw.AvgBikeCadence)
		a.MaxCadence = firstNonNil(raw.MaxRunCadence, raw.MaxBikeCadence)
	}

	if enr.GPS != nil {
		ApplyGPS(a, enr.GPS)
	}

	if enr.Weather != nil {
		applyWeather(a, enr.Weather)
	}

	var sets []*database.ExerciseSet
	if len(enr.Sets) > 0 {
		sets = ApplyStrength(a, enr.Sets)
	}

	return a, sets
}

func applyWeather(a *database.Activity, w *garmin.WeatherPayload) {
	a.HasWeather = true
	a.WeatherTemperature = w.Temp
	a.WeatherHumidity = w.RelativeHumidity
	a.WeatherWindSpeed = w.WindSpeed
	a.WeatherIssueTime = w.IssueDate
	if w.WeatherTypeDTO != nil && w.WeatherTypeDTO.Desc != "" {
		desc := w.WeatherTypeDTO.Desc
		a.WeatherDescription = &desc
	}
	if w.WeatherStationDTO != nil && w.WeatherStationDTO.Name != "" {
		station := w.WeatherStationDTO.Name
		a.WeatherStation = &station
	}
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// round2 rounds to 2 decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
