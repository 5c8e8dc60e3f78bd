package normalize

import (
	"math"

	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
)

// exerciseKey groups sets belonging to the same movement
type exerciseKey struct {
	category string
	name     string
}

// ApplyStrength turns the raw set sequence into ExerciseSet rows and
// writes the session-level summary onto the activity. ACTIVE sets are
// grouped by (category, exercise name) with fetch order preserved as
// 1-based set order inside each group; REST sets contribute only to the
// session rest time.
func ApplyStrength(a *database.Activity, raw []garmin.RawSet) []*database.ExerciseSet {
	var workingTime, restTime float64
	var sessionReps, activeCount int64

	var order []exerciseKey
	groups := make(map[exerciseKey][]*database.ExerciseSet)

	for _, rs := range raw {
		switch rs.SetType {
		case garmin.SetTypeRest:
			if rs.Duration != nil {
				restTime += *rs.Duration
			}
			continue
		case garmin.SetTypeActive:
			// fall through
		default:
			continue
		}

		key := exerciseKey{}
		if len(rs.Exercises) > 0 {
			key = exerciseKey{category: rs.Exercises[0].Category, name: rs.Exercises[0].Name}
		}

		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}

		set := &database.ExerciseSet{
			ActivityID:   a.ID,
			ExerciseName: key.name,
			Category:     key.category,
			SetNumber:    len(groups[key]) + 1,
			Reps:         rs.RepetitionCount,
			Weight:       weightKg(rs.Weight),
			Duration:     rs.Duration,
			StartTime:    rs.StartTime,
		}
		groups[key] = append(groups[key], set)

		activeCount++
		if rs.RepetitionCount != nil {
			sessionReps += *rs.RepetitionCount
		}
		if rs.Duration != nil {
			workingTime += *rs.Duration
		}
	}

	var rows []*database.ExerciseSet
	for _, key := range order {
		group := groups[key]

		var totalReps int64
		var totalVolume, groupWorkingTime float64
		for _, s := range group {
			reps := int64(0)
			if s.Reps != nil {
				reps = *s.Reps
			}
			totalReps += reps
			if s.Weight != nil {
				totalVolume += float64(reps) * *s.Weight
			}
			if s.Duration != nil {
				groupWorkingTime += *s.Duration
			}
		}
		totalVolume = round2(totalVolume)

		for _, s := range group {
			s.TotalReps = totalReps
			s.TotalVolume = totalVolume
			s.TotalSets = int64(len(group))
			s.TotalWorkingTime = groupWorkingTime
			rows = append(rows, s)
		}
	}

	a.HasStrength = true
	a.TotalReps = &sessionReps
	a.TotalSets = &activeCount
	a.TotalWorkingTime = &workingTime
	a.TotalRestTime = &restTime

	if restTime > 0 {
		ratio := round2(workingTime / restTime)
		a.WorkToRestRatio = &ratio
	}

	pct := workPercentage(workingTime, restTime)
	a.WorkPercentage = &pct

	return rows
}

// workPercentage is round(100 * work / (work + rest)), 0 when both are 0
func workPercentage(workingTime, restTime float64) int64 {
	total := workingTime + restTime
	if total == 0 {
		return 0
	}
	return int64(math.Round(100 * workingTime / total))
}

// weightKg converts the raw weight to kilograms: divide by 1000, round
// to 2 decimals. Zero or absent raw weight stays absent rather than
// becoming 0kg.
func weightKg(raw *float64) *float64 {
	if raw == nil || *raw == 0 {
		return nil
	}
	kg := round2(*raw / 1000)
	return &kg
}
