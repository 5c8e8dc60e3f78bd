package normalize

import (
	"testing"

	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
)

func benchSet(reps int64, weight, duration float64) garmin.RawSet {
	return garmin.RawSet{
		SetType:         garmin.SetTypeActive,
		RepetitionCount: &reps,
		Weight:          &weight,
		Duration:        &duration,
		Exercises:       []garmin.RawExercise{{Category: "BENCH_PRESS", Name: "BARBELL_BENCH_PRESS"}},
	}
}

func restSet(duration float64) garmin.RawSet {
	return garmin.RawSet{SetType: garmin.SetTypeRest, Duration: &duration}
}

func TestApplyStrengthSessionSummary(t *testing.T) {
	a := &database.Activity{ID: 1}
	raw := []garmin.RawSet{
		benchSet(10, 60000, 60),
		restSet(30),
		benchSet(8, 60000, 40),
	}

	rows := ApplyStrength(a, raw)

	if !a.HasStrength {
		t.Fatal("Expected has_strength true")
	}
	if *a.TotalReps != 18 {
		t.Errorf("Expected 18 session reps, got %d", *a.TotalReps)
	}
	if *a.TotalSets != 2 {
		t.Errorf("Expected 2 active sets, got %d", *a.TotalSets)
	}
	if *a.TotalWorkingTime != 100 {
		t.Errorf("Expected working time 100, got %v", *a.TotalWorkingTime)
	}
	if *a.TotalRestTime != 30 {
		t.Errorf("Expected rest time 30, got %v", *a.TotalRestTime)
	}
	if a.WorkToRestRatio == nil || *a.WorkToRestRatio != 3.33 {
		t.Errorf("Expected ratio 3.33, got %v", a.WorkToRestRatio)
	}
	if a.WorkPercentage == nil || *a.WorkPercentage != 77 {
		t.Errorf("Expected work percentage 77, got %v", a.WorkPercentage)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 set rows, got %d", len(rows))
	}
}

func TestApplyStrengthNoRest(t *testing.T) {
	a := &database.Activity{ID: 1}
	raw := []garmin.RawSet{benchSet(10, 60000, 60)}

	ApplyStrength(a, raw)

	// No rest time: ratio is undefined, not infinity and not zero
	if a.WorkToRestRatio != nil {
		t.Errorf("Expected nil ratio with zero rest, got %v", *a.WorkToRestRatio)
	}
	if *a.WorkPercentage != 100 {
		t.Errorf("Expected work percentage 100, got %d", *a.WorkPercentage)
	}
}

func TestApplyStrengthEmptySession(t *testing.T) {
	a := &database.Activity{ID: 1}
	rows := ApplyStrength(a, []garmin.RawSet{restSet(0)})

	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
	// Both durations zero: percentage is 0, not NaN
	if *a.WorkPercentage != 0 {
		t.Errorf("Expected work percentage 0, got %d", *a.WorkPercentage)
	}
	if a.WorkToRestRatio != nil {
		t.Errorf("Expected nil ratio, got %v", *a.WorkToRestRatio)
	}
}

func TestApplyStrengthGroupingAndRollups(t *testing.T) {
	a := &database.Activity{ID: 1}
	squat := func(reps int64, weight, duration float64) garmin.RawSet {
		return garmin.RawSet{
			SetType:         garmin.SetTypeActive,
			RepetitionCount: &reps,
			Weight:          &weight,
			Duration:        &duration,
			Exercises:       []garmin.RawExercise{{Category: "SQUAT", Name: "BARBELL_BACK_SQUAT"}},
		}
	}
	raw := []garmin.RawSet{
		benchSet(10, 60000, 60),
		squat(5, 100000, 45),
		benchSet(8, 60000, 50),
	}

	rows := ApplyStrength(a, raw)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	// Rows come out grouped by exercise in first-seen order, set order
	// preserved within each group
	if rows[0].ExerciseName != "BARBELL_BENCH_PRESS" || rows[0].SetNumber != 1 {
		t.Errorf("Unexpected first row: %s set %d", rows[0].ExerciseName, rows[0].SetNumber)
	}
	if rows[1].ExerciseName != "BARBELL_BENCH_PRESS" || rows[1].SetNumber != 2 {
		t.Errorf("Unexpected second row: %s set %d", rows[1].ExerciseName, rows[1].SetNumber)
	}
	if rows[2].ExerciseName != "BARBELL_BACK_SQUAT" || rows[2].SetNumber != 1 {
		t.Errorf("Unexpected third row: %s set %d", rows[2].ExerciseName, rows[2].SetNumber)
	}

	// Per-exercise rollups duplicated on every row of the group
	if rows[0].TotalReps != 18 || rows[1].TotalReps != 18 {
		t.Errorf("Expected bench rollup reps 18, got %d and %d", rows[0].TotalReps, rows[1].TotalReps)
	}
	if rows[0].TotalSets != 2 {
		t.Errorf("Expected bench total sets 2, got %d", rows[0].TotalSets)
	}
	// 18 reps at 60kg
	if rows[0].TotalVolume != 1080 {
		t.Errorf("Expected bench volume 1080, got %v", rows[0].TotalVolume)
	}
	if rows[2].TotalVolume != 500 {
		t.Errorf("Expected squat volume 500, got %v", rows[2].TotalVolume)
	}
	if rows[0].TotalWorkingTime != 110 {
		t.Errorf("Expected bench working time 110, got %v", rows[0].TotalWorkingTime)
	}
}

func TestWeightConversion(t *testing.T) {
	a := &database.Activity{ID: 1}
	raw := []garmin.RawSet{benchSet(10, 82500, 60)}

	rows := ApplyStrength(a, raw)
	if rows[0].Weight == nil || *rows[0].Weight != 82.5 {
		t.Errorf("Expected 82500 converted to 82.5kg, got %v", rows[0].Weight)
	}

	// Zero weight means unrecorded, not 0kg
	a2 := &database.Activity{ID: 2}
	zero := benchSet(10, 0, 60)
	rows = ApplyStrength(a2, []garmin.RawSet{zero})
	if rows[0].Weight != nil {
		t.Errorf("Expected nil weight for zero raw value, got %v", *rows[0].Weight)
	}

	// Absent weight stays absent
	a3 := &database.Activity{ID: 3}
	bodyweight := garmin.RawSet{
		SetType:         garmin.SetTypeActive,
		RepetitionCount: ptrI(12),
		Duration:        ptrF(40),
		Exercises:       []garmin.RawExercise{{Category: "PULL_UP", Name: "PULL_UP"}},
	}
	rows = ApplyStrength(a3, []garmin.RawSet{bodyweight})
	if rows[0].Weight != nil {
		t.Errorf("Expected nil weight when unreported, got %v", *rows[0].Weight)
	}
}

func TestApplyStrengthUnknownSetTypeIgnored(t *testing.T) {
	a := &database.Activity{ID: 1}
	odd := garmin.RawSet{SetType: "SUPERSET", Duration: ptrF(60)}
	rows := ApplyStrength(a, []garmin.RawSet{odd, benchSet(10, 60000, 60)})

	if len(rows) != 1 {
		t.Fatalf("Expected unknown set type ignored, got %d rows", len(rows))
	}
	if *a.TotalWorkingTime != 60 {
		t.Errorf("Expected working time 60, got %v", *a.TotalWorkingTime)
	}
}
