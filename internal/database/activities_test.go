package database

import (
	"testing"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }
func ptrS(v string) *string   { return &v }

func testActivity(id int64) *Activity {
	return &Activity{
		ID:        id,
		Name:      ptrS("Morning Run"),
		Type:      "running",
		StartTime: ptrS("2024-05-01 07:30:00"),
		Duration:  ptrF(1800),
		Distance:  ptrF(5000),
		Calories:  ptrF(400),
	}
}

func TestUpsertAndGetActivity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.UpsertActivity(testActivity(1001), nil); err != nil {
		t.Fatalf("Failed to upsert activity: %v", err)
	}

	retrieved, err := db.GetActivity(1001)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected activity, got nil")
	}
	if retrieved.Type != "running" {
		t.Errorf("Expected type running, got %s", retrieved.Type)
	}
	if retrieved.Name == nil || *retrieved.Name != "Morning Run" {
		t.Errorf("Expected name Morning Run, got %v", retrieved.Name)
	}
	if retrieved.Distance == nil || *retrieved.Distance != 5000 {
		t.Errorf("Expected distance 5000, got %v", retrieved.Distance)
	}
	// Absent metrics stay absent
	if retrieved.AverageHR != nil {
		t.Errorf("Expected nil average hr, got %v", *retrieved.AverageHR)
	}
	if retrieved.HasGPS {
		t.Error("Expected has_gps false")
	}
}

func TestGetActivityNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	retrieved, err := db.GetActivity(404)
	if err != nil {
		t.Fatalf("Expected no error for missing activity, got %v", err)
	}
	if retrieved != nil {
		t.Errorf("Expected nil, got %+v", retrieved)
	}

	exists, err := db.HasActivity(404)
	if err != nil {
		t.Fatalf("HasActivity failed: %v", err)
	}
	if exists {
		t.Error("Expected activity to not exist")
	}
}

func TestUpsertActivityIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.UpsertActivity(testActivity(2001), nil); err != nil {
		t.Fatalf("Failed to upsert activity: %v", err)
	}

	// Pin timestamps so the second upsert's effect is observable
	if _, err := db.Conn().Exec(`UPDATE activities SET created_at = 111, updated_at = 111 WHERE id = 2001`); err != nil {
		t.Fatalf("Failed to pin timestamps: %v", err)
	}

	updated := testActivity(2001)
	updated.Name = ptrS("Morning Run (edited)")
	if err := db.UpsertActivity(updated, nil); err != nil {
		t.Fatalf("Failed to re-upsert activity: %v", err)
	}

	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM activities WHERE id = 2001`).Scan(&count); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one row, got %d", count)
	}

	retrieved, err := db.GetActivity(2001)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	if *retrieved.Name != "Morning Run (edited)" {
		t.Errorf("Expected updated name, got %s", *retrieved.Name)
	}
	if retrieved.CreatedAt != 111 {
		t.Errorf("Expected created_at preserved at 111, got %d", retrieved.CreatedAt)
	}
	if retrieved.UpdatedAt == 111 {
		t.Error("Expected updated_at to change on overwrite")
	}
}

func TestUpsertActivityReplacesSets(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	a := testActivity(3001)
	a.Type = "strength_training"
	a.HasStrength = true

	first := []*ExerciseSet{
		{ActivityID: 3001, ExerciseName: "BENCH_PRESS", Category: "BENCH_PRESS", SetNumber: 1, Reps: ptrI(10), Weight: ptrF(60)},
		{ActivityID: 3001, ExerciseName: "BENCH_PRESS", Category: "BENCH_PRESS", SetNumber: 2, Reps: ptrI(8), Weight: ptrF(60)},
		{ActivityID: 3001, ExerciseName: "SQUAT", Category: "SQUAT", SetNumber: 1, Reps: ptrI(5), Weight: ptrF(100)},
	}
	if err := db.UpsertActivity(a, first); err != nil {
		t.Fatalf("Failed to upsert activity: %v", err)
	}

	second := []*ExerciseSet{
		{ActivityID: 3001, ExerciseName: "DEADLIFT", Category: "DEADLIFT", SetNumber: 1, Reps: ptrI(5), Weight: ptrF(120)},
	}
	if err := db.UpsertActivity(a, second); err != nil {
		t.Fatalf("Failed to re-upsert activity: %v", err)
	}

	sets, err := db.GetExerciseSets(3001)
	if err != nil {
		t.Fatalf("Failed to get exercise sets: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("Expected sets fully replaced, got %d rows", len(sets))
	}
	if sets[0].ExerciseName != "DEADLIFT" {
		t.Errorf("Expected DEADLIFT, got %s", sets[0].ExerciseName)
	}
}

func TestDeleteActivityCascades(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	a := testActivity(4001)
	sets := []*ExerciseSet{
		{ActivityID: 4001, ExerciseName: "PULL_UP", Category: "PULL_UP", SetNumber: 1, Reps: ptrI(12)},
	}
	if err := db.UpsertActivity(a, sets); err != nil {
		t.Fatalf("Failed to upsert activity: %v", err)
	}

	if err := db.DeleteActivity(4001); err != nil {
		t.Fatalf("Failed to delete activity: %v", err)
	}

	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM exercise_sets WHERE activity_id = 4001`).Scan(&count); err != nil {
		t.Fatalf("Failed to count sets: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected sets removed by cascade, got %d rows", count)
	}

	if err := db.DeleteActivity(4001); err == nil {
		t.Error("Expected error deleting missing activity")
	}
}

func TestListActivitiesWithoutGPS(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	// Distance-bearing, no track: should be listed
	a1 := testActivity(5001)
	a1.StartTime = ptrS("2024-05-02 07:30:00")
	if err := db.UpsertActivity(a1, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	// Has a track: excluded
	a2 := testActivity(5002)
	a2.StartTime = ptrS("2024-05-03 07:30:00")
	a2.HasGPS = true
	if err := db.UpsertActivity(a2, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	// No distance: excluded
	a3 := testActivity(5003)
	a3.Distance = nil
	if err := db.UpsertActivity(a3, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	refs, err := db.ListActivitiesWithoutGPS()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(refs))
	}
	if refs[0].ID != 5001 {
		t.Errorf("Expected activity 5001, got %d", refs[0].ID)
	}
}
