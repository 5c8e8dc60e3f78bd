package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/cache"
	"garmin-connect-sync/internal/database"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }

func setupImportHandler(t *testing.T) (*ImportHandler, *database.DB) {
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	refresher := cache.NewRefresher(db, slog.Default())
	return NewImportHandler(db, refresher), db
}

func TestHandleActivitiesWithoutGPS(t *testing.T) {
	handler, db := setupImportHandler(t)

	a := &database.Activity{
		ID: 1, Type: "running", StartTime: ptrS("2024-05-01 07:30:00"), Distance: ptrF(5000),
	}
	if err := db.UpsertActivity(a, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/activities-without-gps", nil)
	w := httptest.NewRecorder()
	handler.HandleActivitiesWithoutGPS(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response struct {
		Activities []database.ActivityRef `json:"activities"`
		Count      int                    `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Count != 1 || len(response.Activities) != 1 {
		t.Fatalf("Expected 1 activity, got %+v", response)
	}
	if response.Activities[0].ID != 1 {
		t.Errorf("Expected activity 1, got %d", response.Activities[0].ID)
	}
}

func TestHandleUpdateGPSData(t *testing.T) {
	handler, db := setupImportHandler(t)

	a := &database.Activity{
		ID: 7, Type: "running", StartTime: ptrS("2024-05-01 07:30:00"), Distance: ptrF(5000),
	}
	if err := db.UpsertActivity(a, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	body := `{"activities": [
		{"activityId": 7, "gpsData": {"polyline": [[1714546200000, 51.5, -0.12], [1714546210000, 51.51, -0.13]]}},
		{"activityId": 999, "gpsData": {"polyline": [[1714546200000, 1, 1]]}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/update-gps-data", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleUpdateGPSData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["updated"] != float64(1) || response["failed"] != float64(1) {
		t.Errorf("Expected 1 updated and 1 failed, got %v", response)
	}

	updated, err := db.GetActivity(7)
	if err != nil || updated == nil {
		t.Fatalf("Failed to load activity: %v", err)
	}
	if !updated.HasGPS {
		t.Error("Expected gps applied")
	}
	if updated.StartLatitude == nil || *updated.StartLatitude != 51.5 {
		t.Errorf("Expected start latitude 51.5, got %v", updated.StartLatitude)
	}

	// Listed caches were rebuilt
	if _, found, _ := db.GetValue(database.KeyGPSActivitiesCache); !found {
		t.Error("Expected gps cache refreshed")
	}
}

func TestHandleImportDataSkipsExisting(t *testing.T) {
	handler, db := setupImportHandler(t)

	existing := &database.Activity{ID: 50, Type: "running", StartTime: ptrS("2024-05-01 07:30:00")}
	if err := db.UpsertActivity(existing, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if _, err := db.Conn().Exec(`UPDATE activities SET updated_at = 111 WHERE id = 50`); err != nil {
		t.Fatalf("Failed to pin timestamp: %v", err)
	}

	body := `{"activities": [
		{"activity": {"activityId": 50, "activityType": {"typeKey": "running"}, "startTimeLocal": "2024-05-01 07:30:00"}},
		{"activity": {"activityId": 51, "activityType": {"typeKey": "cycling"}, "startTimeLocal": "2024-05-02 07:30:00", "distance": 20000}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/import-data", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleImportData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["imported"] != float64(1) || response["skipped"] != float64(1) {
		t.Errorf("Expected 1 imported and 1 skipped, got %v", response)
	}

	// The existing row was left alone
	var updatedAt int64
	if err := db.Conn().QueryRow(`SELECT updated_at FROM activities WHERE id = 50`).Scan(&updatedAt); err != nil {
		t.Fatalf("Failed to read updated_at: %v", err)
	}
	if updatedAt != 111 {
		t.Error("Expected existing activity untouched by import")
	}

	if exists, _ := db.HasActivity(51); !exists {
		t.Error("Expected new activity imported")
	}
}

func TestHandleUpdateAllActivitiesOverwrites(t *testing.T) {
	handler, db := setupImportHandler(t)

	existing := &database.Activity{ID: 60, Name: ptrS("Old name"), Type: "running"}
	if err := db.UpsertActivity(existing, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	body := `{"activities": [
		{"activity": {"activityId": 60, "activityName": "New name", "activityType": {"typeKey": "running"}, "startTimeLocal": "2024-05-01 07:30:00"}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/update-all-activities", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleUpdateAllActivities(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	updated, err := db.GetActivity(60)
	if err != nil || updated == nil {
		t.Fatalf("Failed to load activity: %v", err)
	}
	if updated.Name == nil || *updated.Name != "New name" {
		t.Errorf("Expected overwritten name, got %v", updated.Name)
	}
}

func TestHandleImportDataBadBody(t *testing.T) {
	handler, _ := setupImportHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/import-data", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	handler.HandleImportData(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}
