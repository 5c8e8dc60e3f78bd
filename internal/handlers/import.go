package handlers

import (
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/cache"
	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
	"garmin-connect-sync/internal/normalize"
)

// ImportHandler serves the bulk-import and backfill endpoints. These
// take caller-supplied payloads and run them through the same
// normalizer and upserter as the sync loop, never touching the
// upstream API.
type ImportHandler struct {
	db        *database.DB
	refresher *cache.Refresher
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(db *database.DB, refresher *cache.Refresher) *ImportHandler {
	return &ImportHandler{
		db:        db,
		refresher: refresher,
		logger:    slog.Default(),
	}
}

// HandleActivitiesWithoutGPS handles GET requests listing activities
// that cover distance but have no stored track
func (h *ImportHandler) HandleActivitiesWithoutGPS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	refs, err := h.db.ListActivitiesWithoutGPS()
	if err != nil {
		h.logger.Error("Failed to list activities without gps", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if refs == nil {
		refs = []*database.ActivityRef{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activities": refs,
		"count":      len(refs),
	})
}

type gpsUpdate struct {
	ActivityID int64              `json:"activityId"`
	GPSData    *garmin.GPSPayload `json:"gpsData"`
}

type gpsUpdateRequest struct {
	Activities []gpsUpdate `json:"activities"`
}

// HandleUpdateGPSData handles POST requests that attach caller-supplied
// GPS payloads to stored activities
func (h *ImportHandler) HandleUpdateGPSData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req gpsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	updated := 0
	failed := 0
	for _, update := range req.Activities {
		if update.GPSData == nil {
			failed++
			continue
		}
		activity, err := h.db.GetActivity(update.ActivityID)
		if err != nil {
			h.logger.Error("Failed to load activity for gps update", "activityID", update.ActivityID, "error", err)
			failed++
			continue
		}
		if activity == nil {
			failed++
			continue
		}
		// the upsert rewrites exercise sets, so carry the stored ones
		sets, err := h.db.GetExerciseSets(update.ActivityID)
		if err != nil {
			h.logger.Error("Failed to load exercise sets", "activityID", update.ActivityID, "error", err)
			failed++
			continue
		}
		normalize.ApplyGPS(activity, update.GPSData)
		if err := h.db.UpsertActivity(activity, sets); err != nil {
			h.logger.Error("Failed to store gps update", "activityID", update.ActivityID, "error", err)
			failed++
			continue
		}
		updated++
	}

	if updated > 0 {
		if err := h.refresher.RefreshGPSActivities(r.Context()); err != nil {
			h.logger.Error("Failed to refresh gps cache", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": failed == 0,
		"updated": updated,
		"failed":  failed,
	})
}

type importActivity struct {
	Activity     garmin.RawActivity     `json:"activity"`
	GPSData      *garmin.GPSPayload     `json:"gpsData,omitempty"`
	Weather      *garmin.WeatherPayload `json:"weather,omitempty"`
	ExerciseSets []garmin.RawSet        `json:"exerciseSets,omitempty"`
}

type importRequest struct {
	Activities []importActivity `json:"activities"`
}

// HandleUpdateAllActivities handles POST requests that re-normalize
// caller-supplied raw payloads and overwrite the stored rows
func (h *ImportHandler) HandleUpdateAllActivities(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, true)
}

// HandleImportData handles POST requests that bulk-import raw payloads,
// skipping activities already stored
func (h *ImportHandler) HandleImportData(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, false)
}

func (h *ImportHandler) handleBulk(w http.ResponseWriter, r *http.Request, overwrite bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	imported := 0
	skipped := 0
	failed := 0
	for i := range req.Activities {
		item := &req.Activities[i]
		if !overwrite {
			exists, err := h.db.HasActivity(item.Activity.ActivityID)
			if err != nil {
				h.logger.Error("Failed to check activity", "activityID", item.Activity.ActivityID, "error", err)
				failed++
				continue
			}
			if exists {
				skipped++
				continue
			}
		}
		activity, sets := normalize.Normalize(&item.Activity, normalize.Enrichments{
			GPS:     item.GPSData,
			Weather: item.Weather,
			Sets:    item.ExerciseSets,
		})
		if err := h.db.UpsertActivity(activity, sets); err != nil {
			h.logger.Error("Failed to store imported activity", "activityID", item.Activity.ActivityID, "error", err)
			failed++
			continue
		}
		imported++
	}

	if imported > 0 {
		if err := h.refresher.RefreshAll(r.Context()); err != nil {
			h.logger.Error("Failed to refresh caches after import", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  failed == 0,
		"imported": imported,
		"skipped":  skipped,
		"failed":   failed,
	})
}
