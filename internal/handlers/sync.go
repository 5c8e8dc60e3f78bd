package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/config"
	"garmin-connect-sync/internal/database"
	syncer "garmin-connect-sync/internal/sync"
)

// SyncHandler serves the sync trigger, status, and health endpoints
type SyncHandler struct {
	orchestrator *syncer.Orchestrator
	tracker      *syncer.Tracker
	config       *config.Config
	logger       *slog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(orchestrator *syncer.Orchestrator, db *database.DB, cfg *config.Config) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		tracker:      syncer.NewTracker(db),
		config:       cfg,
		logger:       slog.Default(),
	}
}

// HandleSync handles POST requests that trigger a sync run. The run
// happens in the background; the response only acknowledges the
// trigger. When no webhook secret is configured the endpoint is open.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.validSignature(r.Header.Get("X-Webhook-Signature"), h.config.Server.WebhookSecret) {
		h.logger.Warn("Rejected sync trigger with bad signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.orchestrator.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "busy"})
		return
	}

	go h.runSync()

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// HandleStatus handles GET requests for the last sync time
func (h *SyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cursor, err := h.tracker.LoadCursor()
	if err != nil {
		h.logger.Error("Failed to load sync cursor", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := map[string]any{"lastSync": "Never"}
	if cursor != nil {
		response["lastSync"] = cursor.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	progress, err := h.tracker.LoadInitialProgress()
	if err != nil {
		h.logger.Error("Failed to load initial sync progress", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if progress != nil {
		response["initialSyncProgress"] = progress
	}
	if h.orchestrator.Running() {
		response["syncInProgress"] = true
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleHealth handles GET requests for liveness checks
func (h *SyncHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type rideWithGPSEvent struct {
	Type string `json:"type"`
}

// HandleRideWithGPSWebhook handles POST callbacks from the companion
// GPS service. Activity create/update events trigger a background sync
// so the new data lands without waiting for the schedule.
func (h *SyncHandler) HandleRideWithGPSWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.validSignature(r.Header.Get("X-RideWithGPS-Signature"), h.config.Server.RideWithGPSSecret) {
		h.logger.Warn("Rejected ridewithgps webhook with bad signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event rideWithGPSEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Error("Invalid JSON in ridewithgps webhook body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	h.logger.Info("Received ridewithgps webhook", "type", event.Type)

	if event.Type == "activity_created" || event.Type == "activity_updated" {
		if !h.orchestrator.Running() {
			go h.runSync()
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *SyncHandler) runSync() {
	summary, err := h.orchestrator.Run(context.Background())
	if err != nil {
		h.logger.Error("Background sync failed", "error", err)
		return
	}
	h.logger.Info("Background sync finished",
		"processed", summary.ActivitiesProcessed,
		"skipped", summary.ActivitiesSkipped,
		"errors", summary.Errors,
		"initial", summary.IsInitialSync)
}

// validSignature reports whether the request signature matches the
// configured secret. An empty secret disables verification.
func (h *SyncHandler) validSignature(signature, secret string) bool {
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}
