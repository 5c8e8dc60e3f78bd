package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Sync modes
	ModeIncremental = "incremental"
	ModeInitial     = "initial"

	// Sync run results
	ResultCompleted = "completed"
	ResultPartial   = "partial"
	ResultFailed    = "failed"
	ResultBusy      = "busy"

	// Per-activity outcomes
	ActivityProcessed = "processed"
	ActivitySkipped   = "skipped"
	ActivityErrored   = "errored"

	// Enrichment kinds
	EnrichmentGPS     = "gps"
	EnrichmentWeather = "weather"
	EnrichmentSets    = "exercise_sets"

	// Enrichment outcomes
	OutcomePresent = "present"
	OutcomeAbsent  = "absent"
	OutcomeError   = "error"

	// HTTP endpoints
	EndpointSync               = "sync"
	EndpointStatus             = "status"
	EndpointHealth             = "health"
	EndpointActivitiesNoGPS    = "activities_without_gps"
	EndpointUpdateGPSData      = "update_gps_data"
	EndpointUpdateAll          = "update_all_activities"
	EndpointImportData         = "import_data"
	EndpointRideWithGPSWebhook = "ridewithgps_webhook"

	// Upstream API operations
	OpListActivities  = "list_activities"
	OpGetGPS          = "get_gps"
	OpGetWeather      = "get_weather"
	OpGetExerciseSets = "get_exercise_sets"

	// Database operations
	DBOpUpsertActivity = "upsert_activity"
	DBOpSetValue       = "set_value"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Sync Metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync invocations by mode and result",
		},
		[]string{"mode", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Wall-clock duration of sync invocations",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	SyncActivitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_activities_total",
			Help: "Total number of activities handled by the sync loop, by outcome",
		},
		[]string{"outcome"},
	)

	SyncActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_active",
			Help: "Whether a sync invocation is currently running (1) or not (0)",
		},
	)

	SyncCallBudgetUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_call_budget_used",
			Help: "External calls consumed by the most recent sync invocation",
		},
	)

	SyncLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp_seconds",
			Help: "Unix time of the last committed sync cursor",
		},
	)
)

// Enrichment Metrics
var (
	EnrichmentFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_fetches_total",
			Help: "Total number of enrichment fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Upstream API Metrics
var (
	GarminAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garmin_api_requests_total",
			Help: "Total number of Garmin Connect API requests",
		},
		[]string{"operation", "status_code"},
	)

	GarminAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garmin_api_request_duration_seconds",
			Help:    "Garmin Connect API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)
)

// Cache Metrics
var (
	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_refreshes_total",
			Help: "Total number of cache blob recomputations",
		},
		[]string{"kind", "result"},
	)
)
