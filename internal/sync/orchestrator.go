package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"garmin-connect-sync/internal/config"
	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
	"garmin-connect-sync/internal/metrics"
	"garmin-connect-sync/internal/normalize"
)

// ErrSyncInProgress is returned by Run when another invocation holds
// the single-flight guard.
var ErrSyncInProgress = errors.New("sync already in progress")

// Client is the slice of the Garmin Connect API the orchestrator needs
type Client interface {
	ListActivities(ctx context.Context, start, limit int) ([]garmin.RawActivity, error)
	GetGPS(ctx context.Context, activityID int64) (*garmin.GPSPayload, error)
	GetWeather(ctx context.Context, activityID int64) (*garmin.WeatherPayload, error)
	GetExerciseSets(ctx context.Context, activityID int64) ([]garmin.RawSet, error)
}

// CacheRefresher rebuilds derived read caches after a completed sync
type CacheRefresher interface {
	RefreshAll(ctx context.Context) error
}

// Summary is the structured result of a single sync invocation
type Summary struct {
	Success             bool   `json:"success"`
	IsInitialSync       bool   `json:"isInitialSync"`
	ActivitiesProcessed int    `json:"activitiesProcessed"`
	ActivitiesSkipped   int    `json:"activitiesSkipped"`
	Errors              int    `json:"errors"`
	BudgetExhausted     bool   `json:"budgetExhausted"`
	NextBatchIndex      *int   `json:"nextBatchIndex,omitempty"`
	Timestamp           string `json:"timestamp"`
}

// Orchestrator drives incremental and initial syncs against Garmin
// Connect. A single Orchestrator serves the whole process; the running
// flag rejects overlapping invocations.
type Orchestrator struct {
	db        *database.DB
	client    Client
	refresher CacheRefresher
	cfg       *config.Config
	tracker   *Tracker
	limiter   *rate.Limiter
	logger    *slog.Logger

	running atomic.Bool
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(db *database.DB, client Client, refresher CacheRefresher, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		db:        db,
		client:    client,
		refresher: refresher,
		cfg:       cfg,
		tracker:   NewTracker(db),
		limiter:   rate.NewLimiter(rate.Every(cfg.Sync.CallDelay), 1),
		logger:    logger,
	}
}

// Running reports whether a sync invocation is currently in flight
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes one sync invocation. The mode is picked from the
// persisted cursor: no cursor means the first full backfill, otherwise
// an incremental run from the cursor. At most one invocation runs at a
// time; overlapping calls get ErrSyncInProgress.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer o.running.Store(false)

	metrics.SyncActive.Set(1)
	defer metrics.SyncActive.Set(0)

	cursor, err := o.tracker.LoadCursor()
	if err != nil {
		return nil, err
	}

	mode := metrics.ModeIncremental
	if cursor == nil {
		mode = metrics.ModeInitial
	}

	start := time.Now()
	var summary *Summary
	if cursor == nil {
		summary, err = o.runInitial(ctx)
	} else {
		summary, err = o.runIncremental(ctx, *cursor)
	}
	metrics.SyncDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(mode, metrics.ResultFailed).Inc()
		return nil, err
	}

	result := metrics.ResultCompleted
	if summary.BudgetExhausted || summary.NextBatchIndex != nil {
		result = metrics.ResultPartial
	}
	metrics.SyncRunsTotal.WithLabelValues(mode, result).Inc()

	if result == metrics.ResultCompleted {
		if err := o.refresher.RefreshAll(ctx); err != nil {
			o.logger.Error("failed to refresh caches after sync", "error", err)
		}
	}

	o.logger.Info("sync finished",
		"mode", mode,
		"processed", summary.ActivitiesProcessed,
		"skipped", summary.ActivitiesSkipped,
		"errors", summary.Errors,
		"budgetExhausted", summary.BudgetExhausted)
	return summary, nil
}

type syncItem struct {
	raw   garmin.RawActivity
	force bool
}

func (o *Orchestrator) runIncremental(ctx context.Context, cursor time.Time) (*Summary, error) {
	gov := NewGovernor(o.cfg.Sync.MaxCalls)
	pageSize := o.cfg.Sync.PageSize

	var items []syncItem
	seen := make(map[int64]bool)
	exhausted := false

	offset := 0
	for len(items) < o.cfg.Sync.IncrementalMaxActivities {
		if gov.WouldExceed(1) {
			exhausted = true
			break
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := o.client.ListActivities(ctx, offset, pageSize)
		gov.Consume(1)
		if err != nil {
			if garmin.IsUnauthorized(err) {
				return nil, fmt.Errorf("failed to list activities: %w", err)
			}
			o.logger.Error("failed to list activities, stopping early", "offset", offset, "error", err)
			break
		}
		if len(page) == 0 {
			break
		}

		newerCount := 0
		for i := range page {
			raw := page[i]
			startTime, ok := parseStartTime(raw.StartTimeLocal)
			newer := ok && startTime.After(cursor)
			if newer {
				newerCount++
			}
			// the newest few are always re-fetched so late edits
			// behind the cursor still land
			force := offset == 0 && i < o.cfg.Sync.TailRefreshCount
			if (newer || force) && !seen[raw.ActivityID] {
				seen[raw.ActivityID] = true
				items = append(items, syncItem{raw: raw, force: force})
			}
		}

		// a page with candidates filtered out means we crossed the
		// cursor boundary
		if newerCount < len(page) {
			break
		}
		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}
	if len(items) > o.cfg.Sync.IncrementalMaxActivities {
		items = items[:o.cfg.Sync.IncrementalMaxActivities]
	}

	res, err := o.processItems(ctx, items, gov)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Success:             true,
		ActivitiesProcessed: res.processed,
		ActivitiesSkipped:   res.skipped,
		Errors:              res.errored,
		BudgetExhausted:     exhausted || res.exhausted,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	}

	// the cursor only moves once every candidate has been settled;
	// a partial run re-lists next time and skips what already landed
	if !summary.BudgetExhausted && !res.newest.IsZero() && res.newest.After(cursor) {
		if err := o.tracker.CommitCursor(res.newest); err != nil {
			return nil, err
		}
		metrics.SyncLastSuccessTimestamp.Set(float64(res.newest.Unix()))
	}
	return summary, nil
}

func (o *Orchestrator) runInitial(ctx context.Context) (*Summary, error) {
	gov := NewGovernor(o.cfg.Sync.MaxCalls)
	pageSize := o.cfg.Sync.PageSize

	batchIndex := 0
	totalProcessed := 0
	startedAt := time.Now().UTC().Format(time.RFC3339)

	progress, err := o.tracker.LoadInitialProgress()
	if err != nil {
		return nil, err
	}
	if progress != nil {
		batchIndex = progress.CurrentBatchIndex
		totalProcessed = progress.TotalProcessed
		startedAt = progress.StartedAt
		o.logger.Info("resuming initial sync", "batchIndex", batchIndex, "totalProcessed", totalProcessed)
	} else if err := o.tracker.SaveInitialProgress(&InitialProgress{StartedAt: startedAt}); err != nil {
		return nil, err
	}

	summary := &Summary{Success: true, IsInitialSync: true}
	var newest time.Time
	completed := false

	for {
		if batchIndex*pageSize >= o.cfg.Sync.InitialMaxActivities {
			completed = true
			break
		}
		if gov.WouldExceed(1) {
			summary.BudgetExhausted = true
			break
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := o.client.ListActivities(ctx, batchIndex*pageSize, pageSize)
		gov.Consume(1)
		if err != nil {
			if garmin.IsUnauthorized(err) {
				return nil, fmt.Errorf("failed to list activities: %w", err)
			}
			o.logger.Error("failed to list activities, will resume from checkpoint", "batchIndex", batchIndex, "error", err)
			break
		}
		if len(page) == 0 {
			completed = true
			break
		}

		items := make([]syncItem, 0, len(page))
		for i := range page {
			items = append(items, syncItem{raw: page[i]})
		}
		res, err := o.processItems(ctx, items, gov)
		if err != nil {
			return nil, err
		}
		summary.ActivitiesProcessed += res.processed
		summary.ActivitiesSkipped += res.skipped
		summary.Errors += res.errored
		if res.newest.After(newest) {
			newest = res.newest
		}
		if res.exhausted {
			// the checkpoint stays on this batch; already stored
			// activities are skipped on the retry
			summary.BudgetExhausted = true
			break
		}

		batchIndex++
		totalProcessed += res.processed
		if err := o.tracker.SaveInitialProgress(&InitialProgress{
			TotalProcessed:    totalProcessed,
			CurrentBatchIndex: batchIndex,
			StartedAt:         startedAt,
		}); err != nil {
			return nil, err
		}

		if len(page) < pageSize {
			completed = true
			break
		}
		select {
		case <-time.After(o.cfg.Sync.BatchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if completed {
		if newest.IsZero() {
			newest = time.Now().UTC()
		}
		if err := o.tracker.CommitCursor(newest); err != nil {
			return nil, err
		}
		metrics.SyncLastSuccessTimestamp.Set(float64(newest.Unix()))
		if err := o.tracker.ClearInitialProgress(); err != nil {
			return nil, err
		}
	} else {
		next := batchIndex
		summary.NextBatchIndex = &next
	}
	return summary, nil
}

type batchResult struct {
	processed int
	skipped   int
	errored   int
	newest    time.Time
	exhausted bool
}

// processItems settles items in chunks of cfg.Sync.Concurrency. A
// chunk is admitted against the governor up front, fanned out, and
// fully waited on before accounting; one item failing never hides the
// others. Credential failures abort the whole run.
func (o *Orchestrator) processItems(ctx context.Context, items []syncItem, gov *Governor) (*batchResult, error) {
	res := &batchResult{}
	width := o.cfg.Sync.Concurrency
	if width < 1 {
		width = 1
	}

	i := 0
	for i < len(items) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk := make([]int, 0, width)
		for len(chunk) < width && i < len(items) {
			item := items[i]
			if !item.force {
				exists, err := o.db.HasActivity(item.raw.ActivityID)
				if err != nil {
					return nil, fmt.Errorf("failed to check activity %d: %w", item.raw.ActivityID, err)
				}
				if exists {
					res.skipped++
					metrics.SyncActivitiesTotal.WithLabelValues(metrics.ActivitySkipped).Inc()
					i++
					continue
				}
			}
			cost := normalize.EstimateCalls(&item.raw)
			if gov.WouldExceed(cost) {
				res.exhausted = true
				break
			}
			gov.Consume(cost)
			chunk = append(chunk, i)
			i++
		}
		metrics.SyncCallBudgetUsed.Set(float64(gov.Used()))
		if len(chunk) == 0 {
			break
		}

		errs := make([]error, len(chunk))
		var wg stdsync.WaitGroup
		for ci, idx := range chunk {
			wg.Add(1)
			go func(ci, idx int) {
				defer wg.Done()
				errs[ci] = o.syncOne(ctx, &items[idx].raw)
			}(ci, idx)
		}
		wg.Wait()

		for ci, idx := range chunk {
			raw := &items[idx].raw
			if errs[ci] != nil {
				if garmin.IsUnauthorized(errs[ci]) {
					return nil, fmt.Errorf("failed to sync activity %d: %w", raw.ActivityID, errs[ci])
				}
				o.logger.Error("failed to sync activity", "activityID", raw.ActivityID, "error", errs[ci])
				res.errored++
				metrics.SyncActivitiesTotal.WithLabelValues(metrics.ActivityErrored).Inc()
				continue
			}
			res.processed++
			metrics.SyncActivitiesTotal.WithLabelValues(metrics.ActivityProcessed).Inc()
			if startTime, ok := parseStartTime(raw.StartTimeLocal); ok && startTime.After(res.newest) {
				res.newest = startTime
			}
		}

		if res.exhausted {
			break
		}
	}
	return res, nil
}

// syncOne fetches the enrichments an activity is eligible for and
// stores the normalized result. Enrichment fetch failures other than
// credential errors come back from the client as absent payloads.
func (o *Orchestrator) syncOne(ctx context.Context, raw *garmin.RawActivity) error {
	var enr normalize.Enrichments

	if normalize.NeedsGPS(raw) {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		gps, err := o.client.GetGPS(ctx, raw.ActivityID)
		if err != nil {
			return err
		}
		enr.GPS = gps
	}
	if normalize.NeedsWeather(raw) {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		weather, err := o.client.GetWeather(ctx, raw.ActivityID)
		if err != nil {
			return err
		}
		enr.Weather = weather
	}
	if normalize.NeedsExerciseSets(raw) {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		sets, err := o.client.GetExerciseSets(ctx, raw.ActivityID)
		if err != nil {
			return err
		}
		enr.Sets = sets
	}

	activity, sets := normalize.Normalize(raw, enr)
	if err := o.db.UpsertActivity(activity, sets); err != nil {
		return fmt.Errorf("failed to store activity %d: %w", raw.ActivityID, err)
	}
	return nil
}

var startTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseStartTime(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
