package garmin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"garmin-connect-sync/internal/metrics"
)

const (
	listActivitiesPath = "/activitylist-service/activities/search/activities"
	activityDetailPath = "/activity-service/activity/%d/details"
	activityWeatherPath = "/activity-service/activity/%d/weather"
	exerciseSetsPath   = "/activity-service/activity/%d/exerciseSets"
)

// CredentialProvider produces a bearer credential for the Garmin API.
// How the credential comes to exist (the login handshake) is not this
// package's concern.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredential is a CredentialProvider for a fixed token value
type StaticCredential string

// Token returns the fixed credential
func (s StaticCredential) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty garmin credential")
	}
	return string(s), nil
}

// Client is a Garmin Connect API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialProvider
	logger     *slog.Logger

	// now is swapped in tests to pin the anti-cache nonce
	now func() time.Time
}

// NewClient creates a new Garmin API client
func NewClient(baseURL string, creds CredentialProvider, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		creds:      creds,
		logger:     logger,
		now:        time.Now,
	}
}

// doRequest performs an authenticated GET and returns the response body.
// Non-2xx statuses come back as *HTTPError.
func (c *Client) doRequest(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credential: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("garmin request failed", "operation", operation, "path", path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	statusStr := strconv.Itoa(resp.StatusCode)
	metrics.GarminAPIRequestsTotal.WithLabelValues(operation, statusStr).Inc()
	metrics.GarminAPIRequestDuration.WithLabelValues(operation, statusStr).Observe(duration.Seconds())

	c.logger.Debug("garmin_api_request",
		"operation", operation,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// antiCacheParams returns the query parameter that defeats stale
// intermediate caches on enrichment endpoints.
func (c *Client) antiCacheParams() url.Values {
	return url.Values{"_": {strconv.FormatInt(c.now().UnixMilli(), 10)}}
}

// ListActivities fetches one page of activity summaries, newest first.
// An empty page signals end-of-list; so does a short page, because the
// upstream API is observed to do both.
func (c *Client) ListActivities(ctx context.Context, start, limit int) ([]RawActivity, error) {
	params := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}

	body, err := c.doRequest(ctx, metrics.OpListActivities, listActivitiesPath, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities at start=%d: %w", start, err)
	}

	var activities []RawActivity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activities: %w", err)
	}

	return activities, nil
}

// GetGPS fetches the GPS detail payload for an activity. Any non-auth
// failure degrades to absent: the activity is still stored, just without
// a track. Auth failures propagate so the sync can abort.
func (c *Client) GetGPS(ctx context.Context, activityID int64) (*GPSPayload, error) {
	path := fmt.Sprintf(activityDetailPath, activityID)

	body, err := c.doRequest(ctx, metrics.OpGetGPS, path, c.antiCacheParams())
	if err != nil {
		if IsUnauthorized(err) {
			return nil, err
		}
		c.logger.Warn("gps fetch degraded to absent", "activity_id", activityID, "error", err)
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentGPS, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	var payload GPSPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("gps payload unmarshal failed, treating as absent", "activity_id", activityID, "error", err)
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentGPS, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentGPS, metrics.OutcomePresent).Inc()
	return &payload, nil
}

// GetWeather fetches the weather snapshot for an activity, with the
// same best-effort degradation as GetGPS.
func (c *Client) GetWeather(ctx context.Context, activityID int64) (*WeatherPayload, error) {
	path := fmt.Sprintf(activityWeatherPath, activityID)

	body, err := c.doRequest(ctx, metrics.OpGetWeather, path, c.antiCacheParams())
	if err != nil {
		if IsUnauthorized(err) {
			return nil, err
		}
		c.logger.Warn("weather fetch degraded to absent", "activity_id", activityID, "error", err)
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentWeather, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	var payload WeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("weather payload unmarshal failed, treating as absent", "activity_id", activityID, "error", err)
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentWeather, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentWeather, metrics.OutcomePresent).Inc()
	return &payload, nil
}

// GetExerciseSets fetches the set breakdown for a strength activity.
// Best-effort like the other enrichments, but a strength activity with
// no set data is a data-quality signal, so the warning is louder.
func (c *Client) GetExerciseSets(ctx context.Context, activityID int64) ([]RawSet, error) {
	path := fmt.Sprintf(exerciseSetsPath, activityID)

	body, err := c.doRequest(ctx, metrics.OpGetExerciseSets, path, c.antiCacheParams())
	if err != nil {
		if IsUnauthorized(err) {
			return nil, err
		}
		c.logger.Warn("strength activity missing exercise sets",
			"activity_id", activityID, "error", err)
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentSets, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	var resp exerciseSetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("strength activity missing exercise sets",
			"activity_id", activityID, "error", fmt.Errorf("unmarshal: %w", err))
		metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentSets, metrics.OutcomeAbsent).Inc()
		return nil, nil
	}

	metrics.EnrichmentFetchesTotal.WithLabelValues(metrics.EnrichmentSets, metrics.OutcomePresent).Inc()
	return resp.ExerciseSets, nil
}
