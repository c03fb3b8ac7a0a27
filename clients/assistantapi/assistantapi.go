package assistantapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"garminai/config"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusError is returned when the service answers with a non-2xx status.
// The service has no structured error body; Body is kept for logging only.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries a non-2xx response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type AssistantApiClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

func NewAssistantApiClient(logger *zap.Logger, cfg *config.Config) *AssistantApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &AssistantApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.API.BaseURL,
	}
}

// ---- Request / response types ----

// Health is the body of GET /api/health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// CityAnalysisRequest is the body of POST /api/analyze/city.
type CityAnalysisRequest struct {
	Sport    string `json:"sport"`
	Location string `json:"location"`
	Weather  string `json:"weather"`
	Time     string `json:"time"`
}

// Activity is a remote-owned activity record.
type Activity struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Type  string `json:"type"`
}

type activitiesResponse struct {
	Activities []Activity `json:"activities"`
}

type activityResponse struct {
	Activity json.RawMessage `json:"activity"`
}

// InsightRequest is the body of POST /api/analyze.
type InsightRequest struct {
	ActivityID  string `json:"activity_id"`
	InsightType string `json:"insight_type"`
}

// Section is an optional structured block of insight text.
type Section struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Insight is the body returned by POST /api/analyze. Formatted may contain
// server-rendered markup and must only be displayed as text.
type Insight struct {
	Formatted   string    `json:"formatted"`
	Sections    []Section `json:"sections,omitempty"`
	Suggestions []string  `json:"suggestions"`
}

// Preferences are the user's display preferences.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

type preferencesResponse struct {
	Preferences Preferences `json:"preferences"`
}

// Hotspots is the body of GET /api/city/hotspots.
type Hotspots struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Hotspots string `json:"hotspots"`
}

// ---- Calls ----

// Health checks service connectivity. Any transport failure, non-2xx status
// or non-JSON body is an error.
func (c *AssistantApiClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil, &h); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return &h, nil
}

// AnalyzeCity requests a city sport analysis and returns the raw JSON body.
func (c *AssistantApiClient) AnalyzeCity(
	ctx context.Context,
	req CityAnalysisRequest,
) (json.RawMessage, error) {
	if strings.TrimSpace(req.Sport) == "" {
		return nil, fmt.Errorf("sport is empty")
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze/city", nil, req, &raw); err != nil {
		return nil, fmt.Errorf("analyze city: %w", err)
	}
	return raw, nil
}

// ListActivities fetches the full activity collection.
func (c *AssistantApiClient) ListActivities(ctx context.Context) ([]Activity, error) {
	var resp activitiesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/activities", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if resp.Activities == nil {
		resp.Activities = []Activity{}
	}
	return resp.Activities, nil
}

// GetActivity fetches a single activity's detail as opaque JSON.
func (c *AssistantApiClient) GetActivity(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("activity id is empty")
	}
	if id == "." || id == ".." {
		return nil, fmt.Errorf("invalid activity id %q", id)
	}

	var resp activityResponse
	// The id is one path segment; "/" inside it is sent as %2F.
	path := "/api/activities/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return resp.Activity, nil
}

// RequestInsight asks for an insight on one activity.
func (c *AssistantApiClient) RequestInsight(ctx context.Context, req InsightRequest) (*Insight, error) {
	if strings.TrimSpace(req.ActivityID) == "" {
		return nil, fmt.Errorf("activity id is empty")
	}

	var in Insight
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze", nil, req, &in); err != nil {
		return nil, fmt.Errorf("request insight: %w", err)
	}
	return &in, nil
}

// SavePreferences posts preferences and returns the response status code.
// The body is ignored. Only transport failures are errors; any status code,
// including non-2xx, counts as a completed save.
func (c *AssistantApiClient) SavePreferences(ctx context.Context, prefs Preferences) (int, error) {
	body, err := json.Marshal(prefs)
	if err != nil {
		return 0, fmt.Errorf("marshal preferences: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/user/preferences", nil, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("save preferences: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("preferences saved",
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)
	return resp.StatusCode, nil
}

// GetPreferences reads the stored preferences.
func (c *AssistantApiClient) GetPreferences(ctx context.Context) (*Preferences, error) {
	var resp preferencesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/preferences", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &resp.Preferences, nil
}

// CityHotspots fetches sport hotspots for a location. An empty location lets
// the service pick its default.
func (c *AssistantApiClient) CityHotspots(ctx context.Context, location string) (*Hotspots, error) {
	q := url.Values{}
	if location = strings.TrimSpace(location); location != "" {
		q.Set("location", location)
	}

	var h Hotspots
	if err := c.doJSON(ctx, http.MethodGet, "/api/city/hotspots", q, nil, &h); err != nil {
		return nil, fmt.Errorf("city hotspots: %w", err)
	}
	return &h, nil
}

// ---- Account routes ----
// These routes answer with a {"status", "data"} envelope.

// User is the account returned by GET /api/user.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pingResponse struct {
	Status string `json:"status"`
	Data   struct {
		Message string `json:"message"`
	} `json:"data"`
}

type userResponse struct {
	Status string `json:"status"`
	Data   struct {
		User User `json:"user"`
	} `json:"data"`
}

type exportResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Ping calls GET /api/ping and returns the server's message.
func (c *AssistantApiClient) Ping(ctx context.Context) (string, error) {
	var resp pingResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/ping", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("ping: %w", err)
	}
	return resp.Data.Message, nil
}

// GetUser fetches the current account. The route requires a login, so
// without one it fails with a 401 StatusError.
func (c *AssistantApiClient) GetUser(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &resp.Data.User, nil
}

// Export fetches the data export as opaque JSON.
func (c *AssistantApiClient) Export(ctx context.Context) (json.RawMessage, error) {
	var resp exportResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/export", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return resp.Data, nil
}

// ---- Transport ----

func (c *AssistantApiClient) newRequest(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	// path is already escaped.
	rawPath := strings.TrimRight(u.EscapedPath(), "/") + path
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", rawPath, err)
	}
	u.Path, u.RawPath = decoded, rawPath
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *AssistantApiClient) doJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	payload any,
	dest any,
) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("assistant api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
