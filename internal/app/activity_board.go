package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"garminai/clients/assistantapi"
	"garminai/clients/notifier"
	"garminai/clients/updates"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActivityAPI is the part of the assistant service used by the activity client.
type ActivityAPI interface {
	ListActivities(ctx context.Context) ([]assistantapi.Activity, error)
	GetActivity(ctx context.Context, id string) (json.RawMessage, error)
	RequestInsight(ctx context.Context, req assistantapi.InsightRequest) (*assistantapi.Insight, error)
	SavePreferences(ctx context.Context, prefs assistantapi.Preferences) (int, error)
}

// ActivityBoard holds the activity client state: the activity list, the
// selected activity, the opened detail and the analysis pane.
type ActivityBoard struct {
	logger      *zap.Logger
	api         ActivityAPI
	notifier    notifier.Notifier
	metrics     *Metrics
	insightType string
	seq         *Sequencer

	mu         sync.Mutex
	activities []assistantapi.Activity
	loaded     bool
	selected   string
	detail     json.RawMessage
	pane       Pane
	hasPane    bool
	notices    noticeBox
}

var errEmptyInsight = errors.New("empty insight response")

type RefreshCall struct {
	Token Token
}

type DetailCall struct {
	Token Token
	ID    string
}

type InsightCall struct {
	Token   Token
	Request assistantapi.InsightRequest
	Title   string
}

// BoardSnapshot is a copy of the board state for rendering.
type BoardSnapshot struct {
	Activities []assistantapi.Activity
	Loaded     bool
	Selected   string
	Detail     string
	Pane       Pane
	HasPane    bool
	Notice     Notice
}

func NewActivityBoard(
	logger *zap.Logger,
	api ActivityAPI,
	n notifier.Notifier,
	metrics *Metrics,
	insightType string,
) *ActivityBoard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = notifier.NewMultiNotifier()
	}
	if insightType == "" {
		insightType = "general"
	}

	return &ActivityBoard{
		logger:      logger,
		api:         api,
		notifier:    n,
		metrics:     metrics,
		insightType: insightType,
		seq:         NewSequencer(),
		activities:  []assistantapi.Activity{},
	}
}

// InsightType is the insight type sent when the caller does not pick one.
func (b *ActivityBoard) InsightType() string {
	return b.insightType
}

// ---- Activity list ----

func (b *ActivityBoard) BeginRefresh() RefreshCall {
	return RefreshCall{Token: b.seq.Next(ActionRefresh)}
}

func (b *ActivityBoard) ExecuteRefresh(ctx context.Context, _ RefreshCall) ([]assistantapi.Activity, error) {
	list, err := b.api.ListActivities(ctx)
	b.metrics.observeRequest("list_activities", err)
	return list, err
}

// CompleteRefresh replaces the list wholesale. The selection is kept even
// when the selected activity is no longer listed.
func (b *ActivityBoard) CompleteRefresh(call RefreshCall, list []assistantapi.Activity, err error) bool {
	if !b.seq.IsLatest(call.Token) {
		b.metrics.observeStale(ActionRefresh)
		b.logger.Debug("discarding stale activity list", zap.Uint64("seq", call.Token.Seq))
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.notices.post(NoticeError, MsgRefreshFailed)
		b.logger.Error("failed to load activities", zap.Error(err))
		return true
	}

	b.activities = make([]assistantapi.Activity, len(list))
	copy(b.activities, list)
	b.loaded = true
	b.logger.Debug("activities loaded", zap.Int("count", len(list)))
	return true
}

// Refresh reloads the activity list synchronously.
func (b *ActivityBoard) Refresh(ctx context.Context) error {
	call := b.BeginRefresh()
	list, err := b.ExecuteRefresh(ctx, call)
	b.CompleteRefresh(call, list, err)
	if err != nil {
		return fmt.Errorf("refresh activities: %w", err)
	}
	return nil
}

func (b *ActivityBoard) Activities() []assistantapi.Activity {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]assistantapi.Activity, len(b.activities))
	copy(out, b.activities)
	return out
}

// Select marks id as the single selected activity. It must be in the
// current list.
func (b *ActivityBoard) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.indexOf(id) < 0 {
		return ErrUnknownActivity
	}
	b.selected = id
	return nil
}

func (b *ActivityBoard) Selected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

func (b *ActivityBoard) indexOf(id string) int {
	for i, a := range b.activities {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// ---- Activity detail ----

// BeginDetail selects id and issues a detail fetch for it.
func (b *ActivityBoard) BeginDetail(id string) (DetailCall, error) {
	if err := b.Select(id); err != nil {
		return DetailCall{}, err
	}
	return DetailCall{Token: b.seq.Next(ActionDetail), ID: id}, nil
}

func (b *ActivityBoard) ExecuteDetail(ctx context.Context, call DetailCall) (json.RawMessage, error) {
	raw, err := b.api.GetActivity(ctx, call.ID)
	b.metrics.observeRequest("get_activity", err)
	return raw, err
}

func (b *ActivityBoard) CompleteDetail(call DetailCall, raw json.RawMessage, err error) bool {
	if !b.seq.IsLatest(call.Token) {
		b.metrics.observeStale(ActionDetail)
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.notices.post(NoticeError, MsgDetailFailed)
		b.logger.Error("failed to load activity", zap.String("id", call.ID), zap.Error(err))
		return true
	}
	b.detail = append(json.RawMessage(nil), raw...)
	return true
}

// Open selects an activity and fetches its detail synchronously.
func (b *ActivityBoard) Open(ctx context.Context, id string) (json.RawMessage, error) {
	call, err := b.BeginDetail(id)
	if err != nil {
		return nil, err
	}
	raw, err := b.ExecuteDetail(ctx, call)
	b.CompleteDetail(call, raw, err)
	if err != nil {
		return nil, fmt.Errorf("open activity %s: %w", id, err)
	}
	return raw, nil
}

// ---- Insights ----

// BeginInsight issues an insight request for the selected activity. There
// is no busy guard; the latest issued request wins.
func (b *ActivityBoard) BeginInsight(insightType string) (InsightCall, error) {
	if insightType == "" {
		insightType = b.insightType
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.selected == "" {
		b.notices.post(NoticeWarning, MsgSelectActivityFirst)
		return InsightCall{}, ErrNoActivitySelected
	}

	title := b.selected
	if i := b.indexOf(b.selected); i >= 0 && b.activities[i].Title != "" {
		title = b.activities[i].Title
	}

	return InsightCall{
		Token: b.seq.Next(ActionInsight),
		Request: assistantapi.InsightRequest{
			ActivityID:  b.selected,
			InsightType: insightType,
		},
		Title: title,
	}, nil
}

func (b *ActivityBoard) ExecuteInsight(ctx context.Context, call InsightCall) (*assistantapi.Insight, error) {
	insight, err := b.api.RequestInsight(ctx, call.Request)
	b.metrics.observeRequest("request_insight", err)
	return insight, err
}

// CompleteInsight replaces the pane with the insight on success. A failure
// posts a notice and leaves the pane as it was.
func (b *ActivityBoard) CompleteInsight(call InsightCall, insight *assistantapi.Insight, err error) bool {
	if !b.seq.IsLatest(call.Token) {
		b.metrics.observeStale(ActionInsight)
		b.logger.Debug("discarding stale insight", zap.Uint64("seq", call.Token.Seq))
		return false
	}

	if err == nil && insight == nil {
		err = errEmptyInsight
	}
	if err != nil {
		b.mu.Lock()
		b.notices.post(NoticeError, MsgInsightFailed)
		b.mu.Unlock()
		b.logger.Error("insight request failed",
			zap.String("activity_id", call.Request.ActivityID),
			zap.Error(err),
		)
		return true
	}

	sections := make([]Section, 0, len(insight.Sections))
	for _, s := range insight.Sections {
		sections = append(sections, Section{Title: s.Title, Text: s.Text})
	}
	pane := NewPane(insight.Formatted, sections, insight.Suggestions)

	b.mu.Lock()
	b.pane = pane
	b.hasPane = true
	b.mu.Unlock()

	b.notifier.SendReport(notifier.Report{
		Kind:        notifier.ReportKindActivityInsight,
		Subject:     SanitizeText(call.Title),
		Body:        pane.Render(),
		Suggestions: pane.Suggestions,
		Timestamp:   time.Now(),
	})
	return true
}

// RequestInsight runs an insight request synchronously and returns the
// resulting pane.
func (b *ActivityBoard) RequestInsight(ctx context.Context, insightType string) (Pane, error) {
	call, err := b.BeginInsight(insightType)
	if err != nil {
		return Pane{}, err
	}
	insight, err := b.ExecuteInsight(ctx, call)
	b.CompleteInsight(call, insight, err)
	if err != nil {
		return Pane{}, fmt.Errorf("request insight: %w", err)
	}
	return b.Pane(), nil
}

func (b *ActivityBoard) Pane() Pane {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pane
}

// ---- Preferences ----

// SavePreferences posts prefs. Any HTTP response confirms the save; a
// transport failure is only logged.
func (b *ActivityBoard) SavePreferences(ctx context.Context, prefs assistantapi.Preferences) (Notice, bool) {
	status, err := b.api.SavePreferences(ctx, prefs)
	b.metrics.observeRequest("save_preferences", err)
	if err != nil {
		b.logger.Error("failed to save preferences", zap.Error(err))
		return Notice{}, false
	}

	b.logger.Info("preferences sent",
		zap.String("theme", prefs.Theme),
		zap.String("language", prefs.Language),
		zap.Int("status", status),
	)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notices.post(NoticeInfo, MsgPreferencesSaved), true
}

// ---- Push channel ----

// HandleUpdate applies one push message. Activity updates run a refresh;
// analysis updates replace the pane.
func (b *ActivityBoard) HandleUpdate(ctx context.Context, u updates.Update) {
	b.metrics.observePush(u.Type)

	switch u.Type {
	case updates.TypeActivityUpdate:
		if err := b.Refresh(ctx); err != nil {
			b.logger.Warn("refresh after activity update failed", zap.Error(err))
		}
	case updates.TypeAnalysisUpdate:
		b.ApplyPushedAnalysis(u)
	default:
		b.logger.Info("ignoring push message", zap.String("type", u.Type))
	}
}

// ApplyPushedAnalysis replaces the pane with pushed content. Any insight
// still in flight is superseded and its response will be discarded.
func (b *ActivityBoard) ApplyPushedAnalysis(u updates.Update) {
	b.seq.Supersede(ActionInsight)

	sections := make([]Section, 0, len(u.Sections))
	for _, s := range u.Sections {
		sections = append(sections, Section{Title: s.Title, Text: s.Text})
	}
	pane := NewPane(u.Formatted, sections, u.Suggestions)

	b.mu.Lock()
	b.pane = pane
	b.hasPane = true
	b.mu.Unlock()

	b.notifier.SendReport(notifier.Report{
		Kind:        notifier.ReportKindPushedAnalysis,
		Body:        pane.Render(),
		Suggestions: pane.Suggestions,
		Timestamp:   time.Now(),
	})
}

func (b *ActivityBoard) Snapshot() BoardSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	activities := make([]assistantapi.Activity, len(b.activities))
	copy(activities, b.activities)

	pane := b.pane
	pane.Sections = append([]Section(nil), b.pane.Sections...)
	pane.Suggestions = append([]string(nil), b.pane.Suggestions...)

	return BoardSnapshot{
		Activities: activities,
		Loaded:     b.loaded,
		Selected:   b.selected,
		Detail:     PrettyJSON(b.detail),
		Pane:       pane,
		HasPane:    b.hasPane,
		Notice:     b.notices.latest,
	}
}
