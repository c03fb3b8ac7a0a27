package app

import (
	"context"
	"encoding/json"
	"garminai/clients/assistantapi"
	"garminai/clients/notifier"
	"garminai/config"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SportAPI is the part of the assistant service used by the sport client.
type SportAPI interface {
	Health(ctx context.Context) (*assistantapi.Health, error)
	AnalyzeCity(ctx context.Context, req assistantapi.CityAnalysisRequest) (json.RawMessage, error)
}

// SportSession holds the sport client state: connectivity, the selected
// sport, the busy flag and the last analysis result.
type SportSession struct {
	logger     *zap.Logger
	api        SportAPI
	notifier   notifier.Notifier
	metrics    *Metrics
	conditions config.AnalysisConfig
	seq        *Sequencer

	mu       sync.Mutex
	status   string
	selected string
	busy     bool
	result   json.RawMessage
	notices  noticeBox
}

// AnalysisCall is one issued city analysis request.
type AnalysisCall struct {
	Token   Token
	Sport   Sport
	Request assistantapi.CityAnalysisRequest
}

// SportSnapshot is a copy of the session state for rendering.
type SportSnapshot struct {
	Status      string
	Connected   bool
	Selected    string
	Busy        bool
	CanAnalyze  bool
	ButtonLabel string
	Result      json.RawMessage
	ResultText  string
	Notice      Notice
}

func NewSportSession(
	logger *zap.Logger,
	api SportAPI,
	n notifier.Notifier,
	metrics *Metrics,
	conditions config.AnalysisConfig,
) *SportSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = notifier.NewMultiNotifier()
	}

	return &SportSession{
		logger:     logger,
		api:        api,
		notifier:   n,
		metrics:    metrics,
		conditions: conditions,
		seq:        NewSequencer(),
		status:     StatusChecking,
	}
}

// Probe runs the one-shot connectivity check. Failures only change the
// status string; they are logged and never returned.
func (s *SportSession) Probe(ctx context.Context) string {
	h, err := s.api.Health(ctx)
	s.metrics.observeRequest("health", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.status = StatusError
		s.logger.Error("api health check failed", zap.Error(err))
		return s.status
	}

	s.status = StatusConnected
	s.logger.Info("api health check", zap.String("status", h.Status), zap.String("version", h.Version))
	return s.status
}

// Select marks a sport as the single selected one.
func (s *SportSession) Select(id string) error {
	if _, ok := LookupSport(id); !ok {
		return ErrUnknownSport
	}

	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
	return nil
}

// Selected returns the selected sport id, or "" when none is chosen.
func (s *SportSession) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// BeginAnalyze validates the selection and enters the busy state. It returns
// ErrNoSportSelected (posting the select-first notice) or ErrBusy without
// issuing anything.
func (s *SportSession) BeginAnalyze() (AnalysisCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == "" {
		s.notices.post(NoticeWarning, MsgSelectSportFirst)
		return AnalysisCall{}, ErrNoSportSelected
	}
	if s.busy {
		return AnalysisCall{}, ErrBusy
	}

	sport, _ := LookupSport(s.selected)
	s.busy = true

	return AnalysisCall{
		Token: s.seq.Next(ActionAnalyze),
		Sport: sport,
		Request: assistantapi.CityAnalysisRequest{
			Sport:    sport.ID,
			Location: s.conditions.Location,
			Weather:  s.conditions.Weather,
			Time:     s.conditions.Time,
		},
	}, nil
}

// Execute performs the network call for an issued analysis.
func (s *SportSession) Execute(ctx context.Context, call AnalysisCall) (json.RawMessage, error) {
	raw, err := s.api.AnalyzeCity(ctx, call.Request)
	s.metrics.observeRequest("analyze_city", err)
	return raw, err
}

// CompleteAnalyze applies the outcome of call. Stale calls are discarded and
// report false. Otherwise the busy flag is cleared whatever the outcome; a
// failure posts a notice and keeps the previous result.
func (s *SportSession) CompleteAnalyze(call AnalysisCall, raw json.RawMessage, err error) bool {
	if !s.seq.IsLatest(call.Token) {
		s.metrics.observeStale(ActionAnalyze)
		s.logger.Debug("discarding stale analysis", zap.Uint64("seq", call.Token.Seq))
		return false
	}

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.notices.post(NoticeError, MsgAnalysisFailed)
		s.mu.Unlock()
		s.logger.Error("analysis failed", zap.String("sport", call.Sport.ID), zap.Error(err))
		return true
	}
	s.result = append(json.RawMessage(nil), raw...)
	s.mu.Unlock()

	s.logger.Info("analysis result", zap.String("sport", call.Sport.ID), zap.Int("bytes", len(raw)))
	s.notifier.SendReport(notifier.Report{
		Kind:      notifier.ReportKindCityAnalysis,
		Subject:   call.Sport.Name,
		Body:      PrettyJSON(raw),
		Timestamp: time.Now(),
	})
	return true
}

// Analyze runs a full analysis synchronously.
func (s *SportSession) Analyze(ctx context.Context) (json.RawMessage, error) {
	call, err := s.BeginAnalyze()
	if err != nil {
		return nil, err
	}
	raw, err := s.Execute(ctx, call)
	s.CompleteAnalyze(call, raw, err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *SportSession) Snapshot() SportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := LabelAnalyze
	if s.busy {
		label = LabelAnalyzing
	}

	return SportSnapshot{
		Status:      s.status,
		Connected:   s.status == StatusConnected,
		Selected:    s.selected,
		Busy:        s.busy,
		CanAnalyze:  s.selected != "" && !s.busy,
		ButtonLabel: label,
		Result:      append(json.RawMessage(nil), s.result...),
		ResultText:  PrettyJSON(s.result),
		Notice:      s.notices.latest,
	}
}
