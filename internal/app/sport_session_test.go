package app

import (
	"context"
	"encoding/json"
	"errors"
	"garminai/clients/notifier"
	"garminai/config"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSportSession(api *MockAssistant, n *MockNotifier) *SportSession {
	if n == nil {
		n = &MockNotifier{}
	}
	return NewSportSession(zap.NewNop(), api, n, NewMetrics(), config.AnalysisConfig{
		Location: "台北市",
		Weather:  "晴天",
		Time:     "早晨",
	})
}

func TestSportSessionInitialState(t *testing.T) {
	s := newTestSportSession(NewMockAssistant(), nil)

	snap := s.Snapshot()
	require.Equal(t, StatusChecking, snap.Status)
	require.False(t, snap.Connected)
	require.Empty(t, snap.Selected)
	require.False(t, snap.Busy)
	require.False(t, snap.CanAnalyze)
	require.Equal(t, LabelAnalyze, snap.ButtonLabel)
	require.Empty(t, snap.ResultText)
}

func TestSportSessionProbe(t *testing.T) {
	api := NewMockAssistant()
	s := newTestSportSession(api, nil)

	require.Equal(t, StatusConnected, s.Probe(context.Background()))
	require.True(t, s.Snapshot().Connected)

	api.healthErr = errors.New("connection refused")
	require.Equal(t, StatusError, s.Probe(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Zero(t, snap.Notice.Seq, "probe failures never raise a notice")
}

func TestSportSessionSelect(t *testing.T) {
	sports := Sports()

	for _, first := range sports {
		for _, second := range sports {
			s := newTestSportSession(NewMockAssistant(), nil)

			require.NoError(t, s.Select(first.ID))
			require.NoError(t, s.Select(second.ID), "%s then %s", first.ID, second.ID)
			require.Equal(t, second.ID, s.Selected(), "%s then %s", first.ID, second.ID)
			require.Equal(t, second.ID, s.Snapshot().Selected)
		}
	}
}

func TestSportSessionSelectUnknownKeepsSelection(t *testing.T) {
	s := newTestSportSession(NewMockAssistant(), nil)

	require.NoError(t, s.Select("yoga"))
	require.ErrorIs(t, s.Select("curling"), ErrUnknownSport)
	require.Equal(t, "yoga", s.Selected())
}

func TestSportSessionAnalyzeWithoutSelection(t *testing.T) {
	api := NewMockAssistant()
	s := newTestSportSession(api, nil)

	_, err := s.Analyze(context.Background())
	require.ErrorIs(t, err, ErrNoSportSelected)
	require.Zero(t, api.CityCalls())

	snap := s.Snapshot()
	require.Equal(t, MsgSelectSportFirst, snap.Notice.Text)
	require.Equal(t, NoticeWarning, snap.Notice.Level)
	require.False(t, snap.Busy)
}

func TestSportSessionAnalyzeSuccess(t *testing.T) {
	api := NewMockAssistant()
	n := &MockNotifier{}
	s := newTestSportSession(api, n)
	require.NoError(t, s.Select("running"))

	raw, err := s.Analyze(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"score":42}`, string(raw))

	require.Len(t, api.cityCalls, 1)
	require.Equal(t, "running", api.cityCalls[0].Sport)
	require.Equal(t, "台北市", api.cityCalls[0].Location)
	require.Equal(t, "晴天", api.cityCalls[0].Weather)
	require.Equal(t, "早晨", api.cityCalls[0].Time)

	snap := s.Snapshot()
	require.Equal(t, "{\n  \"score\": 42\n}", snap.ResultText)
	require.False(t, snap.Busy)
	require.True(t, snap.CanAnalyze)
	require.Equal(t, LabelAnalyze, snap.ButtonLabel)

	reports := n.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, notifier.ReportKindCityAnalysis, reports[0].Kind)
	require.Equal(t, "跑步", reports[0].Subject)
	require.Equal(t, snap.ResultText, reports[0].Body)
}

func TestSportSessionBusyDuringFlight(t *testing.T) {
	api := NewMockAssistant()
	s := newTestSportSession(api, nil)
	require.NoError(t, s.Select("cycling"))

	call, err := s.BeginAnalyze()
	require.NoError(t, err)

	snap := s.Snapshot()
	require.True(t, snap.Busy)
	require.False(t, snap.CanAnalyze)
	require.Equal(t, LabelAnalyzing, snap.ButtonLabel)

	_, err = s.BeginAnalyze()
	require.ErrorIs(t, err, ErrBusy)

	// Selection may change while a request is in flight.
	require.NoError(t, s.Select("swimming"))

	require.True(t, s.CompleteAnalyze(call, json.RawMessage(`{"ok":true}`), nil))
	snap = s.Snapshot()
	require.False(t, snap.Busy)
	require.Equal(t, "swimming", snap.Selected)
	require.Equal(t, "cycling", call.Request.Sport)
}

func TestSportSessionAnalyzeFailureKeepsResult(t *testing.T) {
	api := NewMockAssistant()
	n := &MockNotifier{}
	s := newTestSportSession(api, n)
	require.NoError(t, s.Select("running"))

	_, err := s.Analyze(context.Background())
	require.NoError(t, err)
	before := s.Snapshot().ResultText

	api.cityErr = errors.New("status 500")
	_, err = s.Analyze(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, before, snap.ResultText)
	require.Equal(t, MsgAnalysisFailed, snap.Notice.Text)
	require.Equal(t, NoticeError, snap.Notice.Level)
	require.False(t, snap.Busy)
	require.Len(t, n.Reports(), 1)
}

func TestSportSessionStaleCompletionDiscarded(t *testing.T) {
	s := newTestSportSession(NewMockAssistant(), nil)
	require.NoError(t, s.Select("running"))

	call, err := s.BeginAnalyze()
	require.NoError(t, err)

	s.seq.Supersede(ActionAnalyze)
	require.False(t, s.CompleteAnalyze(call, json.RawMessage(`{"late":1}`), nil))

	snap := s.Snapshot()
	require.Empty(t, snap.ResultText)
	require.True(t, snap.Busy)
}

func TestSportSessionNoticeSequence(t *testing.T) {
	s := newTestSportSession(NewMockAssistant(), nil)

	_, _ = s.BeginAnalyze()
	first := s.Snapshot().Notice
	_, _ = s.BeginAnalyze()
	second := s.Snapshot().Notice

	require.Equal(t, first.Text, second.Text)
	require.Greater(t, second.Seq, first.Seq)
}
