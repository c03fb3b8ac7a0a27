package app

import (
	"context"
	"encoding/json"
	"garminai/clients/assistantapi"
	"garminai/clients/notifier"
	"sync"
)

// MockAssistant is an in-memory assistant service for state machine tests.
type MockAssistant struct {
	mu sync.Mutex

	health    *assistantapi.Health
	healthErr error

	cityResult json.RawMessage
	cityErr    error
	cityCalls  []assistantapi.CityAnalysisRequest

	activities []assistantapi.Activity
	listErr    error
	listCalls  int

	detail    json.RawMessage
	detailErr error

	insight      *assistantapi.Insight
	insightErr   error
	insightCalls []assistantapi.InsightRequest

	prefStatus int
	prefErr    error
	prefCalls  []assistantapi.Preferences
}

func NewMockAssistant() *MockAssistant {
	return &MockAssistant{
		health:     &assistantapi.Health{Status: "healthy", Version: "1.0.0"},
		cityResult: json.RawMessage(`{"score":42}`),
		prefStatus: 200,
	}
}

func (m *MockAssistant) Health(ctx context.Context) (*assistantapi.Health, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.healthErr != nil {
		return nil, m.healthErr
	}
	return m.health, nil
}

func (m *MockAssistant) AnalyzeCity(ctx context.Context, req assistantapi.CityAnalysisRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cityCalls = append(m.cityCalls, req)
	if m.cityErr != nil {
		return nil, m.cityErr
	}
	return m.cityResult, nil
}

func (m *MockAssistant) ListActivities(ctx context.Context) ([]assistantapi.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]assistantapi.Activity, len(m.activities))
	copy(out, m.activities)
	return out, nil
}

func (m *MockAssistant) GetActivity(ctx context.Context, id string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *MockAssistant) RequestInsight(ctx context.Context, req assistantapi.InsightRequest) (*assistantapi.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insightCalls = append(m.insightCalls, req)
	if m.insightErr != nil {
		return nil, m.insightErr
	}
	return m.insight, nil
}

func (m *MockAssistant) SavePreferences(ctx context.Context, prefs assistantapi.Preferences) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefCalls = append(m.prefCalls, prefs)
	if m.prefErr != nil {
		return 0, m.prefErr
	}
	return m.prefStatus, nil
}

func (m *MockAssistant) CityCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cityCalls)
}

func (m *MockAssistant) InsightCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.insightCalls)
}

// MockNotifier records every report it receives.
type MockNotifier struct {
	mu      sync.Mutex
	reports []notifier.Report
}

func (m *MockNotifier) SendReport(report notifier.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
}

func (m *MockNotifier) Close() error { return nil }

func (m *MockNotifier) Reports() []notifier.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notifier.Report, len(m.reports))
	copy(out, m.reports)
	return out
}
