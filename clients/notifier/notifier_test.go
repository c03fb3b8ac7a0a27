package notifier

import (
	"errors"
	"testing"
	"time"
)

// mockNotifier is a test helper that implements Notifier interface
type mockNotifier struct {
	reports     []Report
	closeErr    error
	closeCalled bool
}

func (m *mockNotifier) SendReport(report Report) {
	m.reports = append(m.reports, report)
}

func (m *mockNotifier) Close() error {
	m.closeCalled = true
	return m.closeErr
}

func TestNewMultiNotifier_FiltersNil(t *testing.T) {
	mn := NewMultiNotifier(&mockNotifier{}, nil, &mockNotifier{}, nil)

	if mn.Count() != 2 {
		t.Errorf("expected 2 notifiers, got %d", mn.Count())
	}
}

func TestNewMultiNotifier_Empty(t *testing.T) {
	mn := NewMultiNotifier()

	if mn.Count() != 0 {
		t.Errorf("expected 0 notifiers, got %d", mn.Count())
	}

	// Should not panic
	mn.SendReport(Report{Kind: ReportKindCityAnalysis})
}

func TestMultiNotifier_SendReport(t *testing.T) {
	mock1 := &mockNotifier{}
	mock2 := &mockNotifier{}

	mn := NewMultiNotifier(mock1, mock2)

	mn.SendReport(Report{
		Kind:      ReportKindActivityInsight,
		Subject:   "Morning run",
		Body:      "steady pace",
		Timestamp: time.Now(),
	})

	// Close waits for queued reports to be delivered.
	if err := mn.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if len(mock1.reports) != 1 || len(mock2.reports) != 1 {
		t.Fatalf("expected one report per notifier, got %d and %d", len(mock1.reports), len(mock2.reports))
	}
	if mock1.reports[0].Subject != "Morning run" {
		t.Errorf("unexpected subject: %s", mock1.reports[0].Subject)
	}
}

// blockingNotifier holds every delivery until release is closed.
type blockingNotifier struct {
	release  chan struct{}
	received chan Report
}

func (b *blockingNotifier) SendReport(report Report) {
	<-b.release
	b.received <- report
}

func (b *blockingNotifier) Close() error {
	return nil
}

func TestMultiNotifier_SendReportDoesNotWaitForSinks(t *testing.T) {
	sink := &blockingNotifier{release: make(chan struct{}), received: make(chan Report, 1)}
	mn := NewMultiNotifier(sink)

	start := time.Now()
	mn.SendReport(Report{Kind: ReportKindCityAnalysis, Subject: "跑步"})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("SendReport blocked for %s", elapsed)
	}

	close(sink.release)
	select {
	case r := <-sink.received:
		if r.Subject != "跑步" {
			t.Errorf("unexpected subject: %s", r.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report was never delivered")
	}

	if err := mn.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestMultiNotifier_DropsWhenQueueFull(t *testing.T) {
	sink := &blockingNotifier{release: make(chan struct{}), received: make(chan Report, queueSize+2)}
	mn := NewMultiNotifier(sink)

	// One report is held by the sink, queueSize wait in the queue.
	for i := 0; i < queueSize+5; i++ {
		mn.SendReport(Report{Kind: ReportKindActivityInsight})
	}
	if mn.Dropped() == 0 {
		t.Error("expected reports to be dropped once the queue is full")
	}

	close(sink.release)
	if err := mn.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestMultiNotifier_SendAfterClose(t *testing.T) {
	mock := &mockNotifier{}
	mn := NewMultiNotifier(mock)

	if err := mn.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	// Should not panic
	mn.SendReport(Report{Kind: ReportKindCityAnalysis})
	if err := mn.Close(); err != nil {
		t.Errorf("second close returned: %v", err)
	}

	if len(mock.reports) != 0 {
		t.Errorf("expected no deliveries after close, got %d", len(mock.reports))
	}
}

func TestMultiNotifier_Close(t *testing.T) {
	mock1 := &mockNotifier{closeErr: errors.New("boom")}
	mock2 := &mockNotifier{}

	mn := NewMultiNotifier(mock1, mock2)
	err := mn.Close()

	if err == nil || err.Error() != "boom" {
		t.Errorf("expected close error to surface, got: %v", err)
	}
	if !mock1.closeCalled || !mock2.closeCalled {
		t.Error("expected all notifiers to be closed")
	}
}

func TestTitle(t *testing.T) {
	tests := map[ReportKind]string{
		ReportKindCityAnalysis:    "🏙️ City Sport Analysis",
		ReportKindActivityInsight: "📈 Activity Insight",
		ReportKindPushedAnalysis:  "🔔 Analysis Update",
		ReportKind("other"):       "📋 Analysis",
	}
	for kind, want := range tests {
		if got := Title(Report{Kind: kind}); got != want {
			t.Errorf("Title(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("跑步分析", 10); got != "跑步分析" {
		t.Errorf("unexpected: %s", got)
	}
	if got := Truncate("跑步分析結果", 3); got != "跑步…" {
		t.Errorf("unexpected: %s", got)
	}
	if got := Truncate("abc", 1); got != "…" {
		t.Errorf("unexpected: %s", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("unexpected: %s", got)
	}
}
