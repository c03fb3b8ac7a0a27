package notifier

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReportKind indicates which flow produced a report.
type ReportKind string

const (
	ReportKindCityAnalysis    ReportKind = "city_analysis"
	ReportKindActivityInsight ReportKind = "activity_insight"
	ReportKindPushedAnalysis  ReportKind = "pushed_analysis" // Delivered over the push channel
)

// Report contains the data needed to share a completed analysis.
// All text fields are plain text.
type Report struct {
	Kind ReportKind

	// Subject, e.g. the sport name or activity title
	Subject string

	// Body is the rendered result (pretty JSON for city analyses)
	Body        string
	Suggestions []string

	Timestamp time.Time
}

// Notifier is the interface for sharing analysis reports to various channels.
type Notifier interface {
	// SendReport delivers a report.
	SendReport(report Report)

	// Close cleans up any resources.
	Close() error
}

// queueSize bounds the reports waiting for delivery.
const queueSize = 32

// MultiNotifier broadcasts reports to multiple notifiers. Delivery runs on a
// background goroutine so SendReport never waits on a sink.
type MultiNotifier struct {
	notifiers []Notifier

	queue   chan Report
	done    chan struct{}
	dropped atomic.Uint64

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}

	m := &MultiNotifier{notifiers: active}
	if len(active) > 0 {
		m.queue = make(chan Report, queueSize)
		m.done = make(chan struct{})
		go m.deliver()
	}
	return m
}

// SendReport queues the report for all registered notifiers. When the queue
// is full the report is dropped.
func (m *MultiNotifier) SendReport(report Report) {
	if len(m.notifiers) == 0 {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- report:
	default:
		m.dropped.Add(1)
	}
}

func (m *MultiNotifier) deliver() {
	defer close(m.done)
	for report := range m.queue {
		for _, n := range m.notifiers {
			n.SendReport(report)
		}
	}
}

// Close delivers the queued reports and closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	m.closeOnce.Do(func() {
		if len(m.notifiers) > 0 {
			m.mu.Lock()
			m.closed = true
			close(m.queue)
			m.mu.Unlock()
			<-m.done
		}

		for _, n := range m.notifiers {
			if err := n.Close(); err != nil {
				m.closeErr = err
			}
		}
	})
	return m.closeErr
}

// Dropped returns the number of reports discarded because the queue was full.
func (m *MultiNotifier) Dropped() uint64 {
	return m.dropped.Load()
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}

// Title returns a short heading for a report.
func Title(r Report) string {
	switch r.Kind {
	case ReportKindCityAnalysis:
		return "🏙️ City Sport Analysis"
	case ReportKindActivityInsight:
		return "📈 Activity Insight"
	case ReportKindPushedAnalysis:
		return "🔔 Analysis Update"
	}
	return "📋 Analysis"
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
