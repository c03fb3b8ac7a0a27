package app

import "sync"

// Actions tracked by a Sequencer.
const (
	ActionAnalyze = "analyze"
	ActionRefresh = "refresh"
	ActionInsight = "insight"
	ActionDetail  = "detail"
)

// Token identifies one issued request of an action.
type Token struct {
	Action string
	Seq    uint64
}

// Sequencer hands out monotonically increasing tokens per action. A response
// may only be applied while its token is still the latest for that action.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next issues a new token for action, superseding all earlier ones.
func (s *Sequencer) Next(action string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[action]++
	return Token{Action: action, Seq: s.latest[action]}
}

// Supersede invalidates every outstanding token for action.
func (s *Sequencer) Supersede(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[action]++
}

// IsLatest reports whether t is the most recent token for its action.
func (s *Sequencer) IsLatest(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Seq != 0 && s.latest[t.Action] == t.Seq
}
