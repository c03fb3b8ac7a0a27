package app

import (
	"sync"
	"testing"
)

func TestSequencerLatestWins(t *testing.T) {
	s := NewSequencer()

	first := s.Next(ActionInsight)
	if !s.IsLatest(first) {
		t.Error("first token should be latest")
	}

	second := s.Next(ActionInsight)
	if s.IsLatest(first) {
		t.Error("first token should be superseded")
	}
	if !s.IsLatest(second) {
		t.Error("second token should be latest")
	}
}

func TestSequencerActionsIndependent(t *testing.T) {
	s := NewSequencer()

	refresh := s.Next(ActionRefresh)
	s.Next(ActionInsight)

	if !s.IsLatest(refresh) {
		t.Error("insight tokens should not supersede refresh tokens")
	}
}

func TestSequencerSupersede(t *testing.T) {
	s := NewSequencer()

	tok := s.Next(ActionInsight)
	s.Supersede(ActionInsight)
	if s.IsLatest(tok) {
		t.Error("token should be stale after Supersede")
	}

	next := s.Next(ActionInsight)
	if next.Seq <= tok.Seq {
		t.Errorf("expected increasing sequence, got %d after %d", next.Seq, tok.Seq)
	}
}

func TestSequencerZeroToken(t *testing.T) {
	s := NewSequencer()
	if s.IsLatest(Token{Action: ActionAnalyze}) {
		t.Error("zero token should never be latest")
	}
}

func TestSequencerConcurrentNext(t *testing.T) {
	s := NewSequencer()

	var wg sync.WaitGroup
	seen := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- s.Next(ActionRefresh).Seq
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for seq := range seen {
		if unique[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		unique[seq] = true
	}
	if len(unique) != 100 {
		t.Errorf("expected 100 unique tokens, got %d", len(unique))
	}
}
