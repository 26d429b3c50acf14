package audit

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesNestedDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
}

func TestRecordConnectionAndRecent(t *testing.T) {
	s := openTestStore(t)
	s.RecordConnection("conn-1", "accepted")
	s.RecordConnection("conn-1", "closed")

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Recent orders newest first.
	if events[0].Detail != "closed" || events[1].Detail != "accepted" {
		t.Errorf("expected newest-first ordering, got %+v", events)
	}
	if events[0].Kind != "connection" || events[0].ConnID != "conn-1" {
		t.Errorf("unexpected event shape: %+v", events[0])
	}
}

func TestRecordMatchAndAIDecision(t *testing.T) {
	s := openTestStore(t)
	s.RecordMatch("match-1", "started")
	s.RecordAIDecision("match-1", "p2", "tier4-heuristic chose move 1")

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	var sawMatch, sawAI bool
	for _, e := range events {
		switch e.Kind {
		case "match":
			sawMatch = true
			if e.MatchID != "match-1" {
				t.Errorf("expected match id match-1, got %s", e.MatchID)
			}
		case "ai-decision":
			sawAI = true
			if e.Side != "p2" {
				t.Errorf("expected side p2, got %s", e.Side)
			}
		}
	}
	if !sawMatch || !sawAI {
		t.Errorf("expected both a match and an ai-decision event, got %+v", events)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		s.RecordConnection("conn", "ping")
	}
	events, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected Recent(2) to return exactly 2 events, got %d", len(events))
	}
}
