package room

import (
	"testing"
	"time"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := NewRegistry()

	r, err := reg.Create("gen9ou")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == "" {
		t.Error("expected a non-empty room token")
	}

	got, ok := reg.Get(r.ID)
	if !ok || got != r {
		t.Errorf("expected Get to return the same room for token %s", r.ID)
	}

	if reg.Count() != 1 {
		t.Errorf("expected 1 room tracked, got %d", reg.Count())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("nonexistent"); ok {
		t.Error("expected Get on an unknown token to report not found")
	}
}

func TestRegistryDelete(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("gen9ou")
	reg.Delete(r.ID)
	if _, ok := reg.Get(r.ID); ok {
		t.Error("expected room to be gone after Delete")
	}
}

func TestRegistryTokensAreDistinct(t *testing.T) {
	reg := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		r, err := reg.Create("gen9ou")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[r.ID] {
			t.Fatalf("duplicate room token minted: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestSweepIdleRoomsRemovesOnlyNonBattlingIdleRooms(t *testing.T) {
	reg := NewRegistry()

	idle, _ := reg.Create("gen9ou")
	idle.lastActive = time.Now().Add(-time.Hour)

	busy, _ := reg.Create("gen9ou")
	busy.lastActive = time.Now().Add(-time.Hour)
	busy.status = StatusBattling

	fresh, _ := reg.Create("gen9ou")

	reg.sweepIdleRooms(time.Minute)

	if _, ok := reg.Get(idle.ID); ok {
		t.Error("expected the idle, non-battling room to be swept")
	}
	if _, ok := reg.Get(busy.ID); !ok {
		t.Error("expected the battling room to survive the sweep regardless of idle time")
	}
	if _, ok := reg.Get(fresh.ID); !ok {
		t.Error("expected the freshly created room to survive the sweep")
	}
}

func TestStartStopIdleSweep(t *testing.T) {
	reg := NewRegistry()
	reg.StartIdleSweep(10*time.Millisecond, time.Millisecond)
	defer reg.StopIdleSweep()

	r, _ := reg.Create("gen9ou")
	r.lastActive = time.Now().Add(-time.Hour)

	deadline := time.After(time.Second)
	for {
		if _, ok := reg.Get(r.ID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the idle sweep goroutine to remove the room within 1s")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
