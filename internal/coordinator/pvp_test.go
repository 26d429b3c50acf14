package coordinator

import (
	"sync"
	"testing"

	"battlemediation/internal/room"
	"battlemediation/internal/simulator"
	"battlemediation/pkg/protocol"
)

func newTestPvP() *PvPCoordinator {
	registry := room.NewRegistry()
	adapter := simulator.NewAdapter(simulator.NewFixtureDex())
	return NewPvPCoordinator(registry, adapter, nil)
}

func sampleTeam() protocol.Team {
	return protocol.Team{{Species: "Pikachu", Moves: []string{"thunderbolt"}, Level: 50}}
}

func TestCreateRoomAssignsP1(t *testing.T) {
	c := newTestPvP()
	r, side, err := c.CreateRoom("connA", "gen9ou")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if side != protocol.SideP1 {
		t.Errorf("expected creator to be p1, got %s", side)
	}
	if r.Status() != room.StatusWaiting {
		t.Errorf("expected a freshly created room to be waiting, got %s", r.Status())
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	c := newTestPvP()
	if _, _, err := c.JoinRoom("nonexistent", "connB"); err == nil {
		t.Error("expected joining a nonexistent room to fail")
	}
}

func TestJoinRoomAssignsP2(t *testing.T) {
	c := newTestPvP()
	r, _, _ := c.CreateRoom("connA", "gen9ou")

	_, side, err := c.JoinRoom(r.ID, "connB")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if side != protocol.SideP2 {
		t.Errorf("expected second joiner to be p2, got %s", side)
	}
}

func TestSubmitTeamStartsBattleExactlyOnceUnderConcurrentSubmission(t *testing.T) {
	c := newTestPvP()
	r, _, _ := c.CreateRoom("connA", "gen9ou")
	c.JoinRoom(r.ID, "connB")

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)
	go func() {
		defer wg.Done()
		errs <- c.SubmitTeam(r, protocol.SideP1, sampleTeam())
	}()
	go func() {
		defer wg.Done()
		errs <- c.SubmitTeam(r, protocol.SideP2, sampleTeam())
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("SubmitTeam returned an error: %v", err)
		}
	}

	if r.Status() != room.StatusBattling {
		t.Errorf("expected the room to reach StatusBattling, got %s", r.Status())
	}
	runner, ok := r.Runner()
	if !ok || runner == nil {
		t.Fatal("expected exactly one MatchRunner to be bound")
	}
}

func TestSubmitTeamAfterBattleStartedIsNoOpAndKeepsSameRunner(t *testing.T) {
	c := newTestPvP()
	r, _, _ := c.CreateRoom("connA", "gen9ou")
	c.JoinRoom(r.ID, "connB")

	if err := c.SubmitTeam(r, protocol.SideP1, sampleTeam()); err != nil {
		t.Fatalf("SubmitTeam p1: %v", err)
	}
	if err := c.SubmitTeam(r, protocol.SideP2, sampleTeam()); err != nil {
		t.Fatalf("SubmitTeam p2: %v", err)
	}

	firstRunner, ok := r.Runner()
	if !ok {
		t.Fatal("expected the battle to have started")
	}

	if err := c.SubmitTeam(r, protocol.SideP1, sampleTeam()); err != nil {
		t.Errorf("expected a resubmission after battle start to be a silent no-op, got error %v", err)
	}

	secondRunner, ok := r.Runner()
	if !ok || secondRunner != firstRunner {
		t.Error("expected the bound MatchRunner to be unchanged by a post-battle resubmission")
	}
}

func TestDetermineReconnectSideRejectsConflictingExplicitRequest(t *testing.T) {
	r := room.New("tok", "gen9ou")
	r.Join("connA")
	r.Join("connB")

	// Both sides are already bound to other live connections, so an
	// explicit request for p1 from a third connection must not be
	// honored, and no fallback source can resolve it either.
	if _, err := DetermineReconnectSide(r, "connC", protocol.SideP1); err == nil {
		t.Error("expected the explicit request to be rejected when p1 is bound to a different connection and no side is free")
	}
}

func TestDetermineReconnectSideHonorsExplicitRequestWhenSideIsFree(t *testing.T) {
	r := room.New("tok", "gen9ou")
	r.Join("connA") // takes p1

	side, err := DetermineReconnectSide(r, "connNew", protocol.SideP2)
	if err != nil {
		t.Fatalf("DetermineReconnectSide: %v", err)
	}
	if side != protocol.SideP2 {
		t.Errorf("expected the explicit request for the free side p2 to be honored, got %s", side)
	}
}

func TestDetermineReconnectSideFindsOwnExistingBinding(t *testing.T) {
	r := room.New("tok", "gen9ou")
	r.Join("connA")

	side, err := DetermineReconnectSide(r, "connA", "")
	if err != nil {
		t.Fatalf("DetermineReconnectSide: %v", err)
	}
	if side != protocol.SideP1 {
		t.Errorf("expected connA's existing side p1, got %s", side)
	}
}

func TestDetermineReconnectSideFallsBackToOnlyFreeSide(t *testing.T) {
	r := room.New("tok", "gen9ou")
	r.Join("connA") // takes p1, leaving p2 free

	side, err := DetermineReconnectSide(r, "connNew", "")
	if err != nil {
		t.Fatalf("DetermineReconnectSide: %v", err)
	}
	if side != protocol.SideP2 {
		t.Errorf("expected the only free side p2, got %s", side)
	}
}

func TestDetermineReconnectSideUnresolvable(t *testing.T) {
	r := room.New("tok", "gen9ou")
	r.Join("connA")
	r.Join("connB")

	if _, err := DetermineReconnectSide(r, "connC", ""); err == nil {
		t.Error("expected an unresolvable reconnect (both sides bound, no hint) to error")
	}
}
