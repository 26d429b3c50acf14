package room

import (
	"errors"
	"testing"

	"battlemediation/internal/errkind"
	"battlemediation/pkg/protocol"
)

func sampleTeam() protocol.Team {
	return protocol.Team{{Species: "Pikachu", Moves: []string{"thunderbolt"}, Level: 50}}
}

func TestJoinAssignsFreeSides(t *testing.T) {
	r := New("tok1", "gen9ou")

	side1, err := r.Join("connA")
	if err != nil {
		t.Fatalf("Join connA: %v", err)
	}
	if side1 != protocol.SideP1 {
		t.Errorf("expected first joiner to get p1, got %s", side1)
	}

	side2, err := r.Join("connB")
	if err != nil {
		t.Fatalf("Join connB: %v", err)
	}
	if side2 != protocol.SideP2 {
		t.Errorf("expected second joiner to get p2, got %s", side2)
	}

	if r.Status() != StatusReady {
		t.Errorf("expected StatusReady once both sides bound, got %s", r.Status())
	}
}

func TestJoinSameConnReturnsExistingSide(t *testing.T) {
	r := New("tok2", "gen9ou")
	side, _ := r.Join("connA")

	again, err := r.Join("connA")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again != side {
		t.Errorf("expected rejoin to return the same side %s, got %s", side, again)
	}
}

func TestJoinFullRoomRejectsThirdConnection(t *testing.T) {
	r := New("tok3", "gen9ou")
	r.Join("connA")
	r.Join("connB")

	_, err := r.Join("connC")
	if !errors.Is(err, errkind.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestSubmitTeamBothReady(t *testing.T) {
	r := New("tok4", "gen9ou")
	r.Join("connA")
	r.Join("connB")

	ready, err := r.SubmitTeam(protocol.SideP1, sampleTeam())
	if err != nil {
		t.Fatalf("SubmitTeam p1: %v", err)
	}
	if ready {
		t.Error("expected not ready after only one side submitted")
	}

	ready, err = r.SubmitTeam(protocol.SideP2, sampleTeam())
	if err != nil {
		t.Fatalf("SubmitTeam p2: %v", err)
	}
	if !ready {
		t.Error("expected ready once both sides submitted")
	}

	p1, p2 := r.Teams()
	if len(p1) == 0 || len(p2) == 0 {
		t.Error("expected both teams to be retrievable after submission")
	}
}

func TestSubmitTeamRejectsEmpty(t *testing.T) {
	r := New("tok5", "gen9ou")
	if _, err := r.SubmitTeam(protocol.SideP1, protocol.Team{}); err == nil {
		t.Error("expected an error submitting an empty team")
	}
}

func TestRebindOverridesExistingSide(t *testing.T) {
	r := New("tok6", "gen9ou")
	r.Join("connA")

	r.Rebind(protocol.SideP1, "connB")

	conn, ok := r.ConnFor(protocol.SideP1)
	if !ok || conn != "connB" {
		t.Errorf("expected p1 rebound to connB, got %q (ok=%v)", conn, ok)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	r := New("tok7", "gen9ou")
	r.End()
	r.End()
	if r.Status() != StatusEnded {
		t.Errorf("expected StatusEnded, got %s", r.Status())
	}
}

func TestSubmitTeamOnBattlingRoomIsSilentNoOp(t *testing.T) {
	r := New("tok8", "gen9ou")
	r.Join("connA")
	r.Join("connB")
	r.SubmitTeam(protocol.SideP1, sampleTeam())
	r.SubmitTeam(protocol.SideP2, sampleTeam())
	r.BindRunner(nil) // transitions to StatusBattling without a real MatchRunner

	different := protocol.Team{{Species: "Snorlax", Moves: []string{"tackle"}, Level: 50}}
	ready, err := r.SubmitTeam(protocol.SideP1, different)
	if err != nil {
		t.Fatalf("expected a post-battling SubmitTeam to be a no-op, not an error: %v", err)
	}
	if !ready {
		t.Error("expected a post-battling SubmitTeam to still report ready")
	}

	p1, _ := r.Teams()
	if p1[0].Species == "Snorlax" {
		t.Error("expected the post-battling submission to never overwrite the original team")
	}
}

func TestLeaveClearsSideAndReportsEmpty(t *testing.T) {
	r := New("tok9", "gen9ou")
	r.Join("connA")
	r.Join("connB")

	side, left, bothEmpty := r.Leave("connA")
	if !left || side != protocol.SideP1 {
		t.Fatalf("expected connA to leave as p1, got side=%s left=%v", side, left)
	}
	if bothEmpty {
		t.Error("expected bothEmpty false while connB is still bound")
	}
	if r.Status() != StatusWaiting {
		t.Errorf("expected a partial leave to revert the room to waiting, got %s", r.Status())
	}

	_, left2, bothEmpty2 := r.Leave("connB")
	if !left2 || !bothEmpty2 {
		t.Errorf("expected the second leave to empty the room, got left=%v bothEmpty=%v", left2, bothEmpty2)
	}
}

func TestLeaveIsNoOpForUnknownConnection(t *testing.T) {
	r := New("tok10", "gen9ou")
	r.Join("connA")

	_, left, _ := r.Leave("stranger")
	if left {
		t.Error("expected Leave to report false for a connection never bound to the room")
	}
}

func TestLeaveIsNoOpOnceBattling(t *testing.T) {
	r := New("tok11", "gen9ou")
	r.Join("connA")
	r.Join("connB")
	r.BindRunner(nil)

	_, left, _ := r.Leave("connA")
	if left {
		t.Error("expected Leave to be a no-op on a battling room so a reconnect can still find the side")
	}
	if r.Status() != StatusBattling {
		t.Errorf("expected the room to remain battling, got %s", r.Status())
	}
}
