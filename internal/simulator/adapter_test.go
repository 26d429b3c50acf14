package simulator

import (
	"strings"
	"testing"
	"time"

	"battlemediation/pkg/protocol"
)

func samplePlayers() (PlayerInit, PlayerInit) {
	p1 := PlayerInit{Name: "Ash", Team: protocol.Team{{Species: "Pikachu", Moves: []string{"thunderbolt"}, Level: 50}}}
	p2 := PlayerInit{Name: "Gary", Team: protocol.Team{{Species: "Blastoise", Moves: []string{"surf"}, Level: 50}}}
	return p1, p2
}

func TestNewBattleRejectsEmptyTeam(t *testing.T) {
	a := NewAdapter(NewFixtureDex())
	p1, p2 := samplePlayers()
	p2.Team = nil

	if _, err := a.NewBattle("gen9ou", nil, p1, p2); err == nil {
		t.Error("expected NewBattle to reject an empty team")
	}
}

func TestNewBattleRejectsUnknownSpecies(t *testing.T) {
	a := NewAdapter(NewFixtureDex())
	p1, p2 := samplePlayers()
	p1.Team = protocol.Team{{Species: "Missingno", Moves: []string{"tackle"}, Level: 50}}

	if _, err := a.NewBattle("gen9ou", nil, p1, p2); err == nil {
		t.Error("expected NewBattle to reject an unresolvable species")
	}
}

func TestNewBattleEmitsInitializationLinesOnOmniscient(t *testing.T) {
	a := NewAdapter(NewFixtureDex())
	p1, p2 := samplePlayers()
	handle, err := a.NewBattle("gen9ou", nil, p1, p2)
	if err != nil {
		t.Fatalf("NewBattle: %v", err)
	}
	defer handle.Close()

	var seenPlayer, seenPoke, seenTeampreview bool
	deadline := time.After(time.Second)
collect:
	for {
		select {
		case line, ok := <-handle.Omniscient:
			if !ok {
				break collect
			}
			s := string(line)
			switch {
			case strings.HasPrefix(s, "|player|"):
				seenPlayer = true
			case strings.HasPrefix(s, "|poke|"):
				seenPoke = true
			case strings.HasPrefix(s, "|teampreview"):
				seenTeampreview = true
				break collect
			}
		case <-deadline:
			t.Fatal("timed out waiting for initialization lines")
		}
	}

	if !seenPlayer || !seenPoke || !seenTeampreview {
		t.Errorf("expected player/poke/teampreview lines, got player=%v poke=%v teampreview=%v", seenPlayer, seenPoke, seenTeampreview)
	}
}

func TestPackUnpackTeamRoundTrip(t *testing.T) {
	a := NewAdapter(NewFixtureDex())
	team := protocol.Team{{Species: "Pikachu", Moves: []string{"thunderbolt", "quickattack"}, Level: 50}}

	data, err := a.PackTeam(team)
	if err != nil {
		t.Fatalf("PackTeam: %v", err)
	}

	got, err := a.UnpackTeam(data)
	if err != nil {
		t.Fatalf("UnpackTeam: %v", err)
	}
	if len(got) != 1 || got[0].Species != "Pikachu" {
		t.Errorf("unexpected round-trip result: %+v", got)
	}
}

func TestForwardAfterCloseDoesNotPanic(t *testing.T) {
	a := NewAdapter(NewFixtureDex())
	p1, p2 := samplePlayers()
	handle, err := a.NewBattle("gen9ou", nil, p1, p2)
	if err != nil {
		t.Fatalf("NewBattle: %v", err)
	}
	handle.Close()

	if err := handle.Forward(protocol.SideP1, "move 1"); err != nil {
		t.Errorf("expected Forward after Close to be a silent no-op, got %v", err)
	}
}
