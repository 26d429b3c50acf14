// Package simulator hides all knowledge of the embedded battle simulator
// behind a narrow adapter (spec.md §4.1). The simulator itself is treated
// as an opaque streaming process: this package owns the one in-process
// stand-in for it (fakebattle.go) but nothing outside this package may
// depend on its internals.
package simulator

import (
	"encoding/json"
	"fmt"
	"sync"

	"battlemediation/pkg/protocol"
)

// LineStream is a read-only channel of byte-exact protocol lines. It is the
// in-process equivalent of a subprocess's stdout: lines arrive in emission
// order and the channel closes when the underlying battle ends.
type LineStream <-chan []byte

// PlayerInit is the per-side data needed to start a battle.
type PlayerInit struct {
	Name string
	Team protocol.Team
}

// BattleHandle is what newBattle hands back: the three output streams and
// a write side for forwarding choice commands.
type BattleHandle struct {
	Omniscient LineStream
	P1         LineStream
	P2         LineStream

	engine *battleEngine
}

// Forward writes a choice command verbatim into the given side's input,
// exactly as spec.md §4.3's forwardChoice requires of the caller.
func (h *BattleHandle) Forward(side protocol.Side, cmd string) error {
	return h.engine.submit(side, cmd)
}

// Close tears down the battle engine immediately, regardless of whether it
// reached |win|/|tie|. Used by MatchRunner.close (spec.md §4.3).
func (h *BattleHandle) Close() {
	h.engine.shutdown()
}

// Adapter wraps the embedded simulator. Nothing outside this package
// constructs a battle any other way.
type Adapter struct {
	dex Dex
}

// NewAdapter constructs a SimulatorAdapter backed by dex.
func NewAdapter(dex Dex) *Adapter {
	return &Adapter{dex: dex}
}

// Dex exposes the adapter's static data lookup surface (spec.md §4.1).
func (a *Adapter) Dex() Dex {
	return a.dex
}

// NewBattle constructs a fresh simulator instance and its three readable
// sub-streams. Per spec.md §4.1, the adapter starts consuming the
// simulator's internal output before the engine emits its opening lines
// (|player| for both sides, |poke|, |teampreview), so no early protocol
// line can be dropped.
func (a *Adapter) NewBattle(formatID string, seed *int64, p1, p2 PlayerInit) (*BattleHandle, error) {
	if len(p1.Team) == 0 || len(p2.Team) == 0 {
		return nil, fmt.Errorf("%w: both sides need a non-empty team", errSimulatorUnavailable)
	}

	engine, err := newBattleEngine(a.dex, formatID, seed, p1, p2)
	if err != nil {
		return nil, err
	}

	// Forwarding goroutines start (and thus begin consuming the engine's
	// internal unbuffered channels) before the engine's own goroutine is
	// started below, so the initialization lines it emits first can never
	// be produced into a channel nobody is draining yet.
	omni := make(chan []byte, 256)
	p1out := make(chan []byte, 256)
	p2out := make(chan []byte, 256)

	var wg sync.WaitGroup
	wg.Add(3)
	go forwardLines(&wg, engine.rawOmniscient, omni)
	go forwardLines(&wg, engine.rawP1, p1out)
	go forwardLines(&wg, engine.rawP2, p2out)

	engine.start()

	go func() {
		wg.Wait()
		close(omni)
		close(p1out)
		close(p2out)
	}()

	return &BattleHandle{
		Omniscient: omni,
		P1:         p1out,
		P2:         p2out,
		engine:     engine,
	}, nil
}

func forwardLines(wg *sync.WaitGroup, in <-chan []byte, out chan<- []byte) {
	defer wg.Done()
	for line := range in {
		out <- line
	}
}

// PackTeam serializes a Team the way the adapter would hand it to the
// simulator's `player` command.
func (a *Adapter) PackTeam(t protocol.Team) ([]byte, error) {
	return json.Marshal(t)
}

// UnpackTeam is the inverse of PackTeam.
func (a *Adapter) UnpackTeam(b []byte) (protocol.Team, error) {
	var t protocol.Team
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// errSimulatorUnavailable is the low-level sentinel this package wraps
// around construction failures. Callers outside this package see it only
// through the error chain; the coordinators wrap any construction failure
// as an errkind.MatchFatal error.
var errSimulatorUnavailable = fmt.Errorf("simulator unavailable")
