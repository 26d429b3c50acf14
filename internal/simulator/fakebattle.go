package simulator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"battlemediation/pkg/protocol"
)

// battleEngine is the in-process stand-in for the embedded simulator
// subprocess. It is intentionally simple (single active mon per side, a
// coarse damage formula) since its job is to exercise the adapter/
// MatchRunner contract, not to be a faithful battle engine — the real
// simulator is explicitly out of scope (spec.md §1(b)).
type battleEngine struct {
	dex      Dex
	formatID string
	seed     int64

	rawOmniscient chan []byte
	rawP1         chan []byte
	rawP2         chan []byte

	cmds chan sideCommand

	playerNames map[protocol.Side]string

	mu      sync.Mutex
	mons    map[protocol.Side][]*battlerMon
	active  map[protocol.Side]int
	lead    map[protocol.Side]int
	pending map[protocol.Side]string
	turn    int
	over    bool
	closed  bool
}

type sideCommand struct {
	side protocol.Side
	text string
}

type battlerMon struct {
	spec    protocol.PokemonSpec
	species SpeciesData
	nick    string
	maxHP   int
	curHP   int
	fainted bool
	moves   []MoveData
}

const maxTurns = 50

func newBattleEngine(dex Dex, formatID string, seed *int64, p1, p2 PlayerInit) (*battleEngine, error) {
	s := int64(1)
	if seed != nil {
		s = *seed
	}

	e := &battleEngine{
		dex:           dex,
		formatID:      formatID,
		seed:          s,
		rawOmniscient: make(chan []byte),
		rawP1:         make(chan []byte),
		rawP2:         make(chan []byte),
		cmds:          make(chan sideCommand, 8),
		mons:          map[protocol.Side][]*battlerMon{},
		active:        map[protocol.Side]int{protocol.SideP1: 0, protocol.SideP2: 0},
		lead:          map[protocol.Side]int{},
		pending:       map[protocol.Side]string{},
		playerNames:   map[protocol.Side]string{protocol.SideP1: p1.Name, protocol.SideP2: p2.Name},
	}

	p1mons, err := buildMons(dex, p1.Team)
	if err != nil {
		return nil, err
	}
	p2mons, err := buildMons(dex, p2.Team)
	if err != nil {
		return nil, err
	}
	e.mons[protocol.SideP1] = p1mons
	e.mons[protocol.SideP2] = p2mons

	return e, nil
}

func buildMons(dex Dex, team protocol.Team) ([]*battlerMon, error) {
	mons := make([]*battlerMon, 0, len(team))
	for i, spec := range team {
		species, ok := dex.LookupSpecies(spec.Species)
		if !ok {
			return nil, fmt.Errorf("%w: unknown species %q", errSimulatorUnavailable, spec.Species)
		}
		moves := make([]MoveData, 0, len(spec.Moves))
		for _, mid := range spec.Moves {
			if m, ok := dex.LookupMove(mid); ok {
				moves = append(moves, m)
			}
		}
		if len(moves) == 0 {
			// A team with no resolvable moves still needs something to
			// select from; fall back to Tackle rather than fail the match.
			if tackle, ok := dex.LookupMove("tackle"); ok {
				moves = append(moves, tackle)
			}
		}
		level := spec.Level
		if level <= 0 {
			level = 50
		}
		maxHP := calcHP(species.BaseStats["hp"], level)
		mons = append(mons, &battlerMon{
			spec:    spec,
			species: species,
			nick:    fmt.Sprintf("%s%d", species.Name, i+1),
			maxHP:   maxHP,
			curHP:   maxHP,
			moves:   moves,
		})
	}
	return mons, nil
}

func calcHP(base, level int) int {
	if base <= 0 {
		base = 50
	}
	return int(float64(base)*2*float64(level)/100) + level + 10
}

// start launches the engine's single-goroutine run loop. Called only
// after the adapter's forwarding goroutines are already draining the raw
// channels (see Adapter.NewBattle).
func (e *battleEngine) start() {
	go e.run()
}

func (e *battleEngine) submit(side protocol.Side, cmd string) error {
	cmd = strings.TrimSpace(cmd)
	for _, r := range cmd {
		if r < 0x20 {
			return fmt.Errorf("command contains control characters")
		}
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil
	}
	select {
	case e.cmds <- sideCommand{side: side, text: cmd}:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

func (e *battleEngine) shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	close(e.cmds)
}

func (e *battleEngine) emit(stream chan []byte, format string, args ...interface{}) {
	stream <- []byte(fmt.Sprintf(format, args...))
}

func (e *battleEngine) emitOmni(format string, args ...interface{}) {
	e.emit(e.rawOmniscient, format, args...)
}

func (e *battleEngine) run() {
	defer e.finish()

	e.emitOmni("|player|p1|%s|", e.playerNames[protocol.SideP1])
	e.emitOmni("|player|p2|%s|", e.playerNames[protocol.SideP2])
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		for _, m := range e.mons[side] {
			e.emitOmni("|poke|%s|%s|", side, m.species.Name)
		}
	}
	e.emitOmni("|teampreview")

	e.sendTeamPreviewRequests()
	if !e.collectLeads() {
		return
	}

	e.emitOmni("|start")
	e.turn = 1
	e.emitOmni("|turn|%d", e.turn)
	e.sendMoveRequests()

	for !e.over {
		if !e.collectAndResolveTurn() {
			return
		}
	}
}

func (e *battleEngine) finish() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	// run is the only goroutine that emits, so once it is done the raw
	// streams can close, which in turn closes the handle's LineStreams.
	close(e.rawOmniscient)
	close(e.rawP1)
	close(e.rawP2)
}

func (e *battleEngine) sendTeamPreviewRequests() {
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		req := buildRequest(side, e.mons[side], -1, true, false)
		e.sendRequest(side, req)
	}
}

// collectLeads waits for a `team N` choice from both sides before
// proceeding. Returns false if the engine was shut down while waiting.
func (e *battleEngine) collectLeads() bool {
	need := map[protocol.Side]bool{protocol.SideP1: true, protocol.SideP2: true}
	for len(need) > 0 {
		cmd, ok := <-e.cmds
		if !ok {
			return false
		}
		if !need[cmd.side] {
			continue
		}
		idx := parseSlotCommand(cmd.text, "team", len(e.mons[cmd.side]))
		if idx < 0 {
			idx = 0
		}
		e.lead[cmd.side] = idx
		e.active[cmd.side] = idx
		delete(need, cmd.side)
	}
	return true
}

func (e *battleEngine) sendMoveRequests() {
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		if e.sideDefeated(side) {
			continue
		}
		req := buildRequest(side, e.mons[side], e.active[side], false, false)
		e.sendRequest(side, req)
	}
}

func (e *battleEngine) sendForceSwitch(side protocol.Side) {
	req := buildRequest(side, e.mons[side], e.active[side], false, true)
	e.sendRequest(side, req)
}

func (e *battleEngine) sendRequest(side protocol.Side, req Request) {
	data, _ := json.Marshal(req)
	line := append([]byte("|request|"), data...)
	var stream chan []byte
	if side == protocol.SideP1 {
		stream = e.rawP1
	} else {
		stream = e.rawP2
	}
	stream <- line
}

// collectAndResolveTurn waits for both sides' pending action (or a forced
// switch from a side that just fainted) then resolves the turn. Returns
// false if the engine was shut down while waiting.
func (e *battleEngine) collectAndResolveTurn() bool {
	need := map[protocol.Side]bool{}
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		if !e.sideDefeated(side) {
			need[side] = true
		}
	}
	for len(need) > 0 {
		cmd, ok := <-e.cmds
		if !ok {
			return false
		}
		if !need[cmd.side] {
			continue
		}
		e.pending[cmd.side] = cmd.text
		delete(need, cmd.side)
	}

	e.resolveTurn()

	if e.over {
		return true
	}

	e.turn++
	if e.turn > maxTurns {
		e.emitOmni("|tie|")
		e.over = true
		return true
	}
	e.emitOmni("|turn|%d", e.turn)
	e.sendMoveRequests()
	return true
}

type action struct {
	side     protocol.Side
	isSwitch bool
	slot     int
	move     MoveData
	priority int
	speed    int
}

func (e *battleEngine) resolveTurn() {
	var actions []action
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		text, ok := e.pending[side]
		delete(e.pending, side)
		if !ok {
			continue
		}
		act := e.parseAction(side, text)
		actions = append(actions, act)
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].isSwitch != actions[j].isSwitch {
			return actions[i].isSwitch
		}
		if actions[i].priority != actions[j].priority {
			return actions[i].priority > actions[j].priority
		}
		return actions[i].speed > actions[j].speed
	})

	for _, act := range actions {
		if e.over {
			break
		}
		mon := e.mons[act.side][e.active[act.side]]
		if mon.fainted && !act.isSwitch {
			continue
		}
		if act.isSwitch {
			e.applySwitch(act.side, act.slot)
			continue
		}
		e.applyMove(act.side, act.move)
	}
}

func (e *battleEngine) parseAction(side protocol.Side, text string) action {
	mon := e.mons[side][e.active[side]]
	speed := mon.species.BaseStats["spe"]

	fields := strings.Fields(text)
	if len(fields) == 0 {
		fields = []string{"default"}
	}
	switch fields[0] {
	case "switch":
		slot := parseSlotCommand(text, "switch", len(e.mons[side]))
		return action{side: side, isSwitch: true, slot: slot, speed: speed}
	case "move":
		idx := 0
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				idx = n - 1
			}
		}
		if idx < 0 || idx >= len(mon.moves) {
			idx = 0
		}
		mv := mon.moves[idx]
		return action{side: side, move: mv, priority: mv.Priority, speed: speed}
	default: // "default" or anything unrecognized: use first move
		mv := mon.moves[0]
		return action{side: side, move: mv, priority: mv.Priority, speed: speed}
	}
}

func (e *battleEngine) applySwitch(side protocol.Side, slot int) {
	if slot < 0 || slot >= len(e.mons[side]) || e.mons[side][slot].fainted {
		return
	}
	e.active[side] = slot
	e.emitOmni("|switch|%s|%s|%d/%d", side, e.mons[side][slot].nick, e.mons[side][slot].curHP, e.mons[side][slot].maxHP)
}

func (e *battleEngine) applyMove(side protocol.Side, mv MoveData) {
	defSide := side.Other()
	attacker := e.mons[side][e.active[side]]
	defender := e.mons[defSide][e.active[defSide]]

	e.emitOmni("|move|%s|%s|%s", side, mv.Name, defSide)

	if mv.Power <= 0 {
		return
	}

	eff := 1.0
	for _, t := range defender.species.Types {
		eff *= e.dex.TypeEffectiveness(mv.Type, t)
	}

	dmg := coarseDamage(attacker, defender, mv, eff)
	defender.curHP -= dmg
	if defender.curHP < 0 {
		defender.curHP = 0
	}

	e.emitOmni("|-damage|%s|%d/%d", defSide, defender.curHP, defender.maxHP)

	if defender.curHP == 0 && !defender.fainted {
		defender.fainted = true
		e.emitOmni("|faint|%s", defSide)
		if e.sideDefeated(defSide) {
			e.emitOmni("|win|%s", side)
			e.over = true
			return
		}
		e.sendForceSwitch(defSide)
	}
}

// coarseDamage is the fake battle engine's pure damage formula. The AI
// tiers do not call it; they score moves with their own heuristics.
func coarseDamage(attacker, defender *battlerMon, mv MoveData, typeEff float64) int {
	atkStat := attacker.species.BaseStats["atk"]
	defStat := defender.species.BaseStats["def"]
	if mv.Category == "special" {
		atkStat = attacker.species.BaseStats["spa"]
		defStat = defender.species.BaseStats["spd"]
	}
	if defStat <= 0 {
		defStat = 1
	}
	base := float64(mv.Power) * float64(atkStat) / float64(defStat) / 8.0
	dmg := int(math.Round(base * typeEff))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

func (e *battleEngine) sideDefeated(side protocol.Side) bool {
	for _, m := range e.mons[side] {
		if !m.fainted {
			return false
		}
	}
	return true
}

// parseSlotCommand extracts the 1-indexed slot argument from a "team N" or
// "switch N" command as a 0-indexed slot in [0, max). Returns -1 if the
// command is unparseable or the slot is out of range.
func parseSlotCommand(text, verb string, max int) int {
	fields := strings.Fields(text)
	if len(fields) < 2 || fields[0] != verb {
		return -1
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return -1
	}
	n--
	if n < 0 || n >= max {
		return -1
	}
	return n
}
