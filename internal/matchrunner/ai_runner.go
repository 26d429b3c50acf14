package matchrunner

import (
	"encoding/json"
	"strings"

	"battlemediation/internal/simulator"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

// Decider is the narrow surface AIMatchRunner needs from AIChoiceEngine:
// given a decoded |request|, produce the command to forward back. The
// AI side never sees a replay and is never rebound, so Decider only ever
// has to answer the current request (spec.md §4.4, §4.5).
type Decider interface {
	Decide(req simulator.Request) string
}

// AIMatchRunner wraps a MatchRunner and plays p2 itself: it binds p2's
// feed to a sink that decodes each |request| line and forwards whatever
// the Decider chooses, so the rest of the system (ProtocolCache, p1's
// Bind/replay) behaves exactly as in a PvP match (spec.md §4.4).
type AIMatchRunner struct {
	*MatchRunner
	decider Decider
}

// NewAI starts a MatchRunner and immediately wires its p2 side to decider.
func NewAI(matchID string, handle *simulator.BattleHandle, decider Decider) *AIMatchRunner {
	a := &AIMatchRunner{
		MatchRunner: New(matchID, handle),
		decider:     decider,
	}
	a.Bind(protocol.SideP2, a.handleLine)
	return a
}

func (a *AIMatchRunner) handleLine(line []byte) error {
	s := string(line)
	const prefix = "|request|"
	if !strings.HasPrefix(s, prefix) {
		return nil
	}

	var req simulator.Request
	if err := json.Unmarshal(line[len(prefix):], &req); err != nil {
		logger.StreamingAILogger.Warn("match %s: could not decode AI request: %v", a.MatchID, err)
		return nil
	}

	cmd := a.decideSafely(req)
	if cmd == "" {
		cmd = "default"
	}
	if err := a.ForwardChoice(protocol.SideP2, cmd); err != nil {
		logger.StreamingAILogger.Warn("match %s: AI choice forward failed: %v", a.MatchID, err)
	}
	return nil
}

// decideSafely calls the decider with a recover() at the boundary: a
// panic inside any tier's scoring code must cost this match a turn, not
// take down the process (spec.md §4.5's decide failure model).
func (a *AIMatchRunner) decideSafely(req simulator.Request) (cmd string) {
	defer func() {
		if r := recover(); r != nil {
			logger.StreamingAILogger.Warn("match %s: AI decide panicked, defaulting: %v", a.MatchID, r)
			cmd = "default"
		}
	}()
	return a.decider.Decide(req)
}
