package coordinator

import (
	"fmt"
	"strconv"

	"battlemediation/internal/ai"
	"battlemediation/internal/audit"
	"battlemediation/internal/errkind"
	"battlemediation/internal/matchrunner"
	"battlemediation/internal/simulator"
	"battlemediation/pkg/config"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

// AICoordinator starts an AI-mode match: a synthetic p2 driven by
// AIChoiceEngine, with no room bookkeeping at all since there is only
// ever one human side (spec.md §4.8).
type AICoordinator struct {
	adapter *simulator.Adapter
	cfg     config.AIConfig
	kb      *ai.KBClient
	audit   *audit.Store // nil when audit.enabled is false
}

// NewAICoordinator wires a coordinator over a shared simulator adapter.
// kb and auditStore may both be nil.
func NewAICoordinator(adapter *simulator.Adapter, cfg config.AIConfig, kb *ai.KBClient, auditStore *audit.Store) *AICoordinator {
	return &AICoordinator{adapter: adapter, cfg: cfg, kb: kb, audit: auditStore}
}

// Start builds a battle for connID's team against an AI opponent at the
// requested difficulty and returns the running AIMatchRunner.
func (c *AICoordinator) Start(connID, formatID, difficulty string, team protocol.Team) (*matchrunner.AIMatchRunner, error) {
	if len(team) == 0 {
		return nil, errkind.ErrInvalidTeam
	}

	if difficulty == "" {
		difficulty = strconv.Itoa(c.cfg.DefaultDifficulty)
	}
	tier := ai.ParseTier(difficulty)

	handle, buildErr := c.adapter.NewBattle(formatID, nil,
		simulator.PlayerInit{Name: connID, Team: team},
		simulator.PlayerInit{Name: "ai-" + tier.String(), Team: defaultAITeam()},
	)
	if buildErr != nil {
		return nil, errkind.Wrap(errkind.MatchFatal, "could not start AI battle", buildErr)
	}

	var llm *ai.LLMClient
	if tier == ai.Tier5Knowledge && config.LLMEnabled() {
		llm = ai.NewLLMClient(c.cfg.LLMEndpoint)
	}
	var kb *ai.KBClient
	if tier == ai.Tier5Knowledge {
		kb = c.kb
	}

	engine := ai.NewEngine(c.adapter.Dex(), tier, llm, kb)
	runner := matchrunner.NewAI(fmt.Sprintf("ai-%s", connID), handle, engine)

	go func() {
		for line := range relayOmniscient(runner) {
			engine.Observe(line)
		}
	}()

	logger.StreamingAILogger.LogAIDecision(runner.MatchID, tier.String(), "battle started", map[string]string{"conn": connID})
	if c.audit != nil {
		c.audit.RecordAIDecision(runner.MatchID, string(protocol.SideP2), fmt.Sprintf("battle started at %s", tier.String()))
	}
	return runner, nil
}

// relayOmniscient gives AICoordinator its own subscription to p1's feed
// (every public line, plus p1's private |request| lines, which Observe
// ignores) so the engine can track the opponent's revealed roster, independent of
// whatever sink the human side has bound (spec.md §4.4: the AI side
// never shares a subscription with a client connection).
func relayOmniscient(runner *matchrunner.AIMatchRunner) <-chan []byte {
	out := make(chan []byte, 64)
	snapshot, live, cancel := runner.SubscribeRaw(protocol.SideP1)
	go func() {
		defer close(out)
		defer cancel()
		for _, l := range snapshot {
			out <- l
		}
		for l := range live {
			out <- l
		}
	}()
	return out
}

// defaultAITeam is the fixed roster an AI opponent brings when no
// format-specific team pool is configured. A full team-pool/format
// system is out of scope; this gives every AI match a playable,
// deterministic opponent (spec.md §1(b): formats are opaque strings this
// module never validates beyond non-empty).
func defaultAITeam() protocol.Team {
	return protocol.Team{
		{Species: "Charizard", Moves: []string{"flamethrower", "closecombat", "quickattack", "protect"}, Level: 50},
		{Species: "Blastoise", Moves: []string{"surf", "icebeam", "tackle", "protect"}, Level: 50},
		{Species: "Venusaur", Moves: []string{"vinewhip", "icebeam", "tackle", "rest"}, Level: 50},
	}
}
