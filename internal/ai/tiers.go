package ai

import (
	"fmt"

	"battlemediation/internal/simulator"
)

// tier1 picks uniformly among usable moves, ignoring type and power
// entirely. This is the floor difficulty: a player who can't beat it
// isn't reading their own request payload.
func (e *Engine) tier1(req simulator.Request) string {
	if len(req.Active) == 0 {
		return "default"
	}
	opts := usableMoves(e.dex, req.Active[0])
	if len(opts) == 0 {
		return "default"
	}
	pick := opts[e.rng.Intn(len(opts))]
	return fmt.Sprintf("move %d", pick.slot)
}

// tier2 greedily maximizes type effectiveness against the opponent's
// known active species, ignoring power/accuracy and never switching
// proactively (it only escapes a forced switch, handled upstream in
// decideForceSwitch).
func (e *Engine) tier2(req simulator.Request) string {
	if len(req.Active) == 0 {
		return "default"
	}
	opts := usableMoves(e.dex, req.Active[0])
	if len(opts) == 0 {
		return "default"
	}

	defenderTypes := e.opponentTypes()
	best := opts[0]
	bestEff := typeScore(e.dex, best.data.Type, defenderTypes)
	for _, opt := range opts[1:] {
		if eff := typeScore(e.dex, opt.data.Type, defenderTypes); eff > bestEff {
			best, bestEff = opt, eff
		}
	}
	return fmt.Sprintf("move %d", best.slot)
}
