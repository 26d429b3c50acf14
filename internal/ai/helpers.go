package ai

import (
	"math"

	"github.com/samber/lo"

	"battlemediation/internal/simulator"
)

// moveOption pairs one of the active mon's selectable moves with its
// static dex data and its 1-indexed slot (as the simulator's "move N"
// command expects it).
type moveOption struct {
	slot int
	data simulator.MoveData
}

// usableMoves resolves req's move list against dex, dropping disabled
// entries, and keeping the original slot numbering so the returned
// command stays valid.
func usableMoves(dex simulator.Dex, active simulator.RequestActive) []moveOption {
	opts := make([]moveOption, 0, len(active.Moves))
	for i, m := range active.Moves {
		if m.Disabled {
			continue
		}
		data, ok := dex.LookupMove(m.ID)
		if !ok {
			continue
		}
		opts = append(opts, moveOption{slot: i + 1, data: data})
	}
	return opts
}

// typeScore is the product of dex type-effectiveness multipliers of
// attackType against every one of defenderTypes.
func typeScore(dex simulator.Dex, attackType string, defenderTypes []string) float64 {
	mult := 1.0
	for _, t := range defenderTypes {
		mult *= dex.TypeEffectiveness(attackType, t)
	}
	return mult
}

// weightedScore blends type effectiveness, raw power, and accuracy into
// one comparable figure: 0.5 type + 0.3 power + 0.2 accuracy, each
// normalized to roughly [0,1]. Status moves (power 0, accuracy 0 in the
// dex) get full accuracy credit so they never look artificially terrible;
// their type still counts like any other move's.
func weightedScore(dex simulator.Dex, mv simulator.MoveData, defenderTypes []string) float64 {
	eff := typeScore(dex, mv.Type, defenderTypes)
	power := float64(mv.Power) / 150.0
	if power > 1 {
		power = 1
	}
	acc := float64(mv.Accuracy) / 100.0
	if mv.Accuracy == 0 {
		acc = 1 // status moves don't miss for damage purposes
	}
	return 0.5*normalizeEff(eff) + 0.3*power + 0.2*acc
}

// normalizeEff maps a 0/0.25/0.5/1/2/4 type multiplier onto [0,1] so it
// can be blended with the other weighted factors on a comparable scale.
func normalizeEff(mult float64) float64 {
	switch {
	case mult <= 0:
		return 0
	case mult < 1:
		return 0.25
	case mult == 1:
		return 0.5
	case mult <= 2:
		return 0.75
	default:
		return 1
	}
}

// bestMoveByWeightedScore returns the highest-scoring usable move against
// defenderTypes, or ok=false if none are usable.
func bestMoveByWeightedScore(dex simulator.Dex, opts []moveOption, defenderTypes []string) (moveOption, bool) {
	if len(opts) == 0 {
		return moveOption{}, false
	}
	best, ok := lo.MaxBy(opts, func(a, b moveOption) bool {
		return weightedScore(dex, a.data, defenderTypes) > weightedScore(dex, b.data, defenderTypes)
	}), true
	return best, ok
}

// hpFraction reports the active mon's remaining health as a fraction of
// its max, given the request's own-side pokemon list.
func hpFraction(side simulator.RequestSide) (float64, bool) {
	for _, p := range side.Pokemon {
		if p.Active {
			if p.MaxHP == 0 {
				return 1, true
			}
			return float64(p.HP) / float64(p.MaxHP), true
		}
	}
	return 1, false
}

// benchedAlive returns every non-active, non-fainted slot on our side,
// 1-indexed for the "switch N" command.
func benchedAlive(side simulator.RequestSide) []simulator.RequestPokemon {
	return lo.Filter(side.Pokemon, func(p simulator.RequestPokemon, _ int) bool {
		return !p.Active && !p.Fainted
	})
}

// bestSwitchInAgainst picks the benched mon whose dex-resolved types best
// resist opponentTypes. A species with no dex data is scored as a neutral
// matchup, and ties keep the earliest bench slot.
func bestSwitchInAgainst(dex simulator.Dex, bench []simulator.RequestPokemon, opponentTypes []string) (simulator.RequestPokemon, bool) {
	if len(bench) == 0 {
		return simulator.RequestPokemon{}, false
	}
	best := bench[0]
	bestScore := math.Inf(-1)
	for _, p := range bench {
		species, ok := dex.LookupSpecies(p.Species)
		score := -1.0 // neutral (1x incoming) default when species data is missing
		if ok {
			incoming := 1.0
			for _, t := range opponentTypes {
				incoming *= typeScore(dex, t, species.Types)
			}
			score = -incoming // lower incoming effectiveness is better
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	return best, true
}
