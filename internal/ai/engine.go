// Package ai implements AIChoiceEngine: the tiered decision maker that
// plays p2 in an AI-mode match (spec.md §4.4, §4.5). Every tier answers
// the same narrow question — given the current |request|, what command
// do I forward? — so MatchRunner's AI side never needs to know which
// tier it's talking to.
package ai

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"battlemediation/internal/simulator"
	"battlemediation/pkg/logger"
)

// Tier selects one of the five difficulty levels spec.md §4.5 names.
type Tier int

const (
	Tier1Random Tier = iota + 1
	Tier2TypeGreedy
	Tier3Weighted
	Tier4Heuristic
	Tier5Knowledge
)

func (t Tier) String() string {
	switch t {
	case Tier1Random:
		return "tier1-random"
	case Tier2TypeGreedy:
		return "tier2-type-greedy"
	case Tier3Weighted:
		return "tier3-weighted"
	case Tier4Heuristic:
		return "tier4-heuristic"
	case Tier5Knowledge:
		return "tier5-knowledge"
	default:
		return "unknown-tier"
	}
}

// ParseTier maps a difficulty name from a start envelope onto a Tier,
// defaulting to Tier4Heuristic (spec.md §4.5's documented fallback) for
// anything unrecognized.
func ParseTier(difficulty string) Tier {
	switch strings.ToLower(strings.TrimSpace(difficulty)) {
	case "1", "random", "tier1":
		return Tier1Random
	case "2", "type", "tier2":
		return Tier2TypeGreedy
	case "3", "weighted", "tier3":
		return Tier3Weighted
	case "4", "heuristic", "tier4":
		return Tier4Heuristic
	case "5", "knowledge", "tier5":
		return Tier5Knowledge
	default:
		return Tier4Heuristic
	}
}

// Engine is the AIChoiceEngine for one AI-mode match. It tracks the
// opponent's revealed roster and currently active species from public
// protocol lines, since a |request| only ever describes our own side.
//
// llm and kb are the concrete clients rather than an interface: both are
// *T-or-nil, and a nil *LLMClient/*KBClient held in an interface variable
// would no longer compare equal to nil, silently turning "not configured"
// into "configured but every call errors". Keeping them concrete lets
// tier5's "if e.llm != nil" check mean what it says.
type Engine struct {
	dex  simulator.Dex
	tier Tier
	rng  *rand.Rand

	llm *LLMClient
	kb  *KBClient

	mu                    sync.Mutex
	opponentRoster        []string // species names, in reveal order
	opponentActiveSpecies string
}

// NewEngine constructs an AIChoiceEngine at the given tier. llm and kb
// may both be nil; Tier5 degrades to Tier4 logic when they are.
func NewEngine(dex simulator.Dex, tier Tier, llm *LLMClient, kb *KBClient) *Engine {
	return &Engine{
		dex:  dex,
		tier: tier,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		llm:  llm,
		kb:   kb,
	}
}

// Observe updates the engine's model of the opponent from a public
// protocol line. It never errors: an unrecognized or malformed line is
// simply ignored, since missing one reveal just means a slightly staler
// matchup guess, not a broken match.
func (e *Engine) Observe(line []byte) {
	fields := strings.Split(strings.TrimPrefix(string(line), "|"), "|")
	if len(fields) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch fields[0] {
	case "poke":
		if len(fields) >= 3 && fields[1] == "p1" {
			e.opponentRoster = append(e.opponentRoster, fields[2])
		}
	case "switch":
		if len(fields) >= 3 && fields[1] == "p1" {
			e.opponentActiveSpecies = stripTrailingDigits(fields[2])
		}
	}
}

func stripTrailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i]
}

func (e *Engine) opponentTypes() []string {
	e.mu.Lock()
	species := e.opponentActiveSpecies
	e.mu.Unlock()

	if species == "" {
		return nil
	}
	data, ok := e.dex.LookupSpecies(species)
	if !ok {
		return nil
	}
	return data.Types
}

// Decide answers one |request|. It satisfies matchrunner.Decider.
func (e *Engine) Decide(req simulator.Request) string {
	if req.TeamPreview {
		return "team 1"
	}
	if req.ForceSwitch {
		return e.decideForceSwitch(req)
	}

	switch e.tier {
	case Tier1Random:
		return e.tier1(req)
	case Tier2TypeGreedy:
		return e.tier2(req)
	case Tier3Weighted:
		return e.decideWithSwitchThreshold(req, 0.30)
	case Tier5Knowledge:
		return e.tier5(req)
	default:
		return e.decideWithSwitchThreshold(req, 0.25)
	}
}

func (e *Engine) decideForceSwitch(req simulator.Request) string {
	bench := benchedAlive(req.Side)
	if len(bench) == 0 {
		return "default"
	}
	if e.tier == Tier1Random {
		return fmt.Sprintf("switch %d", bench[e.rng.Intn(len(bench))].Slot)
	}
	pick, ok := bestSwitchInAgainst(e.dex, bench, e.opponentTypes())
	if !ok {
		return fmt.Sprintf("switch %d", bench[0].Slot)
	}
	return fmt.Sprintf("switch %d", pick.Slot)
}

// decideWithSwitchThreshold is shared by tiers 3 and 4: switch away from
// a low-HP active mon into the best available matchup, otherwise throw
// the best-scoring usable move.
func (e *Engine) decideWithSwitchThreshold(req simulator.Request, threshold float64) string {
	if frac, ok := hpFraction(req.Side); ok && frac < threshold {
		if bench := benchedAlive(req.Side); len(bench) > 0 {
			if pick, ok := bestSwitchInAgainst(e.dex, bench, e.opponentTypes()); ok {
				return fmt.Sprintf("switch %d", pick.Slot)
			}
		}
	}

	if len(req.Active) == 0 {
		return "default"
	}
	opts := usableMoves(e.dex, req.Active[0])
	best, ok := bestMoveByWeightedScore(e.dex, opts, e.opponentTypes())
	if !ok {
		return "default"
	}
	return fmt.Sprintf("move %d", best.slot)
}

// tier5TimeoutSecs bounds how long Tier5 waits on an external call
// before falling back to tier4 heuristics (spec.md §4.5).
const tier5TimeoutSecs = 8

func (e *Engine) tier5(req simulator.Request) string {
	ctx, cancel := context.WithTimeout(context.Background(), tier5TimeoutSecs*time.Second)
	defer cancel()

	if e.kb != nil {
		if cmd, err := e.kb.Suggest(ctx, req); err == nil && cmd != "" {
			return cmd
		} else if err != nil {
			logger.StreamingAILogger.Warn("tier5 knowledge-base call failed, falling back to tier4: %v", err)
		}
	}
	if e.llm != nil {
		if cmd, err := e.llm.Suggest(ctx, req); err == nil && cmd != "" {
			return cmd
		} else if err != nil {
			logger.StreamingAILogger.Warn("tier5 LLM call failed, falling back to tier4: %v", err)
		}
	}
	return e.decideWithSwitchThreshold(req, 0.25)
}
