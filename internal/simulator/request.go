package simulator

import "battlemediation/pkg/protocol"

// Request is the JSON payload that follows a `|request|` protocol line.
// Its shape mirrors the teamPreview / forceSwitch / active decision points
// a real simulator emits; AIChoiceEngine and the browser client both
// decode it the same way (spec.md §4.1, §4.5).
type Request struct {
	TeamPreview bool               `json:"teamPreview,omitempty"`
	ForceSwitch bool               `json:"forceSwitch,omitempty"`
	Active      []RequestActive    `json:"active,omitempty"`
	Side        RequestSide        `json:"side"`
	Wait        bool               `json:"wait,omitempty"`
}

// RequestSide lists every mon on the requesting side, fainted or not, so
// the receiver can always offer a full switch menu.
type RequestSide struct {
	Pokemon []RequestPokemon `json:"pokemon"`
}

type RequestPokemon struct {
	Slot    int    `json:"slot"`
	Species string `json:"species"`
	HP      int    `json:"hp"`
	MaxHP   int    `json:"maxHp"`
	Fainted bool   `json:"fainted"`
	Active  bool   `json:"active"`
}

// RequestActive describes the moves available for the currently active mon.
type RequestActive struct {
	Moves []RequestMove `json:"moves"`
}

type RequestMove struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PP       int    `json:"pp"`
	Disabled bool   `json:"disabled"`
}

// buildRequest assembles the Request for one side given the battle's
// current state. activeSlot is -1 during team preview.
func buildRequest(side protocol.Side, mons []*battlerMon, activeSlot int, teamPreview, forceSwitch bool) Request {
	req := Request{
		TeamPreview: teamPreview,
		ForceSwitch: forceSwitch,
	}

	pokes := make([]RequestPokemon, 0, len(mons))
	for i, m := range mons {
		pokes = append(pokes, RequestPokemon{
			Slot:    i + 1,
			Species: m.species.Name,
			HP:      m.curHP,
			MaxHP:   m.maxHP,
			Fainted: m.fainted,
			Active:  i == activeSlot,
		})
	}
	req.Side = RequestSide{Pokemon: pokes}

	if !teamPreview && activeSlot >= 0 && activeSlot < len(mons) && !forceSwitch {
		moves := make([]RequestMove, 0, len(mons[activeSlot].moves))
		for _, mv := range mons[activeSlot].moves {
			moves = append(moves, RequestMove{ID: mv.ID, Name: mv.Name, PP: 16})
		}
		req.Active = []RequestActive{{Moves: moves}}
	}

	return req
}
