package simulator

import "strings"

// MoveData is the static metadata the AIChoiceEngine and fake battle engine
// need about one move.
type MoveData struct {
	ID       string
	Name     string
	Type     string
	Power    int
	Accuracy int // 1-100; 0 means a status move that never "misses" for damage purposes
	Category string // "physical", "special", "status"
	Priority int
}

// SpeciesData is the static metadata about one species.
type SpeciesData struct {
	ID        string
	Name      string
	Types     []string
	BaseStats map[string]int // hp, atk, def, spa, spd, spe
}

// ItemData is the static metadata about one held item.
type ItemData struct {
	ID   string
	Name string
}

// Dex resolves species/move/item identifiers to static metadata. A real
// deployment backs this with the simulator's own data files; the core
// only ever needs it through this interface (spec.md §4.1).
type Dex interface {
	LookupMove(id string) (MoveData, bool)
	LookupSpecies(id string) (SpeciesData, bool)
	LookupItem(id string) (ItemData, bool)
	TypeEffectiveness(attacking, defending string) float64
}

func normalizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type fixtureDex struct {
	moves     map[string]MoveData
	species   map[string]SpeciesData
	items     map[string]ItemData
	typeChart map[string]map[string]float64
}

// NewFixtureDex returns a small, deterministic, in-repo dex covering enough
// species/moves/types to exercise a full match end to end. It stands in for
// the real simulator's data files, which are out of scope (spec.md §1(b)).
func NewFixtureDex() Dex {
	d := &fixtureDex{
		moves:     map[string]MoveData{},
		species:   map[string]SpeciesData{},
		items:     map[string]ItemData{},
		typeChart: buildTypeChart(),
	}
	for _, m := range fixtureMoves {
		d.moves[normalizeID(m.ID)] = m
	}
	for _, s := range fixtureSpecies {
		d.species[normalizeID(s.ID)] = s
	}
	for _, it := range fixtureItems {
		d.items[normalizeID(it.ID)] = it
	}
	return d
}

func (d *fixtureDex) LookupMove(id string) (MoveData, bool) {
	m, ok := d.moves[normalizeID(id)]
	return m, ok
}

func (d *fixtureDex) LookupSpecies(id string) (SpeciesData, bool) {
	s, ok := d.species[normalizeID(id)]
	return s, ok
}

func (d *fixtureDex) LookupItem(id string) (ItemData, bool) {
	it, ok := d.items[normalizeID(id)]
	return it, ok
}

func (d *fixtureDex) TypeEffectiveness(attacking, defending string) float64 {
	row, ok := d.typeChart[normalizeID(attacking)]
	if !ok {
		return 1
	}
	if mult, ok := row[normalizeID(defending)]; ok {
		return mult
	}
	return 1
}

var fixtureMoves = []MoveData{
	{ID: "thunderbolt", Name: "Thunderbolt", Type: "electric", Power: 90, Accuracy: 100, Category: "special"},
	{ID: "thunder", Name: "Thunder", Type: "electric", Power: 110, Accuracy: 70, Category: "special"},
	{ID: "quickattack", Name: "Quick Attack", Type: "normal", Power: 40, Accuracy: 100, Category: "physical", Priority: 1},
	{ID: "tackle", Name: "Tackle", Type: "normal", Power: 40, Accuracy: 100, Category: "physical"},
	{ID: "watergun", Name: "Water Gun", Type: "water", Power: 40, Accuracy: 100, Category: "special"},
	{ID: "surf", Name: "Surf", Type: "water", Power: 90, Accuracy: 100, Category: "special"},
	{ID: "flamethrower", Name: "Flamethrower", Type: "fire", Power: 90, Accuracy: 100, Category: "special"},
	{ID: "earthquake", Name: "Earthquake", Type: "ground", Power: 100, Accuracy: 100, Category: "physical"},
	{ID: "vinewhip", Name: "Vine Whip", Type: "grass", Power: 45, Accuracy: 100, Category: "physical"},
	{ID: "icebeam", Name: "Ice Beam", Type: "ice", Power: 90, Accuracy: 100, Category: "special"},
	{ID: "closecombat", Name: "Close Combat", Type: "fighting", Power: 120, Accuracy: 100, Category: "physical"},
	{ID: "rest", Name: "Rest", Type: "psychic", Power: 0, Accuracy: 0, Category: "status"},
	{ID: "protect", Name: "Protect", Type: "normal", Power: 0, Accuracy: 0, Category: "status", Priority: 4},
}

var fixtureSpecies = []SpeciesData{
	{ID: "pikachu", Name: "Pikachu", Types: []string{"electric"}, BaseStats: map[string]int{"hp": 35, "atk": 55, "def": 40, "spa": 50, "spd": 50, "spe": 90}},
	{ID: "charizard", Name: "Charizard", Types: []string{"fire", "flying"}, BaseStats: map[string]int{"hp": 78, "atk": 84, "def": 78, "spa": 109, "spd": 85, "spe": 100}},
	{ID: "blastoise", Name: "Blastoise", Types: []string{"water"}, BaseStats: map[string]int{"hp": 79, "atk": 83, "def": 100, "spa": 85, "spd": 105, "spe": 78}},
	{ID: "venusaur", Name: "Venusaur", Types: []string{"grass", "poison"}, BaseStats: map[string]int{"hp": 80, "atk": 82, "def": 83, "spa": 100, "spd": 100, "spe": 80}},
	{ID: "machamp", Name: "Machamp", Types: []string{"fighting"}, BaseStats: map[string]int{"hp": 90, "atk": 130, "def": 80, "spa": 65, "spd": 85, "spe": 55}},
	{ID: "gyarados", Name: "Gyarados", Types: []string{"water", "flying"}, BaseStats: map[string]int{"hp": 95, "atk": 125, "def": 79, "spa": 60, "spd": 100, "spe": 81}},
	{ID: "snorlax", Name: "Snorlax", Types: []string{"normal"}, BaseStats: map[string]int{"hp": 160, "atk": 110, "def": 65, "spa": 65, "spd": 110, "spe": 30}},
	{ID: "dragonite", Name: "Dragonite", Types: []string{"dragon", "flying"}, BaseStats: map[string]int{"hp": 91, "atk": 134, "def": 95, "spa": 100, "spd": 100, "spe": 80}},
}

var fixtureItems = []ItemData{
	{ID: "lightball", Name: "Light Ball"},
	{ID: "leftovers", Name: "Leftovers"},
	{ID: "choiceband", Name: "Choice Band"},
	{ID: "choicescarf", Name: "Choice Scarf"},
	{ID: "sitrusberry", Name: "Sitrus Berry"},
}

// buildTypeChart is a deliberately partial but internally consistent type
// chart covering the types the fixture species/moves actually use.
func buildTypeChart() map[string]map[string]float64 {
	chart := map[string]map[string]float64{
		"normal":   {"normal": 1, "ghost": 0},
		"fire":     {"fire": 0.5, "water": 0.5, "grass": 2, "ice": 2, "ground": 1, "flying": 1, "dragon": 0.5},
		"water":    {"fire": 2, "water": 0.5, "grass": 0.5, "ground": 2, "dragon": 0.5},
		"electric": {"water": 2, "electric": 0.5, "grass": 0.5, "ground": 0, "flying": 2, "dragon": 0.5},
		"grass":    {"fire": 0.5, "water": 2, "grass": 0.5, "ground": 2, "flying": 0.5, "dragon": 0.5, "poison": 0.5},
		"ice":      {"fire": 0.5, "water": 0.5, "grass": 2, "ice": 0.5, "ground": 2, "flying": 2, "dragon": 2},
		"fighting": {"normal": 2, "ice": 2, "flying": 0.5, "psychic": 0.5, "ghost": 0},
		"ground":   {"fire": 2, "electric": 2, "grass": 0.5, "flying": 0, "poison": 2},
		"flying":   {"electric": 0.5, "grass": 2, "fighting": 2, "ground": 1},
		"poison":   {"grass": 2, "poison": 0.5, "ground": 0.5, "ghost": 0.5},
		"psychic":  {"fighting": 2, "poison": 2, "psychic": 0.5, "ghost": 0},
		"dragon":   {"dragon": 2},
		"ghost":    {"normal": 0, "psychic": 2, "ghost": 2},
	}
	return chart
}
