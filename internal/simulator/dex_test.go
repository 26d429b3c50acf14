package simulator

import "testing"

func TestFixtureDexLookupsAreCaseAndPunctuationInsensitive(t *testing.T) {
	dex := NewFixtureDex()

	if _, ok := dex.LookupSpecies("Pikachu"); !ok {
		t.Error("expected exact-case lookup to succeed")
	}
	if _, ok := dex.LookupSpecies("PIKACHU"); !ok {
		t.Error("expected uppercase lookup to succeed")
	}
	if _, ok := dex.LookupMove("Thunder Bolt"); !ok {
		t.Error("expected a space in the name to be stripped by normalizeID")
	}
	if _, ok := dex.LookupSpecies("doesnotexist"); ok {
		t.Error("expected lookup of an unknown species to fail")
	}
}

func TestTypeEffectivenessKnownMatchup(t *testing.T) {
	dex := NewFixtureDex()
	if eff := dex.TypeEffectiveness("water", "fire"); eff != 2 {
		t.Errorf("expected water vs fire to be 2x, got %v", eff)
	}
	if eff := dex.TypeEffectiveness("electric", "ground"); eff != 0 {
		t.Errorf("expected electric vs ground to be immune (0x), got %v", eff)
	}
}

func TestTypeEffectivenessUnknownTypeDefaultsNeutral(t *testing.T) {
	dex := NewFixtureDex()
	if eff := dex.TypeEffectiveness("madeup", "fire"); eff != 1 {
		t.Errorf("expected an unlisted attacking type to be neutral, got %v", eff)
	}
}
