package controller

import "testing"

func TestSeenBeforeFlagsSecondOccurrence(t *testing.T) {
	d := newDuplicateDetector()

	if d.SeenBefore("abc") {
		t.Error("expected the first sighting to report not-seen")
	}
	if !d.SeenBefore("abc") {
		t.Error("expected the second sighting of the same id to report seen")
	}
}

func TestSeenBeforeDistinctIDsIndependent(t *testing.T) {
	d := newDuplicateDetector()
	d.SeenBefore("one")
	if d.SeenBefore("two") {
		t.Error("expected a distinct id to report not-seen")
	}
}

func TestSeenBeforeEmptyIDOptsOut(t *testing.T) {
	d := newDuplicateDetector()
	for i := 0; i < 3; i++ {
		if d.SeenBefore("") {
			t.Error("expected an empty id to never be flagged as a duplicate")
		}
	}
}
