package controller

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// dedupCapacity and dedupFalsePositive size the bloom filter for one
// connection's worth of envelope IDs over a single session: generous
// enough that a reconnect-heavy session never wraps around and starts
// reporting stale duplicates as fresh.
const (
	dedupCapacity      = 4096
	dedupFalsePositive = 0.01
)

// duplicateDetector filters retried envelopes (a client that resends a
// "choose" because it never saw the ack) without keeping an ever-growing
// exact set: the bloom filter answers "definitely new" for free, and
// only a possible-duplicate falls through to the exact map, which stays
// small because most traffic never collides.
type duplicateDetector struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDuplicateDetector() *duplicateDetector {
	return &duplicateDetector{
		filter: bloom.NewWithEstimates(dedupCapacity, dedupFalsePositive),
		seen:   map[string]struct{}{},
	}
}

// SeenBefore reports whether id has already been processed on this
// connection, recording it as seen if not.
func (d *duplicateDetector) SeenBefore(id string) bool {
	if id == "" {
		return false // envelopes without an id opt out of dedup entirely
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.filter.TestString(id) {
		d.filter.AddString(id)
		d.seen[id] = struct{}{}
		return false
	}

	// Bloom filter says "maybe seen"; the exact map resolves false
	// positives.
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}
