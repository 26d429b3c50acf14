// Package matchrunner binds one battle (internal/simulator's BattleHandle)
// to its two connections, owning the append-only protocol history a
// reconnecting client replays from (spec.md §4.2, §4.3).
package matchrunner

import (
	"bytes"
	"sync"

	"battlemediation/pkg/protocol"
)

// subscriberBuf is the per-subscriber live feed buffer. It is generous
// enough that a momentarily slow reader (a reconnect still writing out
// its snapshot) doesn't drop lines appended while it catches up.
const subscriberBuf = 64

// ProtocolCache is the append-only record of every line a match has
// produced, split by audience: lines every observer sees (teampreview,
// moves, faints, win/tie) and lines private to one side (its own
// |request|). It also owns live subscription so that "read the current
// history" and "start receiving new lines" happen under one lock — a
// reconnecting side can never miss a line produced between the two
// (spec.md §9: bind is a plain snapshot-and-stream, not two steps a
// writer can race between).
type ProtocolCache struct {
	mu         sync.Mutex
	omniscient [][]byte
	private    map[protocol.Side][][]byte
	lastReq    map[protocol.Side][]byte
	subs       map[protocol.Side][]chan []byte
}

// NewProtocolCache returns an empty cache ready for one match.
func NewProtocolCache() *ProtocolCache {
	return &ProtocolCache{
		private: map[protocol.Side][][]byte{
			protocol.SideP1: nil,
			protocol.SideP2: nil,
		},
		lastReq: map[protocol.Side][]byte{},
		subs: map[protocol.Side][]chan []byte{
			protocol.SideP1: nil,
			protocol.SideP2: nil,
		},
	}
}

// AppendOmniscient records a line every side eventually sees and fans it
// out to every currently subscribed side.
func (c *ProtocolCache) AppendOmniscient(line []byte) {
	cp := append([]byte(nil), line...)
	c.mu.Lock()
	c.omniscient = append(c.omniscient, cp)
	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		c.broadcast(side, cp)
	}
	c.mu.Unlock()
}

// AppendPrivate records a line visible only to side and fans it out to
// that side's subscribers. If it is a |request| line it also replaces
// that side's "last open request" slot, since only the most recent
// request is ever still answerable.
func (c *ProtocolCache) AppendPrivate(side protocol.Side, line []byte) {
	cp := append([]byte(nil), line...)
	c.mu.Lock()
	c.private[side] = append(c.private[side], cp)
	if bytes.HasPrefix(cp, []byte("|request|")) {
		c.lastReq[side] = cp
	}
	c.broadcast(side, cp)
	c.mu.Unlock()
}

// broadcast must be called with mu held.
func (c *ProtocolCache) broadcast(side protocol.Side, line []byte) {
	for _, ch := range c.subs[side] {
		select {
		case ch <- line:
		default:
			// A stalled subscriber (connection dropped mid-write) never
			// blocks the match; it simply misses live lines until the
			// next reconnect re-snapshots the full history.
		}
	}
}

// Subscribe atomically returns a defensive-copy snapshot of everything
// side should already know, plus a channel that receives every line
// appended afterward. Callers must call the returned cancel func once
// they stop reading.
func (c *ProtocolCache) Subscribe(side protocol.Side) (snapshot [][]byte, live <-chan []byte, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot = c.snapshotLocked(side)
	ch := make(chan []byte, subscriberBuf)
	c.subs[side] = append(c.subs[side], ch)

	cancelFn := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subs[side]
		for i, existing := range subs {
			if existing == ch {
				c.subs[side] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return snapshot, ch, cancelFn
}

// Replay returns a defensive copy of every line side should see, without
// subscribing to future lines. Used for one-shot inspection (tests,
// admin tooling) rather than live binding.
func (c *ProtocolCache) Replay(side protocol.Side) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(side)
}

func (c *ProtocolCache) snapshotLocked(side protocol.Side) [][]byte {
	out := make([][]byte, 0, len(c.omniscient)+len(c.private[side]))
	for _, l := range c.omniscient {
		out = append(out, append([]byte(nil), l...))
	}
	for _, l := range c.private[side] {
		out = append(out, append([]byte(nil), l...))
	}
	return out
}

// LastRequest returns the most recent still-open |request| line for side,
// if any.
func (c *ProtocolCache) LastRequest(side protocol.Side) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lastReq[side]
	return l, ok
}
