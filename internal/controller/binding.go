// Package controller implements ConnectionController: the websocket
// accept loop, heartbeat, envelope dispatch, and raw-protocol passthrough
// that sits in front of room/coordinator/matchrunner (spec.md §4.9, §5).
package controller

import (
	"sync"

	"battlemediation/internal/matchrunner"
	"battlemediation/internal/room"
	"battlemediation/pkg/protocol"
)

// Binding is everything a connection currently knows about its place in
// a match: which room (if PvP), which side, and which runner to forward
// choices to. It replaces the teacher's pattern of stashing back-pointers
// directly on the socket object, which made every reconnect a
// multi-field mutation race; here the whole binding is swapped out in
// one atomic pointer store (spec.md §9).
type Binding struct {
	Room   *room.Room // nil for an AI-mode match
	Side   protocol.Side
	Runner *matchrunner.MatchRunner
}

// bindingHolder guards the one field that actually changes over a
// connection's life: which Binding it currently has. A connection starts
// unbound (its holder's binding is nil) and becomes bound exactly once
// it has chosen or rejoined a match.
type bindingHolder struct {
	mu sync.RWMutex
	b  *Binding
}

func (h *bindingHolder) get() (*Binding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.b, h.b != nil
}

func (h *bindingHolder) set(b *Binding) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.b = b
}
