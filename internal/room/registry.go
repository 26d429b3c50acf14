package room

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"battlemediation/internal/errkind"
	"battlemediation/pkg/logger"
)

// tokenBytes gives a base32-encoded token at least 48 bits of entropy
// (spec.md §4.6), short enough to read over voice chat and paste into a
// URL without escaping.
const tokenBytes = 6

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newToken mints an unguessable room token. Unlike every other
// identifier in this module (ConnectionID, MatchID), it is not a uuid:
// uuid.v4's 122 bits of entropy render as 36 characters, too long for a
// token humans read aloud or type into a join box, so this uses
// crypto/rand directly and trims to the entropy spec.md §4.6 actually
// asks for.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToLower(tokenEncoding.EncodeToString(buf)), nil
}

// Registry holds every live Room, keyed by its token. It also runs the
// idle-room sweep that ends rooms nobody has touched recently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	sweepStop chan struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: map[string]*Room{}}
}

// Create mints a fresh token and registers a new waiting Room under it.
func (reg *Registry) Create(formatID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for attempt := 0; attempt < 5; attempt++ {
		token, err := newToken()
		if err != nil {
			return nil, errkind.Wrap(errkind.Resource, "could not mint room token", err)
		}
		if _, exists := reg.rooms[token]; exists {
			continue
		}
		r := New(token, formatID)
		reg.rooms[token] = r
		return r, nil
	}
	return nil, errkind.Wrap(errkind.Resource, "could not mint a unique room token after several attempts", nil)
}

// Get looks up a room by token.
func (reg *Registry) Get(token string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[token]
	return r, ok
}

// Delete removes a room from the registry outright.
func (reg *Registry) Delete(token string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, token)
}

// StartIdleSweep periodically ends and removes rooms that have been idle
// longer than maxIdle, mirroring the teacher's session cleanup loop.
func (reg *Registry) StartIdleSweep(interval, maxIdle time.Duration) {
	reg.sweepStop = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reg.sweepIdleRooms(maxIdle)
			case <-reg.sweepStop:
				logger.StreamingRoomLogger.Info("idle room sweep stopped")
				return
			}
		}
	}()
	logger.StreamingRoomLogger.Info("idle room sweep started: interval=%v, maxIdle=%v", interval, maxIdle)
}

// StopIdleSweep stops the sweep goroutine started by StartIdleSweep.
func (reg *Registry) StopIdleSweep() {
	if reg.sweepStop != nil {
		close(reg.sweepStop)
		reg.sweepStop = nil
	}
}

func (reg *Registry) sweepIdleRooms(maxIdle time.Duration) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for token, r := range reg.rooms {
		if r.Status() == StatusBattling {
			continue
		}
		if r.IdleSince() > maxIdle {
			r.End()
			delete(reg.rooms, token)
			logger.StreamingRoomLogger.Info("swept idle room %s, idle for %s", token, humanize.Time(time.Now().Add(-r.IdleSince())))
		}
	}
}

// Count returns the number of rooms currently tracked, for admin/metrics
// surfaces.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
