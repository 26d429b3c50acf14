// Package coordinator implements PvPCoordinator and AICoordinator: the
// two entry points that turn a client's "start" envelope into a running
// match, sitting between ConnectionController and room/matchrunner
// (spec.md §4.7, §4.8).
package coordinator

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"battlemediation/internal/audit"
	"battlemediation/internal/errkind"
	"battlemediation/internal/matchrunner"
	"battlemediation/internal/room"
	"battlemediation/internal/simulator"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

// PvPCoordinator owns room creation/joining and the transition from
// "both teams submitted" to "battle running". A singleflight group keyed
// by room token ensures two simultaneous team submissions for the same
// room can never both win the race to start the battle (spec.md §4.7).
type PvPCoordinator struct {
	registry *room.Registry
	adapter  *simulator.Adapter
	audit    *audit.Store // nil when audit.enabled is false
	sf       singleflight.Group
}

// NewPvPCoordinator wires a coordinator over a shared room registry and
// simulator adapter. auditStore may be nil.
func NewPvPCoordinator(registry *room.Registry, adapter *simulator.Adapter, auditStore *audit.Store) *PvPCoordinator {
	return &PvPCoordinator{registry: registry, adapter: adapter, audit: auditStore}
}

// CreateRoom mints a new room and joins connID to it as p1.
func (c *PvPCoordinator) CreateRoom(connID, formatID string) (*room.Room, protocol.Side, error) {
	r, err := c.registry.Create(formatID)
	if err != nil {
		return nil, "", err
	}
	side, err := r.Join(connID)
	if err != nil {
		return nil, "", err
	}
	logger.StreamingRoomLogger.Info("room %s created by %s as %s", r.ID, connID, side)
	return r, side, nil
}

// JoinRoom joins connID to an existing room, determining its side per
// the reconnect precedence spec.md §4.7 describes: an existing binding
// for this connID wins, otherwise it takes whichever side is free.
func (c *PvPCoordinator) JoinRoom(token, connID string) (*room.Room, protocol.Side, error) {
	r, ok := c.registry.Get(token)
	if !ok {
		return nil, "", errkind.ErrRoomNotFound
	}

	if existing, ok := r.SideFor(connID); ok {
		return r, existing, nil
	}

	side, err := r.Join(connID)
	if err != nil {
		return nil, "", err
	}
	return r, side, nil
}

// LookupRoom exposes a read-only room lookup by token for callers (the
// controller's join-room dispatch) that need the Room itself rather than
// a side assignment.
func (c *PvPCoordinator) LookupRoom(token string) (*room.Room, bool) {
	return c.registry.Get(token)
}

// DeleteRoom removes an abandoned room outright, used by the controller's
// disconnect policy once both sides have left a non-battling room
// (spec.md §5).
func (c *PvPCoordinator) DeleteRoom(token string) {
	c.registry.Delete(token)
}

// DetermineReconnectSide resolves which side a reconnecting connection
// should bind to. A reconnect always arrives on a brand new ConnectionID
// (it's a new websocket), so the room can't simply look up its old
// binding; it has to reason about which side is asking. Three sources
// are tried in order (spec.md §4.7):
//  1. an explicit side in the payload, honored unless the room shows
//     that side already bound to a different live connection — unless
//     the room is already battling, in which case replacement is always
//     permitted (this is the normal tab-navigation/reconnect case: the
//     room's recorded binding reflects the last socket seen, not
//     whether it's still alive);
//  2. this connID is already bound somewhere in the room (a retried
//     envelope on the same socket, not a true reconnect);
//  3. exactly one side is currently unbound — the room can only mean
//     that one.
//
// If none of these resolve it, the caller must report StateConflict
// back to the client rather than guess.
func DetermineReconnectSide(r *room.Room, connID string, requested protocol.Side) (protocol.Side, error) {
	if requested.Valid() {
		if r.Status() == room.StatusBattling {
			return requested, nil
		}
		if bound, ok := r.ConnFor(requested); !ok || bound == connID {
			return requested, nil
		}
	}

	if side, ok := r.SideFor(connID); ok {
		return side, nil
	}

	p1Bound, p1ok := r.ConnFor(protocol.SideP1)
	p2Bound, p2ok := r.ConnFor(protocol.SideP2)
	switch {
	case (!p1ok || p1Bound == "") && p2ok && p2Bound != "":
		return protocol.SideP1, nil
	case (!p2ok || p2Bound == "") && p1ok && p1Bound != "":
		return protocol.SideP2, nil
	}

	return "", errkind.ErrCannotDetermineSide
}

// SubmitTeam records side's team and, once both sides have submitted,
// starts the battle exactly once even if both submissions race.
func (c *PvPCoordinator) SubmitTeam(r *room.Room, side protocol.Side, team protocol.Team) error {
	bothReady, err := r.SubmitTeam(side, team)
	if err != nil {
		return err
	}
	if !bothReady {
		return nil
	}

	_, err, _ = c.sf.Do(r.ID, func() (interface{}, error) {
		if _, already := r.Runner(); already {
			return nil, nil
		}
		return nil, c.startBattle(r)
	})
	return err
}

func (c *PvPCoordinator) startBattle(r *room.Room) error {
	p1team, p2team := r.Teams()
	handle, err := c.adapter.NewBattle(r.FormatID, nil,
		simulator.PlayerInit{Name: "p1", Team: p1team},
		simulator.PlayerInit{Name: "p2", Team: p2team},
	)
	if err != nil {
		return errkind.Wrap(errkind.MatchFatal, "could not start battle", err)
	}

	runner := matchrunner.New(fmt.Sprintf("room-%s", r.ID), handle)
	r.BindRunner(runner)
	logger.StreamingMatchLogger.LogMatchEvent(runner.MatchID, "started", map[string]string{"room": r.ID})
	if c.audit != nil {
		c.audit.RecordMatch(runner.MatchID, "pvp battle started")
	}
	return nil
}
