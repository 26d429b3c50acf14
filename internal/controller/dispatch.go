package controller

import (
	"encoding/json"

	"battlemediation/internal/coordinator"
	"battlemediation/internal/errkind"
	"battlemediation/internal/matchrunner"
	"battlemediation/internal/room"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

func jsonMarshalEnvelope(e *protocol.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// handleEnvelope parses and dispatches one client->server JSON frame. It
// never lets a bad frame take down the connection: every failure path
// reports an error envelope back instead (spec.md §7's TransientClient).
func (ctl *Controller) handleEnvelope(c *conn, frame []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.sendEnvelope(protocol.ErrorEnvelope(errkind.ErrMalformedEnvelope.Error()))
		return
	}

	if c.dedup.SeenBefore(env.ID) {
		return
	}

	var err error
	switch env.Type {
	case protocol.EnvCreateRoom:
		err = ctl.handleCreateRoom(c, &env)
	case protocol.EnvJoinRoom:
		err = ctl.handleJoinRoom(c, &env)
	case protocol.EnvStart:
		err = ctl.handleStart(c, &env)
	case protocol.EnvChoose:
		err = ctl.handleChoose(c, &env)
	default:
		err = errkind.ErrUnknownEnvelopeType
	}

	if err != nil {
		c.sendEnvelope(protocol.ErrorEnvelope(err.Error()))
	}
}

func (ctl *Controller) handleCreateRoom(c *conn, env *protocol.Envelope) error {
	var payload protocol.CreateRoomPayload
	if err := env.Decode(&payload); err != nil {
		return errkind.ErrMalformedEnvelope
	}

	r, side, err := ctl.pvp.CreateRoom(string(c.id), payload.FormatID)
	if err != nil {
		return err
	}

	c.binding.set(&Binding{Room: r, Side: side})
	return c.sendEnvelope(protocol.NewEnvelope(protocol.EnvRoomCreated, protocol.RoomCreatedPayload{RoomID: r.ID}))
}

func (ctl *Controller) handleJoinRoom(c *conn, env *protocol.Envelope) error {
	var payload protocol.JoinRoomPayload
	if err := env.Decode(&payload); err != nil {
		return errkind.ErrMalformedEnvelope
	}

	r, ok := ctl.registryLookup(payload.RoomID)
	if !ok {
		return errkind.ErrRoomNotFound
	}

	var side protocol.Side
	var err error
	if r.Status() == room.StatusBattling {
		side, err = coordinator.DetermineReconnectSide(r, string(c.id), payload.Side)
		if err != nil {
			return err
		}
		r.Rebind(side, string(c.id))
	} else {
		_, side, err = ctl.pvp.JoinRoom(payload.RoomID, string(c.id))
		if err != nil {
			return err
		}
	}

	c.binding.set(&Binding{Room: r, Side: side})

	if runner, ok := r.Runner(); ok {
		ctl.bindSide(r, side, runner)
		return c.sendEnvelope(protocol.NewEnvelope(protocol.EnvBattleReconnected, protocol.BattleReconnectedPayload{
			Side:    side,
			Message: "replayed match history",
		}))
	}

	return ctl.broadcastRoomUpdate(r)
}

func (ctl *Controller) handleStart(c *conn, env *protocol.Envelope) error {
	var payload protocol.StartPayload
	if err := env.Decode(&payload); err != nil {
		return errkind.ErrMalformedEnvelope
	}

	switch payload.Mode {
	case protocol.ModeAI:
		runner, err := ctl.aiCoord.Start(string(c.id), payload.FormatID, payload.Difficulty, payload.Team)
		if err != nil {
			return err
		}
		c.binding.set(&Binding{Side: protocol.SideP1, Runner: runner.MatchRunner})
		runner.Bind(protocol.SideP1, c.send)
		return c.sendEnvelope(protocol.NewEnvelope(protocol.EnvBattleStarted, protocol.BattleStartedPayload{RoomID: ""}))

	case protocol.ModePvP:
		b, ok := c.binding.get()
		if !ok || b.Room == nil {
			if payload.RoomID == "" {
				return errkind.Wrap(errkind.StateConflict, "must create or join a room before starting", nil)
			}
			return ctl.reconnectStart(c, payload)
		}
		if b.Room.Status() == room.StatusBattling {
			return ctl.reconnectStart(c, payload)
		}
		if err := ctl.pvp.SubmitTeam(b.Room, b.Side, payload.Team); err != nil {
			return err
		}
		if runner, ready := b.Room.Runner(); ready {
			ctl.bindSide(b.Room, protocol.SideP1, runner)
			ctl.bindSide(b.Room, protocol.SideP2, runner)
			return nil
		}
		return ctl.broadcastRoomUpdate(b.Room)

	default:
		return errkind.Wrap(errkind.ValidationFailure, "unknown mode", nil)
	}
}

// reconnectStart implements spec.md §4.7 steps 1-2 for a "start" envelope
// that names a roomID instead of a freshly bound Room: look the room up,
// and if it is already battling, resolve which side this socket rejoins
// as and rebind it to the in-flight MatchRunner, replaying match history.
func (ctl *Controller) reconnectStart(c *conn, payload protocol.StartPayload) error {
	r, ok := ctl.registryLookup(payload.RoomID)
	if !ok {
		return errkind.ErrRoomNotFound
	}
	if r.Status() != room.StatusBattling {
		return errkind.Wrap(errkind.StateConflict, "room is not battling, cannot reconnect via start", nil)
	}

	side, err := coordinator.DetermineReconnectSide(r, string(c.id), payload.Side)
	if err != nil {
		return err
	}
	r.Rebind(side, string(c.id))
	c.binding.set(&Binding{Room: r, Side: side})

	runner, ready := r.Runner()
	if !ready {
		return errkind.Wrap(errkind.StateConflict, "room has no bound match to reconnect to", nil)
	}
	ctl.bindSide(r, side, runner)
	return c.sendEnvelope(protocol.NewEnvelope(protocol.EnvBattleReconnected, protocol.BattleReconnectedPayload{
		Side:    side,
		Message: "replayed match history",
	}))
}

func (ctl *Controller) handleChoose(c *conn, env *protocol.Envelope) error {
	var payload protocol.ChoosePayload
	if err := env.Decode(&payload); err != nil {
		return errkind.ErrMalformedEnvelope
	}

	b, ok := c.binding.get()
	if !ok || b.Runner == nil {
		return errkind.ErrNoMatchBound
	}
	return b.Runner.ForwardChoice(b.Side, payload.Command)
}

// bindSide looks up whichever connection is currently bound to side in
// the room and attaches it to runner, updating that connection's
// Binding. If no connection is currently bound to that side (the other
// player hasn't joined yet in an AI-adjacent edge case) it's a no-op.
func (ctl *Controller) bindSide(r *room.Room, side protocol.Side, runner *matchrunner.MatchRunner) {
	connID, ok := r.ConnFor(side)
	if !ok {
		return
	}

	ctl.mu.RLock()
	target, ok := ctl.conns[ConnectionID(connID)]
	ctl.mu.RUnlock()
	if !ok {
		return
	}

	target.binding.set(&Binding{Room: r, Side: side, Runner: runner})
	runner.Bind(side, target.send)
	logger.StreamingMatchLogger.LogMatchEvent(runner.MatchID, "side bound", map[string]string{"side": string(side), "conn": connID})
}

func (ctl *Controller) broadcastRoomUpdate(r *room.Room) error {
	_, p1ok := r.ConnFor(protocol.SideP1)
	_, p2ok := r.ConnFor(protocol.SideP2)
	update := protocol.NewEnvelope(protocol.EnvRoomUpdate, protocol.RoomUpdatePayload{
		RoomID:  r.ID,
		Status:  string(r.Status()),
		P1Ready: p1ok,
		P2Ready: p2ok,
	})

	for _, side := range []protocol.Side{protocol.SideP1, protocol.SideP2} {
		connID, ok := r.ConnFor(side)
		if !ok {
			continue
		}
		ctl.mu.RLock()
		target, ok := ctl.conns[ConnectionID(connID)]
		ctl.mu.RUnlock()
		if ok {
			target.sendEnvelope(update)
		}
	}
	return nil
}

// registryLookup is narrowed to the one Registry method dispatch needs,
// kept as a thin indirection so Controller doesn't have to import
// room.Registry's full surface just to satisfy handleJoinRoom.
func (ctl *Controller) registryLookup(token string) (*room.Room, bool) {
	return ctl.pvp.LookupRoom(token)
}
