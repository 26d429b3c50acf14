package controller

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"battlemediation/internal/audit"
	"battlemediation/internal/coordinator"
	"battlemediation/internal/errkind"
	"battlemediation/internal/matchrunner"
	"battlemediation/internal/room"
	"battlemediation/pkg/config"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

// ConnectionID is the identifier minted for each websocket accept, valid
// for the lifetime of that socket only: a reconnect always gets a new
// one (spec.md §3).
type ConnectionID string

// Controller is the ConnectionController: it owns the /battle upgrade,
// the read/write pumps for every connection, envelope dispatch, and raw
// protocol-line passthrough (spec.md §4.9).
type Controller struct {
	cfg      config.SocketConfig
	upgrader websocket.Upgrader
	pvp      *coordinator.PvPCoordinator
	aiCoord  *coordinator.AICoordinator
	audit    *audit.Store // nil when audit.enabled is false

	mu    sync.RWMutex
	conns map[ConnectionID]*conn
}

// New wires a Controller over the given coordinators. auditStore may be
// nil, in which case connection events simply aren't recorded.
func New(cfg config.SocketConfig, pvp *coordinator.PvPCoordinator, aiCoord *coordinator.AICoordinator, auditStore *audit.Store) *Controller {
	return &Controller{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pvp:     pvp,
		aiCoord: aiCoord,
		audit:   auditStore,
		conns:   map[ConnectionID]*conn{},
	}
}

// conn is one live websocket, its send queue, and its current Binding.
type conn struct {
	id          ConnectionID
	ws          *websocket.Conn
	sendQueue   chan []byte
	limiter     *rate.Limiter
	dedup       *duplicateDetector
	binding     bindingHolder
	closeOnce   sync.Once
	pongPending atomic.Bool // set right after a ping write, cleared by readPump's SetPongHandler
}

func (c *conn) send(line []byte) error {
	select {
	case c.sendQueue <- append([]byte(nil), line...):
		return nil
	default:
		return fmt.Errorf("send queue full")
	}
}

func (c *conn) sendEnvelope(e *protocol.Envelope) error {
	data, err := jsonMarshalEnvelope(e)
	if err != nil {
		return err
	}
	return c.send(data)
}

// HandleWebSocket upgrades the request and runs the connection's pumps
// until it closes.
func (ctl *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := ctl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.StreamingConnLogger.Warn("upgrade failed: %v", err)
		return
	}

	id := ConnectionID(uuid.New().String())
	c := &conn{
		id:        id,
		ws:        ws,
		sendQueue: make(chan []byte, ctl.cfg.SendQueueSize),
		limiter:   rate.NewLimiter(rate.Limit(ctl.cfg.InboundRatePerSec), ctl.cfg.InboundBurst),
		dedup:     newDuplicateDetector(),
	}

	ctl.mu.Lock()
	ctl.conns[id] = c
	ctl.mu.Unlock()

	logger.StreamingConnLogger.Info("connection %s accepted", id)
	if ctl.audit != nil {
		ctl.audit.RecordConnection(string(id), "accepted")
	}
	c.send([]byte("|status|connected"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ctl.writePump(c) }()
	go func() {
		defer wg.Done()
		ctl.readPump(c)
		// readPump has closed the socket; queue one frame so a writePump
		// idling on an empty queue attempts a write, fails, and exits too.
		c.send(nil)
	}()
	wg.Wait()

	ctl.cleanup(c)
}

func (ctl *Controller) cleanup(c *conn) {
	ctl.mu.Lock()
	delete(ctl.conns, c.id)
	ctl.mu.Unlock()

	if b, ok := c.binding.get(); ok {
		switch {
		case b.Runner != nil:
			b.Runner.Unbind(b.Side)
			if b.Room != nil {
				logger.StreamingRoomLogger.Info("connection %s dropped from room %s side %s", c.id, b.Room.ID, b.Side)
			}
		case b.Room != nil:
			ctl.leaveRoom(c, b.Room)
		}
	}
	logger.StreamingConnLogger.Info("connection %s closed", c.id)
	if ctl.audit != nil {
		ctl.audit.RecordConnection(string(c.id), "closed")
	}
}

// leaveRoom implements spec.md §5's disconnect policy for a socket that
// was bound to a Room that never reached (or is no longer in) battling:
// clear its side, delete the room once both sides are empty, otherwise
// tell whichever side remains that its opponent dropped.
func (ctl *Controller) leaveRoom(c *conn, r *room.Room) {
	side, left, bothEmpty := r.Leave(string(c.id))
	if !left {
		return
	}

	if bothEmpty {
		ctl.pvp.DeleteRoom(r.ID)
		logger.StreamingRoomLogger.Info("room %s deleted, both sides empty", r.ID)
		return
	}

	connID, ok := r.ConnFor(side.Other())
	if !ok {
		return
	}
	ctl.mu.RLock()
	target, ok := ctl.conns[ConnectionID(connID)]
	ctl.mu.RUnlock()
	if ok {
		target.sendEnvelope(protocol.NewEnvelope(protocol.EnvOpponentDisconnect, protocol.OpponentDisconnectedPayload{Side: side}))
	}
}

func (ctl *Controller) readPump(c *conn) {
	defer c.ws.Close()

	c.ws.SetReadLimit(ctl.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(ctl.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(ctl.cfg.ReadTimeout))
		c.pongPending.Store(false)
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.sendEnvelope(protocol.ErrorEnvelope("rate limit exceeded"))
			continue
		}

		if protocol.IsProtocolLine(frame) {
			ctl.forwardRaw(c, frame)
			continue
		}

		ctl.handleEnvelope(c, frame)
	}
}

func (ctl *Controller) writePump(c *conn) {
	ticker := time.NewTicker(ctl.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	missedPongs := 0
	for {
		select {
		case msg, ok := <-c.sendQueue:
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			// A pong still pending from the previous tick means the peer
			// never answered the last ping: that's the missed beat, not
			// whether this ping write itself succeeds (spec.md §4.9).
			if c.pongPending.Load() {
				missedPongs++
				if missedPongs >= ctl.cfg.MaxMissedPongs {
					c.ws.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
					c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "missed too many pongs"),
						time.Now().Add(ctl.cfg.WriteTimeout))
					return
				}
			} else {
				missedPongs = 0
			}

			c.pongPending.Store(true)
			c.ws.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forwardRaw handles a client sending a simulator command directly as a
// '|'-prefixed frame instead of a "choose" envelope (spec.md §6).
func (ctl *Controller) forwardRaw(c *conn, frame []byte) {
	b, ok := c.binding.get()
	if !ok || b.Runner == nil {
		c.sendEnvelope(protocol.ErrorEnvelope(errkind.ErrNoMatchBound.Error()))
		return
	}
	cmd := string(frame[1:])
	if err := b.Runner.ForwardChoice(b.Side, cmd); err != nil {
		c.sendEnvelope(protocol.ErrorEnvelope(err.Error()))
	}
}
