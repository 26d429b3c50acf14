package matchrunner

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"battlemediation/internal/simulator"
	"battlemediation/pkg/logger"
	"battlemediation/pkg/protocol"
)

// Sink delivers one raw protocol line to whatever currently holds side's
// connection. It must not block indefinitely; the websocket layer backs
// this with a buffered sendQueue per spec.md §5.
type Sink func(line []byte) error

// Outcome is the terminal result of a match.
type Outcome struct {
	Winner protocol.Side // zero value ignored when Tie is true
	Tie    bool
}

// MatchRunner owns one live battle: it pumps the simulator's three output
// streams into a ProtocolCache and lets either side (re)bind a Sink to
// receive the replay-then-live feed (spec.md §4.2, §4.3).
type MatchRunner struct {
	MatchID string

	handle *simulator.BattleHandle
	cache  *ProtocolCache

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu    sync.Mutex
	sinks map[protocol.Side]func() // cancel funcs for the currently bound subscriber, per side

	done    chan struct{}
	once    sync.Once
	outcome atomic.Value // Outcome
}

// New starts pumping handle's three streams into a fresh ProtocolCache and
// returns the runner managing it. The pumps run for the lifetime of the
// match; Close tears them down early if needed.
func New(matchID string, handle *simulator.BattleHandle) *MatchRunner {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	r := &MatchRunner{
		MatchID: matchID,
		handle:  handle,
		cache:   NewProtocolCache(),
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		sinks:   map[protocol.Side]func(){},
		done:    make(chan struct{}),
	}

	group.Go(func() error { return r.pumpOmniscient(gctx) })
	group.Go(func() error { return r.pumpPrivate(gctx, protocol.SideP1, handle.P1) })
	group.Go(func() error { return r.pumpPrivate(gctx, protocol.SideP2, handle.P2) })

	go func() {
		group.Wait()
		close(r.done)
	}()

	return r
}

func (r *MatchRunner) pumpOmniscient(ctx context.Context) error {
	for {
		select {
		case line, ok := <-r.handle.Omniscient:
			if !ok {
				return nil
			}
			r.cache.AppendOmniscient(line)
			r.noteTerminal(line)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *MatchRunner) pumpPrivate(ctx context.Context, side protocol.Side, in simulator.LineStream) error {
	for {
		select {
		case line, ok := <-in:
			if !ok {
				return nil
			}
			r.cache.AppendPrivate(side, line)
		case <-ctx.Done():
			return nil
		}
	}
}

// noteTerminal inspects an omniscient line for |win| / |tie| and records
// the match outcome the first time one appears (spec.md §4.3).
func (r *MatchRunner) noteTerminal(line []byte) {
	s := string(line)
	switch {
	case hasPrefix(s, "|win|p1"):
		r.setOutcome(Outcome{Winner: protocol.SideP1})
	case hasPrefix(s, "|win|p2"):
		r.setOutcome(Outcome{Winner: protocol.SideP2})
	case hasPrefix(s, "|tie|"):
		r.setOutcome(Outcome{Tie: true})
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (r *MatchRunner) setOutcome(o Outcome) {
	r.outcome.CompareAndSwap(nil, o)
}

// Outcome reports the match's terminal result, if it has one yet.
func (r *MatchRunner) Outcome() (Outcome, bool) {
	v := r.outcome.Load()
	if v == nil {
		return Outcome{}, false
	}
	return v.(Outcome), true
}

// Done is closed once all three pumps have exited (the battle ended or
// Close was called).
func (r *MatchRunner) Done() <-chan struct{} {
	return r.done
}

// Bind atomically snapshots side's protocol history into sink and starts
// forwarding every subsequent line to it, replacing whatever sink was
// previously bound to that side (a stale connection from before a
// reconnect). This is the snapshot-and-stream operation spec.md §9 calls
// for: no caller-visible gap between "what already happened" and "what
// happens next".
func (r *MatchRunner) Bind(side protocol.Side, sink Sink) {
	snapshot, live, cancel := r.cache.Subscribe(side)

	r.mu.Lock()
	if prev, ok := r.sinks[side]; ok {
		prev()
	}
	r.sinks[side] = cancel
	r.mu.Unlock()

	for _, line := range snapshot {
		if err := sink(line); err != nil {
			logger.StreamingMatchLogger.Warn("replay write failed for match %s side %s: %v", r.MatchID, side, err)
			cancel()
			return
		}
	}

	go func() {
		for line := range live {
			if err := sink(line); err != nil {
				return
			}
		}
	}()
}

// SubscribeRaw exposes the cache's snapshot-and-stream primitive
// directly, for observers that aren't a connection's bound Sink (e.g.
// AICoordinator tracking the opponent's public reveals). Unlike Bind, it
// does not participate in the per-side "currently bound sink" bookkeeping
// Unbind/Close manage.
func (r *MatchRunner) SubscribeRaw(side protocol.Side) ([][]byte, <-chan []byte, func()) {
	return r.cache.Subscribe(side)
}

// Unbind detaches sink from side without replacing it, used when a
// connection drops and no replacement has reconnected yet.
func (r *MatchRunner) Unbind(side protocol.Side) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.sinks[side]; ok {
		cancel()
		delete(r.sinks, side)
	}
}

// ForwardChoice writes cmd verbatim into side's input on the simulator
// (spec.md §4.3's forwardChoice).
func (r *MatchRunner) ForwardChoice(side protocol.Side, cmd string) error {
	return r.handle.Forward(side, cmd)
}

// Close tears down the battle immediately, whether or not it reached a
// terminal line, and cancels all pumps. Safe to call more than once.
func (r *MatchRunner) Close() {
	r.once.Do(func() {
		r.handle.Close()
		r.cancel()
	})
}
