// Package bridge maintains the durable outbound session to the planner
// service: a bounded in-memory event queue, a batching flusher, and a
// session supervisor with connect timeout, healthcheck, and reconnect
// backoff. Enqueue never blocks; queued events survive disconnects up to
// the configured queue capacity.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/transport"
)

// ErrSessionNotConnected is returned by Ask when no planner session is up.
var ErrSessionNotConnected = errors.New("agent bridge session is not connected")

// errSendTimeout marks a send aborted by the send-timeout timer.
var errSendTimeout = errors.New("agent bridge send timed out")

type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateConnected
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Bridge owns the single logical outbound session to the planner.
//
// Locking: mu guards every mutable field. No callback or I/O runs while mu
// is held; timers fire on their own goroutines and re-acquire it. A session
// generation counter makes callbacks from a superseded connection no-ops.
type Bridge struct {
	cfg     config.BridgeConfig
	agentID string
	clk     clock.Clock
	dialer  transport.Dialer
	tel     *telemetry.Telemetry

	mu       sync.Mutex
	queue    []AgentEvent
	state    sessionState
	conn     transport.Conn
	gen      int
	lastPong time.Time

	flushArmed bool
	flushing   bool
	flushTimer clock.Timer

	reconnectTimer clock.Timer
	healthTimer    clock.Timer

	pending map[string]chan map[string]any
	closed  bool
}

// New creates a Bridge. No session is established until EnsureSession is
// called or the first flush needs one.
func New(cfg config.BridgeConfig, agentID string, dialer transport.Dialer, clk clock.Clock, tel *telemetry.Telemetry) *Bridge {
	return &Bridge{
		cfg:     cfg,
		agentID: agentID,
		clk:     clk,
		dialer:  dialer,
		tel:     tel,
		pending: make(map[string]chan map[string]any),
	}
}

// Enqueue appends an event to the outbound queue, evicting the oldest event
// when the queue is full, and arms the batch flusher. Never blocks.
func (b *Bridge) Enqueue(evt AgentEvent) {
	var evicted *AgentEvent
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.queue) >= b.cfg.QueueMaxSize {
		head := b.queue[0]
		evicted = &head
		b.queue = append(b.queue[:0], b.queue[1:]...)
	}
	b.queue = append(b.queue, evt)
	b.armFlushLocked(b.cfg.BatchInterval)
	b.mu.Unlock()

	if evicted != nil {
		slog.Warn("Agent event queue full; evicting oldest event",
			"evicted_type", evicted.Event, "capacity", b.cfg.QueueMaxSize)
	}
}

// QueueSize reports the number of events waiting to be flushed.
func (b *Bridge) QueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// State reports the session state as a string (for the health endpoint).
func (b *Bridge) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Connected reports whether a planner session is currently established.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateConnected
}

// EnsureSession starts connecting if the session is currently disconnected.
// Safe to call from any goroutine and at any state.
func (b *Bridge) EnsureSession(reason string) {
	b.mu.Lock()
	if b.closed || b.state != stateDisconnected {
		b.mu.Unlock()
		return
	}
	b.state = stateConnecting
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	slog.Info("Agent bridge connecting", "reason", reason, "url", b.cfg.URL)
	go b.connect(gen)
}

// connect dials the planner endpoint under the connect timeout. Runs on its
// own goroutine so EnsureSession never blocks callers.
func (b *Bridge) connect(gen int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timeout := b.clk.AfterFunc(b.cfg.ConnectTimeout, cancel)

	conn, err := b.dialer.Dial(ctx, b.cfg.URL, transport.Callbacks{
		OnMessage: func(data []byte) { b.onMessage(gen, data) },
		OnClose:   func(err error) { b.onSessionClosed(gen, err) },
	})
	timeout.Stop()

	if err != nil {
		slog.Warn("Agent bridge connect failed", "url", b.cfg.URL, "error", err)
		b.mu.Lock()
		if b.gen == gen {
			b.state = stateDisconnected
		}
		b.mu.Unlock()
		b.scheduleReconnect("connect failed")
		return
	}

	b.mu.Lock()
	if b.closed || b.gen != gen {
		b.mu.Unlock()
		conn.Terminate()
		return
	}
	b.conn = conn
	b.state = stateConnected
	b.lastPong = b.clk.Now()
	b.scheduleHealthcheckLocked(gen)
	if len(b.queue) > 0 {
		b.armFlushLocked(b.cfg.BatchInterval)
	}
	b.mu.Unlock()
	slog.Info("Agent bridge connected", "url", b.cfg.URL)
}

// onSessionClosed cleans up after a close or error on the current session
// and schedules a reconnect. Stale generations are ignored.
func (b *Bridge) onSessionClosed(gen int, err error) {
	b.mu.Lock()
	if b.closed || b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.state = stateDisconnected
	if b.healthTimer != nil {
		b.healthTimer.Stop()
		b.healthTimer = nil
	}
	pending := b.pending
	b.pending = make(map[string]chan map[string]any)
	b.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	slog.Warn("Agent bridge session closed", "error", err)
	b.scheduleReconnect("session closed")
}

// scheduleReconnect arms the reconnect timer. Idempotent: an already-armed
// timer wins.
func (b *Bridge) scheduleReconnect(reason string) {
	b.mu.Lock()
	if b.closed || b.reconnectTimer != nil {
		b.mu.Unlock()
		return
	}
	b.reconnectTimer = b.clk.AfterFunc(b.cfg.ReconnectDelay, func() {
		b.mu.Lock()
		b.reconnectTimer = nil
		b.mu.Unlock()
		b.EnsureSession(reason)
	})
	b.mu.Unlock()
}

// --- healthcheck ---

func (b *Bridge) scheduleHealthcheckLocked(gen int) {
	b.healthTimer = b.clk.AfterFunc(b.cfg.HealthcheckInterval, func() {
		b.healthcheck(gen)
	})
}

// healthcheck terminates the session when two intervals have elapsed without
// an inbound frame; otherwise it sends a liveness probe and re-arms.
func (b *Bridge) healthcheck(gen int) {
	b.mu.Lock()
	if b.closed || b.gen != gen || b.state != stateConnected {
		b.mu.Unlock()
		return
	}
	conn := b.conn
	stale := b.clk.Now().Sub(b.lastPong) > 2*b.cfg.HealthcheckInterval
	if !stale {
		b.scheduleHealthcheckLocked(gen)
	}
	b.mu.Unlock()

	if stale {
		slog.Warn("Agent bridge healthcheck missed; terminating session")
		conn.Terminate()
		return
	}
	if err := b.sendOnce(conn, []byte(`{"type":"ping"}`)); err != nil {
		slog.Warn("Agent bridge liveness probe failed", "error", err)
	}
}

// onMessage refreshes the liveness timestamp and resolves any pending Ask
// correlation. Inbound frames are otherwise consumed for liveness only.
func (b *Bridge) onMessage(gen int, data []byte) {
	var frame struct {
		Type string         `json:"type"`
		Args map[string]any `json:"args"`
	}
	_ = json.Unmarshal(data, &frame)

	var ch chan map[string]any
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.lastPong = b.clk.Now()
	if rid, ok := frame.Args["requestId"].(string); ok {
		if pending, exists := b.pending[rid]; exists {
			delete(b.pending, rid)
			ch = pending
		}
	}
	b.mu.Unlock()

	if ch != nil {
		ch <- frame.Args
		close(ch)
	}
}

// --- flusher ---

// armFlushLocked schedules a flush after delay unless one is already armed.
func (b *Bridge) armFlushLocked(delay time.Duration) {
	if b.flushArmed || b.closed {
		return
	}
	b.flushArmed = true
	b.flushTimer = b.clk.AfterFunc(delay, b.flush)
}

// flush drains up to batchMaxSize events and attempts delivery. At most one
// flush is in flight at any time; when no session is connected the flusher
// requests one and re-arms.
func (b *Bridge) flush() {
	b.mu.Lock()
	b.flushArmed = false
	if b.closed || b.flushing {
		b.mu.Unlock()
		return
	}
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	if b.state != stateConnected {
		b.armFlushLocked(b.cfg.ReconnectDelay)
		b.mu.Unlock()
		b.EnsureSession("flush")
		return
	}
	n := b.cfg.BatchMaxSize
	if n > len(b.queue) {
		n = len(b.queue)
	}
	batch := make([]AgentEvent, n)
	copy(batch, b.queue[:n])
	b.queue = append(b.queue[:0], b.queue[n:]...)
	b.flushing = true
	conn := b.conn
	b.mu.Unlock()

	b.sendBatch(conn, batch)
}

// sendBatch delivers a batch with up to maxRetries+1 attempts, scheduling a
// reconnect between failed attempts. On final failure the batch is
// re-prepended to the queue (order preserved, excess beyond capacity
// dropped with a warning).
func (b *Bridge) sendBatch(conn transport.Conn, batch []AgentEvent) {
	payload, err := json.Marshal(plannerEnvelope{
		Type: "agentEvent",
		Args: envelopeArgs{Events: batch},
	})
	if err != nil {
		// Events are plain JSON maps; treat a marshal failure as a dropped batch.
		slog.Error("Failed to marshal agent event batch; dropping", "events", len(batch), "error", err)
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
		return
	}

	attempts := b.cfg.MaxRetries + 1
	var sendErr error
	for i := 0; i < attempts; i++ {
		if conn == nil {
			sendErr = ErrSessionNotConnected
		} else {
			sendErr = b.sendOnce(conn, payload)
		}
		if sendErr == nil {
			b.onBatchSent(batch)
			return
		}
		b.scheduleReconnect("batch send failed")
		b.mu.Lock()
		conn = nil
		if b.state == stateConnected {
			conn = b.conn
		}
		b.mu.Unlock()
	}

	slog.Warn("Agent event batch delivery failed; re-queueing",
		"events", len(batch), "error", sendErr)
	b.mu.Lock()
	dropped := b.prependLocked(batch)
	b.flushing = false
	b.armFlushLocked(b.cfg.ReconnectDelay)
	b.mu.Unlock()
	for _, ev := range dropped {
		slog.Warn("Agent event dropped during re-queue; queue at capacity",
			"type", ev.Event)
	}
}

// onBatchSent records delivery metrics and re-arms the flusher when more
// events are waiting.
func (b *Bridge) onBatchSent(batch []AgentEvent) {
	ctx := context.Background()
	for _, ev := range batch {
		b.tel.EventsSent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", ev.Channel),
			attribute.String("type", ev.Event),
		))
	}
	b.mu.Lock()
	b.flushing = false
	if len(b.queue) > 0 {
		b.armFlushLocked(b.cfg.BatchInterval)
	}
	b.mu.Unlock()
}

// prependLocked reinserts a failed batch at the head of the queue,
// preserving batch order and dropping whatever exceeds remaining capacity.
// Returns the dropped events.
func (b *Bridge) prependLocked(batch []AgentEvent) []AgentEvent {
	room := b.cfg.QueueMaxSize - len(b.queue)
	if room < 0 {
		room = 0
	}
	keep := batch
	var dropped []AgentEvent
	if len(batch) > room {
		keep = batch[:room]
		dropped = batch[room:]
	}
	merged := make([]AgentEvent, 0, len(keep)+len(b.queue))
	merged = append(merged, keep...)
	merged = append(merged, b.queue...)
	b.queue = merged
	return dropped
}

// sendOnce writes one frame under the send timeout. On timeout the socket
// is terminated (triggering session cleanup via OnClose) and the send fails.
func (b *Bridge) sendOnce(conn transport.Conn, payload []byte) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var timedOut atomic.Bool
	t := b.clk.AfterFunc(b.cfg.SendTimeout, func() {
		timedOut.Store(true)
		conn.Terminate()
		cancel()
	})
	err := conn.Send(ctx, payload)
	t.Stop()
	if timedOut.Load() {
		return errSendTimeout
	}
	return err
}

// --- request/response ---

// Ask sends an envelope to the planner and waits for the correlated reply
// frame (matched on args.requestId). The caller bounds the wait through ctx;
// planner-forwarded chat uses a 10 second timeout.
func (b *Bridge) Ask(ctx context.Context, msgType string, args map[string]any) (map[string]any, error) {
	b.mu.Lock()
	if b.state != stateConnected {
		b.mu.Unlock()
		return nil, ErrSessionNotConnected
	}
	conn := b.conn
	rid := uuid.New().String()
	ch := make(chan map[string]any, 1)
	b.pending[rid] = ch
	b.mu.Unlock()

	merged := make(map[string]any, len(args)+1)
	for k, v := range args {
		merged[k] = v
	}
	merged["requestId"] = rid

	payload, err := json.Marshal(map[string]any{"type": msgType, "args": merged})
	if err != nil {
		b.dropPending(rid)
		return nil, err
	}
	if err := b.sendOnce(conn, payload); err != nil {
		b.dropPending(rid)
		return nil, err
	}

	select {
	case <-ctx.Done():
		b.dropPending(rid)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrSessionNotConnected
		}
		return resp, nil
	}
}

func (b *Bridge) dropPending(rid string) {
	b.mu.Lock()
	delete(b.pending, rid)
	b.mu.Unlock()
}

// Close tears the bridge down: timers cancelled, session terminated, queue
// abandoned. Enqueue becomes a no-op afterwards.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	conn := b.conn
	b.conn = nil
	b.state = stateDisconnected
	for _, t := range []clock.Timer{b.flushTimer, b.reconnectTimer, b.healthTimer} {
		if t != nil {
			t.Stop()
		}
	}
	pending := b.pending
	b.pending = make(map[string]chan map[string]any)
	b.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if conn != nil {
		conn.Terminate()
	}
}

// queueSnapshot returns a copy of the queued events. Test helper.
func (b *Bridge) queueSnapshot() []AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AgentEvent, len(b.queue))
	copy(out, b.queue)
	return out
}
