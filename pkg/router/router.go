// Package router serves the inbound command channel: a gin engine exposing
// the /ws duplex endpoint and a /healthz probe. Each websocket session gets
// an opaque client id; frames are parsed as command envelopes and dispatched
// to registered verb handlers. Handlers run in parallel across frames while
// response writes stay serialised per session, so every request produces
// exactly one response.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/version"
)

// writeTimeout bounds a single response write so one stuck peer cannot
// wedge the session's write lock.
const writeTimeout = 10 * time.Second

// argSummaryLimit caps the arg_summary span attribute.
const argSummaryLimit = 160

// Envelope is the wire shape of an inbound command frame.
type Envelope struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Response is the wire shape of a command response frame.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Handler executes one verb. A nil error produces {ok:true, data}; a non-nil
// error produces {ok:false, error} with the error text on the wire.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// BridgeInfo is what /healthz reports about the planner bridge.
type BridgeInfo interface {
	State() string
	QueueSize() int
}

// GameInfo is what /healthz reports about the game connection.
type GameInfo interface {
	Connected() bool
}

// Router is the command listener. Register all verbs before Start; the
// handler table is not mutated afterwards.
type Router struct {
	cfg      config.RouterConfig
	tel      *telemetry.Telemetry
	bridge   BridgeInfo
	game     GameInfo
	handlers map[string]Handler

	engine *gin.Engine
	srv    *http.Server
}

// New builds a Router with its routes mounted but no verbs bound yet.
func New(cfg config.RouterConfig, tel *telemetry.Telemetry, bridge BridgeInfo, game GameInfo) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	r := &Router{
		cfg:      cfg,
		tel:      tel,
		bridge:   bridge,
		game:     game,
		handlers: make(map[string]Handler),
		engine:   engine,
	}
	engine.GET("/ws", r.handleWS)
	engine.GET("/healthz", r.handleHealth)
	return r
}

// Handle binds a verb to its handler. Not safe to call after Start.
func (r *Router) Handle(verb string, h Handler) {
	r.handlers[verb] = h
}

// Handler exposes the HTTP surface for tests and embedding.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Start blocks serving the command channel until Shutdown or a listener
// error.
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)
	r.srv = &http.Server{Addr: addr, Handler: r.engine}
	slog.Info("Command router listening", "addr", addr)
	if err := r.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("command router failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.srv == nil {
		return nil
	}
	return r.srv.Shutdown(ctx)
}

// handleHealth reports liveness plus the state of both external links.
func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"version": version.Full(),
		"bridge": gin.H{
			"state":      r.bridge.State(),
			"queue_size": r.bridge.QueueSize(),
		},
		"game": gin.H{
			"connected": r.game.Connected(),
		},
	})
}

// handleWS upgrades the request and serves the session until the peer
// closes.
func (r *Router) handleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	r.serve(c.Request.Context(), conn, c.ClientIP())
}

// session is one accepted command connection. The mutex serialises response
// writes; dispatch itself runs concurrently across frames.
type session struct {
	id     string
	remote string
	conn   *websocket.Conn

	mu sync.Mutex
}

func (s *session) write(ctx context.Context, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal command response", "client_id", s.id, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.conn.Write(wctx, websocket.MessageText, payload); err != nil {
		slog.Warn("Failed to send command response", "client_id", s.id, "error", err)
	}
}

// serve runs one session's read loop. Blocks until the connection closes.
func (r *Router) serve(ctx context.Context, conn *websocket.Conn, remote string) {
	s := &session{id: uuid.NewString(), remote: remote, conn: conn}
	slog.Info("Command session opened", "client_id", s.id, "remote", remote)

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("Command session closed", "client_id", s.id)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		wg.Add(1)
		go func(frame []byte) {
			defer wg.Done()
			r.dispatch(ctx, s, frame)
		}(data)
	}
}

// dispatch handles one inbound frame end to end and writes its single
// response.
func (r *Router) dispatch(ctx context.Context, s *session, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		slog.Warn("Invalid command frame", "client_id", s.id, "error", err)
		s.write(ctx, Response{OK: false, Error: "Invalid payload format"})
		return
	}

	verb := env.Type
	ctx, span := r.tel.Tracer.Start(ctx, "command."+verb)
	defer span.End()
	span.SetAttributes(
		attribute.String("client_id", s.id),
		attribute.String("remote", s.remote),
		attribute.String("verb", verb),
		attribute.String("arg_summary", summariseArgs(env.Args)),
	)

	resp := r.run(ctx, verb, env.Args)
	span.SetAttributes(attribute.Bool("result.ok", resp.OK))
	if !resp.OK {
		span.SetStatus(codes.Error, resp.Error)
	}
	r.tel.CommandsHandled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verb", verb),
		attribute.Bool("ok", resp.OK),
	))
	s.write(ctx, resp)
}

func (r *Router) run(ctx context.Context, verb string, args map[string]any) Response {
	h, ok := r.handlers[verb]
	if !ok {
		return Response{OK: false, Error: "Unknown command type"}
	}
	data, err := h(ctx, args)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Data: data}
}

// summariseArgs renders a compact, size-bounded view of the args for span
// attributes. Keys only when the full rendering would be too long.
func summariseArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err == nil && len(raw) <= argSummaryLimit {
		return string(raw)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	summary := "keys:" + strings.Join(keys, ",")
	if len(summary) > argSummaryLimit {
		summary = summary[:argSummaryLimit]
	}
	return summary
}
