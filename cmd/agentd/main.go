// agentd is the game-agent runtime core: it serves the inbound command
// channel for the planning service, supervises the game-server connection,
// and streams perception events back to the planner.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/bridge"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/handlers"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/nav"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/perception"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/playback"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/router"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/skills"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/sustain"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/transport"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/version"
)

// askTimeout bounds how long a planner-forwarded chat waits for a reply.
const askTimeout = 10 * time.Second

const shutdownTimeout = 10 * time.Second

// bridgeEmitter adapts the bridge's queue to the narrow Emitter interface
// perception and the handlers publish through.
type bridgeEmitter struct {
	bridge  *bridge.Bridge
	agentID string
	clk     clock.Clock
}

func (e bridgeEmitter) Emit(event string, payload map[string]any) {
	e.bridge.Enqueue(bridge.NewEvent(event, e.agentID, payload, e.clk.Now()))
}

// app holds the wired components the registrar's hooks close over.
type app struct {
	agentID    string
	supervisor *game.Supervisor
	bridge     *bridge.Bridge
	nav        *nav.Controller
	sampler    *perception.Sampler
	sustain    *sustain.Monitor
}

// register installs the domain event handlers on each new client instance.
func (a *app) register(c game.Client) game.Hooks {
	return game.Hooks{
		OnSpawn: func() {
			slog.Info("Spawn complete", "username", a.agentID)
			a.nav.InitProfiles(c)
			a.sustain.PopulateFoods(c)
			a.sampler.BroadcastStatus()
			a.sampler.BroadcastPerception(context.Background(), true)
		},
		OnHealth: func() {
			a.sustain.OnHealth(context.Background())
			a.sampler.BroadcastStatus()
		},
		OnMove: func() {
			a.sampler.BroadcastPosition()
			a.sampler.BroadcastPerception(context.Background(), false)
		},
		OnForcedMove: a.nav.RecordForcedMove,
		OnChat:       a.onChat,
		OnEnd: func(reason string) {
			slog.Warn("Game session ended", "reason", reason)
		},
	}
}

// onChat forwards in-game chat from other participants to the planner and
// relays its reply back into the game.
func (a *app) onChat(username, message string) {
	if username == a.agentID {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		reply, err := a.bridge.Ask(ctx, "userChat", map[string]any{
			"username": username,
			"message":  message,
		})
		if err != nil {
			slog.Warn("Planner chat forwarding failed", "username", username, "error", err)
			return
		}
		text, _ := reply["text"].(string)
		if text == "" {
			return
		}
		c := a.supervisor.ActiveClient()
		if c == nil {
			return
		}
		if err := c.Chat(text); err != nil {
			slog.Warn("Failed to relay planner reply", "error", err)
		}
	}()
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded, using process environment")
	}

	slog.Info("Starting agent runtime core", "version", version.Full())

	cfg, warnings := config.NewResolver().Resolve()
	if len(warnings) > 0 {
		slog.Warn("Configuration normalised", "adjustments", len(warnings))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	clk := clock.System()
	tel := telemetry.Setup(ctx, cfg.Otel)

	agentID := cfg.Game.Username
	br := bridge.New(cfg.Bridge, agentID, transport.WebsocketDialer{}, clk, tel)
	emitter := bridgeEmitter{bridge: br, agentID: agentID, clk: clk}

	a := &app{agentID: agentID, bridge: br}
	supervisor := game.NewSupervisor(cfg.Game, clk, a.register)
	a.supervisor = supervisor

	a.nav = nav.New(cfg.Move, cfg.Pathfinder, cfg.ForcedMove, clk, supervisor)
	a.sustain = sustain.NewMonitor(cfg.Sustain, clk, supervisor)
	a.sampler = perception.NewSampler(cfg.Perception, clk, tel, supervisor, supervisor, a.nav, br, emitter)

	engine := playback.NewEngine(cfg.VPT, clk, supervisor)

	historyLog := skills.NewLogger(cfg.Skills.HistoryPath, clk)
	registry := skills.NewRegistry(clk, historyLog)

	rt := router.New(cfg.Router, tel, br, supervisor)
	handlers.Register(rt, handlers.Deps{
		Clients:  supervisor,
		Roles:    supervisor,
		Nav:      a.nav,
		Sampler:  a.sampler,
		Playback: engine,
		Skills:   registry,
		Emitter:  emitter,
	})

	br.EnsureSession("startup")
	if err := supervisor.Start(); err != nil {
		// Not fatal: the supervisor has already scheduled a reconnect.
		slog.Warn("Initial game connection failed", "error", err)
	}

	routerErr := make(chan error, 1)
	go func() { routerErr <- rt.Start() }()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-routerErr:
		if err != nil {
			slog.Error("Command router terminated", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Command router shutdown error", "error", err)
	}
	supervisor.Close()
	br.Close()
	historyLog.Close()
	tel.Shutdown(shutdownCtx)

	os.Exit(exitCode)
}
