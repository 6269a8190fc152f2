package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// ErrPlaybackInProgress reports a concurrent playback attempt. The message
// travels verbatim in command responses.
var ErrPlaybackInProgress = errors.New("Another VPT playback is already in progress")

// ErrNotConnected mirrors the navigation controller's disconnected error.
var ErrNotConnected = errors.New("Bot is not connected to the Minecraft server yet")

// ClientSource supplies the active game client, nil when not ready.
type ClientSource interface {
	ActiveClient() game.Client
}

// Engine executes validated action sequences. At most one sequence is in
// flight globally.
type Engine struct {
	cfg  config.VPTConfig
	clk  clock.Clock
	src  ClientSource
	busy atomic.Bool
}

// NewEngine builds an Engine.
func NewEngine(cfg config.VPTConfig, clk clock.Clock, src ClientSource) *Engine {
	return &Engine{cfg: cfg, clk: clk, src: src}
}

// Result summarises a completed playback.
type Result struct {
	Executed int `json:"executed"`
	Ticks    int `json:"ticks"`
}

// Play validates and executes a raw action sequence. Rejected outright when
// the control mode forbids VPT playback; pressed controls are always
// released on exit.
func (e *Engine) Play(ctx context.Context, rawActions any) (*Result, error) {
	if e.cfg.ControlMode == config.ControlModeCommand {
		return nil, fmt.Errorf("VPT playback is disabled while CONTROL_MODE=command")
	}

	actions, err := ParseActions(rawActions, e.cfg.MaxSequenceLength)
	if err != nil {
		return nil, err
	}
	c := e.src.ActiveClient()
	if c == nil {
		return nil, ErrNotConnected
	}

	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrPlaybackInProgress
	}
	defer e.busy.Store(false)

	// Any prior movement intent would fight the sequence.
	c.Pathfinder().Stop()
	c.ClearControls()

	pressed := make(map[string]bool)
	defer func() {
		for control := range pressed {
			_ = c.SetControl(control, false)
		}
		c.ClearControls()
	}()

	result := &Result{}
	for i, action := range actions {
		if err := e.step(ctx, c, action); err != nil {
			slog.Warn("VPT playback aborted", "action", i, "kind", action.Kind, "error", err)
			return nil, err
		}
		e.trackPressed(pressed, action)
		result.Executed++
		result.Ticks += action.DurationTicks
	}
	return result, nil
}

func (e *Engine) step(ctx context.Context, c game.Client, action Action) error {
	switch action.Kind {
	case kindControl:
		if err := c.SetControl(action.Control, action.State); err != nil {
			return err
		}
	case kindLook:
		yaw, pitch := action.Yaw, action.Pitch
		if action.Relative {
			if entity := c.Entity(); entity != nil {
				yaw += entity.Yaw
				pitch += entity.Pitch
			}
		}
		pitch = clampPitch(pitch)
		if err := c.Look(ctx, yaw, pitch); err != nil {
			return err
		}
	}
	if action.DurationTicks > 0 {
		return e.clk.Sleep(ctx, time.Duration(action.DurationTicks)*e.cfg.TickInterval)
	}
	return ctx.Err()
}

func (e *Engine) trackPressed(pressed map[string]bool, action Action) {
	if action.Kind != kindControl {
		return
	}
	if action.State {
		pressed[action.Control] = true
	} else {
		delete(pressed, action.Control)
	}
}

// Busy reports whether a sequence is currently in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

func clampPitch(pitch float64) float64 {
	limit := math.Pi / 2
	if pitch > limit {
		return limit
	}
	if pitch < -limit {
		return -limit
	}
	return pitch
}
