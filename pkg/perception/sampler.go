// Package perception builds world snapshots around the agent and streams
// position/status/perception events to the planner under throttle rules.
package perception

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
)

// ClientSource supplies the active game client, nil when not ready.
type ClientSource interface {
	ActiveClient() game.Client
}

// RoleSource reports the current role assignment.
type RoleSource interface {
	RoleStatus() game.RoleStatus
}

// DigProfiles exposes the navigation controller's dig-permissive profile
// for the dig-permission report.
type DigProfiles interface {
	ProfilesInitialized() bool
	DigPermissive() (game.Movements, bool)
}

// QueueSizer reports the outbound event queue depth.
type QueueSizer interface {
	QueueSize() int
}

// Emitter publishes one agent event. The bridge satisfies this through a
// thin adapter; tests record.
type Emitter interface {
	Emit(event string, payload map[string]any)
}

// Sampler builds snapshots on demand and owns broadcast throttle state.
type Sampler struct {
	cfg      config.PerceptionConfig
	clk      clock.Clock
	tel      *telemetry.Telemetry
	src      ClientSource
	roles    RoleSource
	profiles DigProfiles
	queue    QueueSizer
	emitter  Emitter

	mu              sync.Mutex
	lastSnapshot    *Snapshot
	lastBroadcastAt time.Time
	lastPosition    *BlockPos
}

// NewSampler wires a Sampler. roles, profiles and queue may be nil; the
// corresponding report fields are then omitted.
func NewSampler(cfg config.PerceptionConfig, clk clock.Clock, tel *telemetry.Telemetry,
	src ClientSource, roles RoleSource, profiles DigProfiles, queue QueueSizer, emitter Emitter) *Sampler {
	return &Sampler{
		cfg:      cfg,
		clk:      clk,
		tel:      tel,
		src:      src,
		roles:    roles,
		profiles: profiles,
		queue:    queue,
		emitter:  emitter,
	}
}

// Build constructs an instrumented snapshot for the active client. A build
// failure is counted and yields nil; it never propagates.
func (s *Sampler) Build(ctx context.Context, reason string) (snap *Snapshot) {
	c := s.src.ActiveClient()
	if c == nil {
		return nil
	}
	start := s.clk.Now()
	dimension := c.Dimension()
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Perception snapshot build failed", "reason", reason, "panic", r)
			s.tel.SnapshotErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", reason)))
			snap = nil
		}
		s.tel.SnapshotDuration.Record(ctx, s.clk.Now().Sub(start).Seconds(),
			metric.WithAttributes(
				attribute.String("reason", reason),
				attribute.String("dimension", dimension)))
	}()
	return s.buildSnapshot(c)
}

// Gather produces the response payload for a gatherStatus request. kind is
// one of position, inventory, general, environment.
func (s *Sampler) Gather(ctx context.Context, kind string) (map[string]any, error) {
	c := s.src.ActiveClient()
	if c == nil {
		return nil, fmt.Errorf("Bot is not connected to the Minecraft server yet")
	}
	switch kind {
	case "position":
		return s.gatherPosition(c)
	case "inventory":
		return s.gatherInventory(c), nil
	case "general":
		return s.gatherGeneral(ctx, c), nil
	case "environment":
		return s.gatherEnvironment(ctx), nil
	default:
		return nil, fmt.Errorf("unknown status kind %q", kind)
	}
}

func (s *Sampler) gatherPosition(c game.Client) (map[string]any, error) {
	entity := c.Entity()
	if entity == nil {
		return nil, fmt.Errorf("Bot is not connected to the Minecraft server yet")
	}
	x, y, z := entity.Position.Floored()
	dimension := c.Dimension()
	return map[string]any{
		"x":         x,
		"y":         y,
		"z":         z,
		"dimension": dimension,
		"summary":   fmt.Sprintf("At (%d, %d, %d) in %s", x, y, z, dimension),
	}, nil
}

func (s *Sampler) gatherInventory(c game.Client) map[string]any {
	items := c.Inventory()
	details := make([]map[string]any, 0, len(items))
	var pickaxes []string
	torches := 0
	for _, item := range items {
		detail := map[string]any{
			"slot":        item.Slot,
			"name":        item.Name,
			"displayName": item.DisplayName,
			"count":       item.Count,
		}
		if len(item.Enchantments) > 0 {
			detail["enchantments"] = item.Enchantments
		}
		if item.Durability != nil {
			detail["durability"] = *item.Durability
		}
		details = append(details, detail)

		if strings.HasSuffix(item.Name, "_pickaxe") {
			pickaxes = append(pickaxes, item.Name)
		}
		if item.Name == "torch" {
			torches += item.Count
		}
	}

	summary := fmt.Sprintf("%d/%d slots used", len(items), c.InventorySlots())
	if len(pickaxes) > 0 {
		summary = fmt.Sprintf("%s; pickaxes: %s", summary, strings.Join(pickaxes, ", "))
	}
	if torches > 0 {
		summary = fmt.Sprintf("%s; %d torches", summary, torches)
	}

	return map[string]any{
		"occupiedSlots": len(items),
		"totalSlots":    c.InventorySlots(),
		"items":         details,
		"pickaxes":      pickaxes,
		"torchCount":    torches,
		"summary":       summary,
	}
}

func (s *Sampler) gatherGeneral(ctx context.Context, c game.Client) map[string]any {
	vitals := c.Vitals()
	out := map[string]any{
		"health":        math.Round(vitals.Health),
		"maxHealth":     math.Round(vitals.MaxHealth),
		"food":          math.Round(vitals.Food),
		"saturation":    math.Round(vitals.Saturation*10) / 10,
		"oxygen":        vitals.Oxygen,
		"digPermission": s.digPermission(c),
	}
	if snap := s.Build(ctx, "general"); snap != nil {
		out["perception"] = snap
	}
	if s.roles != nil {
		out["role"] = s.roles.RoleStatus()
	}
	return out
}

func (s *Sampler) gatherEnvironment(ctx context.Context) map[string]any {
	out := map[string]any{}
	if snap := s.Build(ctx, "environment"); snap != nil {
		out["perception"] = snap
	}
	if s.roles != nil {
		out["role"] = s.roles.RoleStatus()
	}
	if s.queue != nil {
		out["eventQueueSize"] = s.queue.QueueSize()
	}
	return out
}

// digPermission reports whether the agent may dig right now and why not.
func (s *Sampler) digPermission(c game.Client) map[string]any {
	mode := c.GameMode()
	initialized := false
	canDig := false
	if s.profiles != nil && s.profiles.ProfilesInitialized() {
		initialized = true
		if digging, ok := s.profiles.DigPermissive(); ok {
			canDig = digging.CanDig
		}
	}

	allowed := mode != "adventure" && mode != "spectator" && initialized && canDig
	reason := ""
	switch {
	case mode == "adventure" || mode == "spectator":
		reason = fmt.Sprintf("game mode %s forbids digging", mode)
	case !initialized:
		reason = "movement profiles not initialised yet"
	case !canDig:
		reason = "digging profile disabled"
	}

	out := map[string]any{
		"allowed":                     allowed,
		"gameMode":                    mode,
		"fallbackMovementInitialized": initialized,
	}
	if reason != "" {
		out["reason"] = reason
	}
	return out
}

// --- broadcasting ---

// BroadcastPerception emits a perception event unless one was emitted less
// than the broadcast interval ago. force bypasses the throttle. When the
// fresh build fails, the previous snapshot is substituted.
func (s *Sampler) BroadcastPerception(ctx context.Context, force bool) {
	now := s.clk.Now()
	s.mu.Lock()
	if !force && !s.lastBroadcastAt.IsZero() && now.Sub(s.lastBroadcastAt) < s.cfg.BroadcastInterval {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	snap := s.Build(ctx, "broadcast")
	s.mu.Lock()
	if snap == nil {
		snap = s.lastSnapshot.Clone()
	} else {
		s.lastSnapshot = snap
	}
	if snap == nil {
		s.mu.Unlock()
		return
	}
	s.lastBroadcastAt = now
	s.mu.Unlock()

	s.emitter.Emit("perception", map[string]any{"snapshot": snap})
}

// BroadcastPosition emits a position event when the floored coordinate
// changed since the last position broadcast.
func (s *Sampler) BroadcastPosition() {
	c := s.src.ActiveClient()
	if c == nil {
		return
	}
	entity := c.Entity()
	if entity == nil {
		return
	}
	x, y, z := entity.Position.Floored()
	pos := BlockPos{X: x, Y: y, Z: z}

	s.mu.Lock()
	if s.lastPosition != nil && *s.lastPosition == pos {
		s.mu.Unlock()
		return
	}
	s.lastPosition = &pos
	s.mu.Unlock()

	s.emitter.Emit("position", map[string]any{
		"x":         x,
		"y":         y,
		"z":         z,
		"dimension": c.Dimension(),
	})
}

// BroadcastStatus always emits a status event with current vitals.
func (s *Sampler) BroadcastStatus() {
	c := s.src.ActiveClient()
	if c == nil {
		return
	}
	vitals := c.Vitals()
	payload := map[string]any{
		"health":    math.Round(vitals.Health),
		"food":      math.Round(vitals.Food),
		"dimension": c.Dimension(),
	}
	if entity := c.Entity(); entity != nil {
		x, y, z := entity.Position.Floored()
		payload["position"] = BlockPos{X: x, Y: y, Z: z}
	}
	s.emitter.Emit("status", payload)
}
