// Package handlers binds the closed command-verb set to the runtime
// components. Each handler is a thin adapter: extract and validate the
// envelope args, call into one component, shape the response data.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/nav"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/perception"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/playback"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/router"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/skills"
)

// ClientSource supplies the active game client, nil when not ready.
type ClientSource interface {
	ActiveClient() game.Client
}

// RoleApplier applies planner role assignments. The lifecycle supervisor
// satisfies this.
type RoleApplier interface {
	ApplyAgentRoleUpdate(id, source, reason string) (game.RoleStatus, bool)
}

// Emitter publishes one agent event to the planner.
type Emitter interface {
	Emit(event string, payload map[string]any)
}

// Deps carries every component a verb handler may touch.
type Deps struct {
	Clients  ClientSource
	Roles    RoleApplier
	Nav      *nav.Controller
	Sampler  *perception.Sampler
	Playback *playback.Engine
	Skills   *skills.Registry
	Emitter  Emitter
}

// Register binds all verbs on the router.
func Register(r *router.Router, d Deps) {
	r.Handle("chat", d.chat)
	r.Handle("moveTo", d.moveTo)
	r.Handle("equipItem", d.equipItem)
	r.Handle("gatherStatus", d.gatherStatus)
	r.Handle("gatherVptObservation", d.gatherVptObservation)
	r.Handle("mineOre", d.mineOre)
	r.Handle("setAgentRole", d.setAgentRole)
	r.Handle("registerSkill", d.registerSkill)
	r.Handle("invokeSkill", d.invokeSkill)
	r.Handle("skillExplore", d.skillExplore)
	r.Handle("playVptActions", d.playVptActions)
}

func (d Deps) chat(ctx context.Context, args map[string]any) (any, error) {
	text := stringArg(args, "text")
	if text == "" {
		return nil, fmt.Errorf("chat text is required")
	}
	c := d.Clients.ActiveClient()
	if c == nil {
		return nil, nav.ErrNotConnected
	}
	if err := c.Chat(text); err != nil {
		return nil, fmt.Errorf("failed to send chat: %w", err)
	}
	return nil, nil
}

func (d Deps) moveTo(ctx context.Context, args map[string]any) (any, error) {
	x, okX := numberArg(args, "x")
	y, okY := numberArg(args, "y")
	z, okZ := numberArg(args, "z")
	if !okX || !okY || !okZ {
		return nil, nav.ErrInvalidCoordinates
	}
	if err := d.Nav.MoveTo(ctx, x, y, z); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d Deps) equipItem(ctx context.Context, args map[string]any) (any, error) {
	name := strings.TrimSpace(stringArg(args, "item"))
	if name == "" {
		return nil, fmt.Errorf("item name is required")
	}
	destination := stringArg(args, "destination")
	if destination == "" {
		destination = "hand"
	}
	c := d.Clients.ActiveClient()
	if c == nil {
		return nil, nav.ErrNotConnected
	}
	if !inventoryHas(c, name) {
		return nil, fmt.Errorf("Item not found in inventory: %s", name)
	}
	if err := c.Equip(name, destination); err != nil {
		return nil, fmt.Errorf("failed to equip %s: %w", name, err)
	}
	return map[string]any{"item": name, "destination": destination}, nil
}

func (d Deps) gatherStatus(ctx context.Context, args map[string]any) (any, error) {
	return d.Sampler.Gather(ctx, stringArg(args, "kind"))
}

func (d Deps) gatherVptObservation(ctx context.Context, args map[string]any) (any, error) {
	return d.Playback.Observation(d.Nav)
}

func (d Deps) mineOre(ctx context.Context, args map[string]any) (any, error) {
	name := stringArg(args, "ore")
	if name == "" {
		name = stringArg(args, "name")
	}
	result, err := d.Nav.MineOre(ctx, name)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d Deps) setAgentRole(ctx context.Context, args map[string]any) (any, error) {
	requested := stringArg(args, "role")
	status, known := d.Roles.ApplyAgentRoleUpdate(requested,
		stringArg(args, "source"), stringArg(args, "reason"))
	if !known {
		slog.Warn("Unrecognised role requested, falling back",
			"requested", requested, "role", status.Role.ID)
	}
	d.Emitter.Emit("roleUpdate", map[string]any{
		"role":    string(status.Role.ID),
		"label":   status.Role.Label,
		"source":  status.Source,
		"reason":  status.Reason,
		"eventId": status.LastEventID,
	})
	return status, nil
}

func (d Deps) registerSkill(ctx context.Context, args map[string]any) (any, error) {
	skill, err := d.Skills.Register(
		stringArg(args, "id"),
		stringArg(args, "title"),
		stringArg(args, "description"),
		stringsArg(args, "steps"),
		stringsArg(args, "tags"))
	if err != nil {
		return nil, err
	}
	return skill, nil
}

func (d Deps) invokeSkill(ctx context.Context, args map[string]any) (any, error) {
	invokeCtx, _ := args["context"].(map[string]any)
	skill, err := d.Skills.Invoke(stringArg(args, "id"), invokeCtx)
	if err != nil {
		return nil, err
	}
	if c := d.Clients.ActiveClient(); c != nil {
		if err := c.Chat(fmt.Sprintf("Executing skill: %s", skill.Title)); err != nil {
			slog.Warn("Failed to announce skill invocation", "skill", skill.ID, "error", err)
		}
	}
	return map[string]any{"steps": skill.Steps}, nil
}

func (d Deps) skillExplore(ctx context.Context, args map[string]any) (any, error) {
	exploreCtx, _ := args["context"].(map[string]any)
	hint := d.Skills.Explore(stringArg(args, "id"), stringArg(args, "description"), exploreCtx)
	if c := d.Clients.ActiveClient(); c != nil {
		if err := c.Chat(hint); err != nil {
			slog.Warn("Failed to chat exploration hint", "error", err)
		}
	}
	return map[string]any{"hint": hint}, nil
}

func (d Deps) playVptActions(ctx context.Context, args map[string]any) (any, error) {
	result, err := d.Playback.Play(ctx, args["actions"])
	if err != nil {
		return nil, err
	}
	return result, nil
}

func inventoryHas(c game.Client, name string) bool {
	for _, item := range c.Inventory() {
		if item.Name == name {
			return true
		}
	}
	return false
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// numberArg accepts JSON numbers only; anything else (including numeric
// strings) fails the coordinate contract.
func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// stringsArg flattens a JSON string array, skipping non-string entries.
func stringsArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		if direct, ok := args[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
