package playback

import (
	"math"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// NavHints supplies the last recorded movement target for the navigation
// hint in observations.
type NavHints interface {
	LastTarget() (game.Vec3, bool)
}

// Observation builds the single-frame VPT observation for the active
// client. nav may be nil; the navigation hint is then omitted.
func (e *Engine) Observation(nav NavHints) (map[string]any, error) {
	c := e.src.ActiveClient()
	if c == nil {
		return nil, ErrNotConnected
	}
	entity := c.Entity()
	if entity == nil {
		return nil, ErrNotConnected
	}

	vitals := c.Vitals()
	obs := map[string]any{
		"position": map[string]any{
			"x": entity.Position.X,
			"y": entity.Position.Y,
			"z": entity.Position.Z,
		},
		"velocity": map[string]any{
			"x": entity.Velocity.X,
			"y": entity.Velocity.Y,
			"z": entity.Velocity.Z,
		},
		"yawDegrees":   degrees(entity.Yaw),
		"pitchDegrees": degrees(entity.Pitch),
		"health":       math.Round(vitals.Health),
		"food":         math.Round(vitals.Food),
		"saturation":   math.Round(vitals.Saturation),
		"onGround":     entity.OnGround,
		"hotbar":       hotbarSlots(c),
		"heldItem":     heldItemLabel(c),
		"timestamp":    e.clk.Now().UnixMilli(),
		"tickAge":      c.Time().Age,
		"dimension":    c.Dimension(),
	}

	if nav != nil {
		if target, ok := nav.LastTarget(); ok {
			obs["navigationHint"] = navigationHint(entity.Position, target)
		}
	}
	return obs, nil
}

// hotbarSlots reports all 9 hotbar slots; empty slots carry a zero count.
func hotbarSlots(c game.Client) []map[string]any {
	hotbar := c.Hotbar()
	slots := make([]map[string]any, len(hotbar))
	for i, item := range hotbar {
		slot := map[string]any{"slot": i, "count": item.Count}
		if item.Count > 0 {
			slot["name"] = item.Name
			slot["displayName"] = item.DisplayName
		}
		slots[i] = slot
	}
	return slots
}

func heldItemLabel(c game.Client) string {
	held := c.HeldItem()
	if held == nil {
		return ""
	}
	if held.DisplayName != "" {
		return held.DisplayName
	}
	return held.Name
}

// navigationHint reports how the last movement target relates to the
// current position: the yaw to face it, the horizontal distance, and the
// vertical offset.
func navigationHint(from, target game.Vec3) map[string]any {
	dx := target.X - from.X
	dz := target.Z - from.Z
	return map[string]any{
		"targetYawDegrees":   degrees(math.Atan2(-dx, dz)),
		"horizontalDistance": math.Round(math.Sqrt(dx*dx+dz*dz)*10) / 10,
		"verticalOffset":     math.Round((target.Y-from.Y)*10) / 10,
	}
}

func degrees(rad float64) float64 {
	return math.Round(rad*180/math.Pi*10) / 10
}
