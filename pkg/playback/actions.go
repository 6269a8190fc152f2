// Package playback validates and replays tick-quantised VPT control
// sequences and builds the matching single-frame observation.
package playback

import (
	"fmt"
	"math"
)

// Action kinds.
const (
	kindControl = "control"
	kindLook    = "look"
	kindWait    = "wait"
)

var validControls = map[string]bool{
	"forward": true, "back": true, "left": true, "right": true,
	"jump": true, "sprint": true, "sneak": true, "attack": true, "use": true,
}

// Action is one validated playback step.
type Action struct {
	Kind          string
	Control       string
	State         bool
	Yaw           float64
	Pitch         float64
	Relative      bool
	DurationTicks int
}

// ParseActions validates a raw decoded action sequence. maxLen bounds the
// sequence length; durations are rounded to the nearest non-negative tick.
func ParseActions(raw any, maxLen int) ([]Action, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("actions must be an array")
	}
	if len(list) > maxLen {
		return nil, fmt.Errorf("action sequence exceeds maximum length %d", maxLen)
	}

	actions := make([]Action, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action %d is not an object", i)
		}
		kind, _ := obj["kind"].(string)
		if kind == "" {
			return nil, fmt.Errorf("action %d has no kind", i)
		}

		switch kind {
		case kindControl:
			action, err := parseControl(obj)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			actions = append(actions, action)
		case kindLook:
			action, err := parseLook(obj)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			actions = append(actions, action)
		case kindWait:
			ticks, err := requireTicks(obj, "durationTicks")
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			actions = append(actions, Action{Kind: kindWait, DurationTicks: ticks})
		default:
			return nil, fmt.Errorf("action %d has unknown kind %q", i, kind)
		}
	}
	return actions, nil
}

func parseControl(obj map[string]any) (Action, error) {
	control, _ := obj["control"].(string)
	if !validControls[control] {
		return Action{}, fmt.Errorf("unknown control %q", control)
	}
	state, ok := obj["state"].(bool)
	if !ok {
		return Action{}, fmt.Errorf("control state must be a boolean")
	}
	ticks, err := requireTicks(obj, "durationTicks")
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: kindControl, Control: control, State: state, DurationTicks: ticks}, nil
}

func parseLook(obj map[string]any) (Action, error) {
	yaw, ok := asFinite(obj["yaw"])
	if !ok {
		return Action{}, fmt.Errorf("look yaw must be a finite number")
	}
	pitch := 0.0
	if raw, present := obj["pitch"]; present {
		pitch, ok = asFinite(raw)
		if !ok {
			return Action{}, fmt.Errorf("look pitch must be a finite number")
		}
	}
	relative, _ := obj["relative"].(bool)

	ticks := 0
	if _, present := obj["durationTicks"]; present {
		var err error
		ticks, err = requireTicks(obj, "durationTicks")
		if err != nil {
			return Action{}, err
		}
	}
	return Action{Kind: kindLook, Yaw: yaw, Pitch: pitch, Relative: relative, DurationTicks: ticks}, nil
}

// requireTicks reads a duration field, rounding to the nearest tick and
// rejecting negatives.
func requireTicks(obj map[string]any, field string) (int, error) {
	value, ok := asFinite(obj[field])
	if !ok {
		return 0, fmt.Errorf("%s must be a finite number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return int(math.Round(value)), nil
}

func asFinite(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
