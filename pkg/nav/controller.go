// Package nav orchestrates path-finding: goal tolerances, the dual movement
// profiles (cautious and dig-permissive), retry on server-forced position
// corrections, and the ore-mining routine built on top of them.
package nav

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// Wire-visible failures. The messages travel verbatim in command responses.
var (
	ErrInvalidCoordinates = errors.New("Invalid coordinates")
	ErrNotConnected       = errors.New("Bot is not connected to the Minecraft server yet")
	ErrPathfindingFailed  = errors.New("Pathfinding failed")
)

// forcedMoveLogInterval rate-limits forced-move log lines.
const forcedMoveLogInterval = time.Second

// ClientSource supplies the active game client, nil when not ready.
type ClientSource interface {
	ActiveClient() game.Client
}

// Controller owns movement profiles and the moveTo algorithm. Profiles are
// computed once per spawn and immutable afterwards.
type Controller struct {
	move config.MoveConfig
	path config.PathfinderConfig
	fm   config.ForcedMoveConfig
	clk  clock.Clock
	src  ClientSource

	mu               sync.Mutex
	cautious         *game.Movements
	digPermissive    *game.Movements
	lastForcedMoveAt time.Time
	lastForcedLogAt  time.Time
	lastTarget       *game.Vec3
}

// New builds a Controller. InitProfiles must run at spawn before MoveTo can
// use the fallback profile.
func New(move config.MoveConfig, path config.PathfinderConfig, fm config.ForcedMoveConfig, clk clock.Clock, src ClientSource) *Controller {
	return &Controller{move: move, path: path, fm: fm, clk: clk, src: src}
}

// InitProfiles derives both movement profiles from the client's current
// pathfinder settings. Cautious never digs and inflates dig cost; the
// dig-permissive fallback digs at the configured cost. Both share the
// parkour and sprint settings.
func (n *Controller) InitProfiles(c game.Client) {
	current := c.Pathfinder().Movements()

	cautious := game.Movements{
		CanDig:         false,
		DigCost:        math.Max(current.DigCost, float64(n.path.DigCostDisabled)),
		AllowParkour:   n.path.AllowParkour,
		AllowSprinting: n.path.AllowSprinting,
	}
	digging := game.Movements{
		CanDig:         true,
		DigCost:        float64(n.path.DigCostEnabled),
		AllowParkour:   n.path.AllowParkour,
		AllowSprinting: n.path.AllowSprinting,
	}

	n.mu.Lock()
	n.cautious = &cautious
	n.digPermissive = &digging
	n.mu.Unlock()

	c.Pathfinder().SetMovements(cautious)
	slog.Info("Movement profiles initialised",
		"dig_cost_disabled", cautious.DigCost, "dig_cost_enabled", digging.DigCost,
		"parkour", n.path.AllowParkour, "sprint", n.path.AllowSprinting)
}

// ProfilesInitialized reports whether InitProfiles has run this spawn.
func (n *Controller) ProfilesInitialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.digPermissive != nil
}

// DigPermissive returns the fallback profile when initialised.
func (n *Controller) DigPermissive() (game.Movements, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.digPermissive == nil {
		return game.Movements{}, false
	}
	return *n.digPermissive, true
}

// RecordForcedMove stamps a server-forced position correction. Repeated
// corrections within a second are stamped but not re-logged.
func (n *Controller) RecordForcedMove() {
	now := n.clk.Now()
	n.mu.Lock()
	n.lastForcedMoveAt = now
	shouldLog := now.Sub(n.lastForcedLogAt) >= forcedMoveLogInterval
	if shouldLog {
		n.lastForcedLogAt = now
	}
	n.mu.Unlock()
	if shouldLog {
		slog.Info("Server corrected agent position")
	}
}

// LastTarget returns the most recent moveTo target, used for navigation
// hints, and whether one exists.
func (n *Controller) LastTarget() (game.Vec3, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastTarget == nil {
		return game.Vec3{}, false
	}
	return *n.lastTarget, true
}

// MoveTo walks to (x, y, z). Cautious profile first; forced-move failures
// retry within the configured window; a no-path failure gets one shot with
// the dig-permissive profile. The profile active before the call is
// restored afterwards.
func (n *Controller) MoveTo(ctx context.Context, x, y, z float64) error {
	if !finite(x) || !finite(y) || !finite(z) {
		return ErrInvalidCoordinates
	}
	c := n.src.ActiveClient()
	if c == nil {
		return ErrNotConnected
	}

	target := game.Vec3{X: x, Y: y, Z: z}
	n.mu.Lock()
	n.lastTarget = &target
	cautious := n.cautious
	digging := n.digPermissive
	n.mu.Unlock()

	goal := game.Goal{X: x, Y: y, Z: z, Tolerance: n.resolveTolerance(c, y)}

	pf := c.Pathfinder()
	before := pf.Movements()
	defer pf.SetMovements(before)

	profile := before
	if cautious != nil {
		profile = *cautious
	}
	attempts := 0
	triedFallback := false
	for {
		pf.SetMovements(profile)
		err := pf.Goto(ctx, goal)
		if err == nil {
			return nil
		}

		if n.isForcedMoveCorrection(err) && attempts < n.fm.MaxRetries {
			attempts++
			slog.Info("Retrying navigation after forced move",
				"attempt", attempts, "max", n.fm.MaxRetries)
			if sleepErr := n.clk.Sleep(ctx, n.fm.RetryDelay); sleepErr != nil {
				return ErrPathfindingFailed
			}
			continue
		}
		if isNoPath(err) && !triedFallback && digging != nil {
			triedFallback = true
			profile = *digging
			slog.Info("No path with cautious profile; retrying with digging enabled",
				"target", []float64{x, y, z})
			continue
		}

		slog.Warn("Navigation failed", "target", []float64{x, y, z},
			"attempts", attempts, "error", err)
		return ErrPathfindingFailed
	}
}

// resolveTolerance tightens the goal tolerance to one block when the
// vertical gap to the target exceeds two blocks.
func (n *Controller) resolveTolerance(c game.Client, targetY float64) float64 {
	tolerance := float64(n.move.GoalTolerance)
	if entity := c.Entity(); entity != nil {
		if math.Abs(entity.Position.Y-targetY) > 2 {
			tolerance = math.Max(1, math.Min(tolerance, 1))
		}
	}
	return tolerance
}

// isForcedMoveCorrection classifies a goto failure as a server-forced goal
// change inside the retry window. Sentinel match first, error-text match as
// fallback for clients that do not wrap the sentinel.
func (n *Controller) isForcedMoveCorrection(err error) bool {
	goalChanged := errors.Is(err, game.ErrGoalChanged)
	if !goalChanged {
		text := strings.ToLower(err.Error())
		goalChanged = strings.Contains(text, "goalchanged") ||
			strings.Contains(text, "goal was changed") ||
			strings.Contains(text, "goal changed")
	}
	if !goalChanged {
		return false
	}
	n.mu.Lock()
	last := n.lastForcedMoveAt
	n.mu.Unlock()
	return !last.IsZero() && n.clk.Now().Sub(last) <= n.fm.RetryWindow
}

func isNoPath(err error) bool {
	if errors.Is(err, game.ErrNoPath) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no path")
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
