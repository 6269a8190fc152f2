package nav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game/gametest"
)

type fixedSource struct{ c game.Client }

func (s fixedSource) ActiveClient() game.Client {
	if s.c == nil {
		return nil
	}
	return s.c
}

func testConfigs() (config.MoveConfig, config.PathfinderConfig, config.ForcedMoveConfig) {
	return config.MoveConfig{GoalTolerance: 3},
		config.PathfinderConfig{
			AllowParkour:    true,
			AllowSprinting:  true,
			DigCostEnabled:  1,
			DigCostDisabled: 96,
		},
		config.ForcedMoveConfig{
			RetryWindow: 2 * time.Second,
			MaxRetries:  2,
			RetryDelay:  300 * time.Millisecond,
		}
}

func newController(c *gametest.Client) (*Controller, *clock.Fake) {
	move, path, fm := testConfigs()
	clk := clock.NewFake()
	var src ClientSource = fixedSource{}
	if c != nil {
		src = fixedSource{c: c}
	}
	return New(move, path, fm, clk, src), clk
}

func TestInitProfiles(t *testing.T) {
	c := gametest.NewClient()
	c.PF.SetMovements(game.Movements{DigCost: 10})
	n, _ := newController(c)

	require.False(t, n.ProfilesInitialized())
	n.InitProfiles(c)
	require.True(t, n.ProfilesInitialized())

	// Active profile becomes cautious: no digging, inflated dig cost.
	active := c.PF.Movements()
	assert.False(t, active.CanDig)
	assert.Equal(t, 96.0, active.DigCost)
	assert.True(t, active.AllowParkour)
	assert.True(t, active.AllowSprinting)

	digging, ok := n.DigPermissive()
	require.True(t, ok)
	assert.True(t, digging.CanDig)
	assert.Equal(t, 1.0, digging.DigCost)
}

func TestInitProfilesKeepsHigherExistingDigCost(t *testing.T) {
	c := gametest.NewClient()
	c.PF.SetMovements(game.Movements{DigCost: 200})
	n, _ := newController(c)
	n.InitProfiles(c)
	assert.Equal(t, 200.0, c.PF.Movements().DigCost)
}

func TestMoveToRejectsNonFiniteCoordinates(t *testing.T) {
	n, _ := newController(nil)
	for _, coords := range [][3]float64{
		{math.NaN(), 0, 0},
		{0, math.Inf(1), 0},
		{0, 0, math.Inf(-1)},
	} {
		err := n.MoveTo(context.Background(), coords[0], coords[1], coords[2])
		assert.ErrorIs(t, err, ErrInvalidCoordinates)
	}
}

func TestMoveToRequiresActiveClient(t *testing.T) {
	n, _ := newController(nil)
	err := n.MoveTo(context.Background(), 1, 64, 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMoveToToleranceTightening(t *testing.T) {
	tests := []struct {
		name    string
		targetY float64
		want    float64
	}{
		{"level ground keeps configured tolerance", 64, 3},
		{"gap of exactly two keeps configured tolerance", 66, 3},
		{"gap above two tightens to one", 67, 1},
		{"descent above two tightens to one", 60, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := gametest.NewClient()
			c.EntityState.Position = game.Vec3{X: 0.5, Y: 64, Z: 0.5}
			n, _ := newController(c)
			n.InitProfiles(c)

			require.NoError(t, n.MoveTo(context.Background(), 10, tc.targetY, 10))
			assert.Equal(t, tc.want, c.PF.GotoGoal(c.PF.GotoCount()-1).Tolerance)
		})
	}
}

func TestMoveToRetriesForcedMoveWithinWindow(t *testing.T) {
	c := gametest.NewClient()
	calls := 0
	c.PF.GotoFunc = func(game.Goal, game.Movements) error {
		calls++
		if calls <= 2 {
			return game.ErrGoalChanged
		}
		return nil
	}
	n, _ := newController(c)
	n.InitProfiles(c)
	n.RecordForcedMove()

	require.NoError(t, n.MoveTo(context.Background(), 5, 64, 5))
	assert.Equal(t, 3, c.PF.GotoCount())
}

func TestMoveToForcedMoveRetriesAreBounded(t *testing.T) {
	c := gametest.NewClient()
	c.PF.GotoFunc = func(game.Goal, game.Movements) error {
		return fmt.Errorf("goto: %w", game.ErrGoalChanged)
	}
	n, _ := newController(c)
	n.InitProfiles(c)
	n.RecordForcedMove()

	err := n.MoveTo(context.Background(), 5, 64, 5)
	assert.ErrorIs(t, err, ErrPathfindingFailed)
	// Initial attempt plus maxRetries.
	assert.Equal(t, 3, c.PF.GotoCount())
}

func TestMoveToGoalChangeOutsideWindowFails(t *testing.T) {
	c := gametest.NewClient()
	c.PF.GotoFunc = func(game.Goal, game.Movements) error {
		return errors.New("GoalChanged: goal was changed before reaching it")
	}
	n, clk := newController(c)
	n.InitProfiles(c)
	n.RecordForcedMove()
	clk.Advance(5 * time.Second) // past the retry window

	err := n.MoveTo(context.Background(), 5, 64, 5)
	assert.ErrorIs(t, err, ErrPathfindingFailed)
	assert.Equal(t, 1, c.PF.GotoCount())
}

func TestMoveToNoPathFallsBackToDiggingProfile(t *testing.T) {
	c := gametest.NewClient()
	c.PF.GotoFunc = func(_ game.Goal, m game.Movements) error {
		if !m.CanDig {
			return game.ErrNoPath
		}
		return nil
	}
	n, _ := newController(c)
	n.InitProfiles(c)

	require.NoError(t, n.MoveTo(context.Background(), 5, 64, 5))
	require.Equal(t, 2, c.PF.GotoCount())
	assert.False(t, c.PF.GotoMovements(0).CanDig)
	assert.True(t, c.PF.GotoMovements(1).CanDig)

	// The profile active before the call is restored afterwards.
	assert.False(t, c.PF.Movements().CanDig)
}

func TestMoveToNoPathWithoutProfilesFails(t *testing.T) {
	c := gametest.NewClient()
	c.PF.GotoFunc = func(game.Goal, game.Movements) error {
		return errors.New("NoPath: no path to the goal!")
	}
	n, _ := newController(c)
	// InitProfiles deliberately not called.

	err := n.MoveTo(context.Background(), 5, 64, 5)
	assert.ErrorIs(t, err, ErrPathfindingFailed)
	assert.Equal(t, 1, c.PF.GotoCount())
}

func TestMoveToRecordsLastTarget(t *testing.T) {
	c := gametest.NewClient()
	n, _ := newController(c)
	n.InitProfiles(c)

	_, ok := n.LastTarget()
	assert.False(t, ok)

	require.NoError(t, n.MoveTo(context.Background(), 12, 70, -8))
	target, ok := n.LastTarget()
	require.True(t, ok)
	assert.Equal(t, game.Vec3{X: 12, Y: 70, Z: -8}, target)
}
