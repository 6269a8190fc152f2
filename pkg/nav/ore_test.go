package nav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game/gametest"
)

func TestResolveOre(t *testing.T) {
	blocks, err := resolveOre("Iron")
	require.NoError(t, err)
	assert.Equal(t, []string{"iron_ore", "deepslate_iron_ore"}, blocks)

	blocks, err = resolveOre("deepslate_gold_ore")
	require.NoError(t, err)
	assert.Equal(t, []string{"deepslate_gold_ore"}, blocks)
}

func TestResolveOreUnknownIncludesPartialMatches(t *testing.T) {
	_, err := resolveOre("diam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closest matches")
	assert.Contains(t, err.Error(), "diamond")

	_, err = resolveOre("sand")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known ores")
	assert.Contains(t, err.Error(), "coal")
}

func TestMineOre(t *testing.T) {
	c := gametest.NewClient()
	target := game.Vec3{X: 10, Y: 12, Z: -5}
	c.FoundBlocks = []game.Vec3{target}
	c.SetBlock(10, 12, -5, game.Block{Name: "deepslate_iron_ore"})

	n, _ := newController(c)
	n.InitProfiles(c)

	result, err := n.MineOre(context.Background(), "iron")
	require.NoError(t, err)
	assert.Equal(t, "iron", result.Ore)
	assert.Equal(t, "deepslate_iron_ore", result.Block)
	assert.Equal(t, target, result.Position)

	require.Len(t, c.DigCalls(), 1)
	assert.Equal(t, target, c.DigCalls()[0])
	// The walk targeted the ore block.
	assert.Equal(t, target.X, c.PF.GotoGoal(0).X)
}

func TestMineOreRequiresActiveClient(t *testing.T) {
	n, _ := newController(nil)
	_, err := n.MineOre(context.Background(), "iron")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMineOreRejectsRestrictedGameModes(t *testing.T) {
	c := gametest.NewClient()
	c.Mode = "adventure"
	n, _ := newController(c)
	n.InitProfiles(c)

	_, err := n.MineOre(context.Background(), "iron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adventure")
}

func TestMineOreRequiresDiggingProfile(t *testing.T) {
	c := gametest.NewClient()
	n, _ := newController(c)

	_, err := n.MineOre(context.Background(), "iron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialised")
}

func TestMineOreNoneNearby(t *testing.T) {
	c := gametest.NewClient()
	n, _ := newController(c)
	n.InitProfiles(c)

	_, err := n.MineOre(context.Background(), "diamond")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no diamond found")
}
