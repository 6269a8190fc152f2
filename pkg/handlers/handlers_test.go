package handlers

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game/gametest"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/nav"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/perception"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/playback"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/skills"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/telemetry"
)

type fixedSource struct{ c game.Client }

func (s fixedSource) ActiveClient() game.Client { return s.c }

type recordEmitter struct {
	events []string
	last   map[string]any
}

func (e *recordEmitter) Emit(event string, payload map[string]any) {
	e.events = append(e.events, event)
	e.last = payload
}

type fixedQueue struct{ size int }

func (q fixedQueue) QueueSize() int { return q.size }

// newDeps wires real components around a fake client (nil for the
// disconnected case).
func newDeps(t *testing.T, c *gametest.Client) (Deps, *recordEmitter) {
	t.Helper()
	clk := clock.NewFake()
	var src ClientSource = fixedSource{}
	if c != nil {
		src = fixedSource{c: c}
	}

	supervisor := game.NewSupervisor(config.GameConfig{
		Username:       "agent",
		AuthMode:       config.AuthOffline,
		ReconnectDelay: 5 * time.Second,
	}, clk, nil)

	navCtl := nav.New(
		config.MoveConfig{GoalTolerance: 3},
		config.PathfinderConfig{AllowParkour: true, AllowSprinting: true, DigCostEnabled: 1, DigCostDisabled: 96},
		config.ForcedMoveConfig{RetryWindow: 2 * time.Second, MaxRetries: 2, RetryDelay: 300 * time.Millisecond},
		clk, src)
	if c != nil {
		navCtl.InitProfiles(c)
	}

	emitter := &recordEmitter{}
	sampler := perception.NewSampler(
		config.PerceptionConfig{EntityRadius: 12, BlockRadius: 2, BlockHeight: 1, BroadcastInterval: 1500 * time.Millisecond},
		clk, telemetry.Noop(), src, supervisor, navCtl, fixedQueue{size: 0}, emitter)

	engine := playback.NewEngine(
		config.VPTConfig{ControlMode: config.ControlModeHybrid, TickInterval: 50 * time.Millisecond, MaxSequenceLength: 240},
		clk, src)

	logger := skills.NewLogger(filepath.Join(t.TempDir(), "history.ndjson"), clk)
	logger.SetOutput(&bytes.Buffer{})
	t.Cleanup(logger.Close)
	registry := skills.NewRegistry(clk, logger)

	return Deps{
		Clients:  src,
		Roles:    supervisor,
		Nav:      navCtl,
		Sampler:  sampler,
		Playback: engine,
		Skills:   registry,
		Emitter:  emitter,
	}, emitter
}

func TestChatSendsText(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	data, err := d.chat(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, []string{"hello"}, c.Chats())
}

func TestChatRequiresClient(t *testing.T) {
	d, _ := newDeps(t, nil)

	_, err := d.chat(context.Background(), map[string]any{"text": "hello"})
	require.Error(t, err)
	assert.Equal(t, "Bot is not connected to the Minecraft server yet", err.Error())
}

func TestChatRequiresText(t *testing.T) {
	d, _ := newDeps(t, gametest.NewClient())

	_, err := d.chat(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestMoveToRejectsNonNumericCoordinates(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	_, err := d.moveTo(context.Background(), map[string]any{"x": "nan", "y": 2.0, "z": 3.0})
	require.Error(t, err)
	assert.Equal(t, "Invalid coordinates", err.Error())

	// The target must not be recorded and the client never touched.
	_, ok := d.Nav.LastTarget()
	assert.False(t, ok)
	assert.Zero(t, c.PF.GotoCount())
}

func TestMoveToWithoutClient(t *testing.T) {
	d, _ := newDeps(t, nil)

	_, err := d.moveTo(context.Background(), map[string]any{"x": 10.0, "y": 64.0, "z": 10.0})
	require.Error(t, err)
	assert.Equal(t, "Bot is not connected to the Minecraft server yet", err.Error())
}

func TestMoveToReachesGoal(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	_, err := d.moveTo(context.Background(), map[string]any{"x": 10.0, "y": 64.0, "z": -5.0})
	require.NoError(t, err)
	require.Equal(t, 1, c.PF.GotoCount())
	assert.Equal(t, game.Goal{X: 10, Y: 64, Z: -5, Tolerance: 3}, c.PF.GotoGoal(0))
}

func TestEquipItemMissingFromInventory(t *testing.T) {
	c := gametest.NewClient()
	c.Items = []game.Item{{Slot: 0, Name: "cobblestone", Count: 12}}
	d, _ := newDeps(t, c)

	_, err := d.equipItem(context.Background(), map[string]any{"item": "diamond_sword"})
	require.Error(t, err)
	assert.Equal(t, "Item not found in inventory: diamond_sword", err.Error())
	assert.Empty(t, c.EquipCalls())
}

func TestEquipItemDefaultsToHand(t *testing.T) {
	c := gametest.NewClient()
	c.Items = []game.Item{{Slot: 0, Name: "iron_pickaxe", Count: 1}}
	d, _ := newDeps(t, c)

	data, err := d.equipItem(context.Background(), map[string]any{"item": "iron_pickaxe"})
	require.NoError(t, err)
	require.Len(t, c.EquipCalls(), 1)
	assert.Equal(t, [2]string{"iron_pickaxe", "hand"}, c.EquipCalls()[0])
	assert.Equal(t, map[string]any{"item": "iron_pickaxe", "destination": "hand"}, data)
}

func TestGatherStatusPosition(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	data, err := d.gatherStatus(context.Background(), map[string]any{"kind": "position"})
	require.NoError(t, err)
	got, ok := data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, got["x"])
	assert.Equal(t, 64, got["y"])
}

func TestGatherStatusUnknownKind(t *testing.T) {
	d, _ := newDeps(t, gametest.NewClient())

	_, err := d.gatherStatus(context.Background(), map[string]any{"kind": "dreams"})
	require.Error(t, err)
}

func TestGatherVptObservation(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	data, err := d.gatherVptObservation(context.Background(), nil)
	require.NoError(t, err)
	obs, ok := data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, obs, "position")
	assert.Contains(t, obs, "hotbar")
}

func TestMineOreUnknownName(t *testing.T) {
	d, _ := newDeps(t, gametest.NewClient())

	_, err := d.mineOre(context.Background(), map[string]any{"ore": "mithril"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known ores")
}

func TestSetAgentRoleEmitsRoleUpdate(t *testing.T) {
	d, emitter := newDeps(t, gametest.NewClient())

	data, err := d.setAgentRole(context.Background(),
		map[string]any{"role": "defender", "source": "planner", "reason": "raid incoming"})
	require.NoError(t, err)

	status, ok := data.(game.RoleStatus)
	require.True(t, ok)
	assert.Equal(t, game.RoleDefender, status.Role.ID)
	assert.Equal(t, "planner", status.Source)
	assert.NotEmpty(t, status.LastEventID)

	require.Equal(t, []string{"roleUpdate"}, emitter.events)
	assert.Equal(t, "defender", emitter.last["role"])
	assert.Equal(t, "raid incoming", emitter.last["reason"])
}

func TestSetAgentRoleUnknownFallsBack(t *testing.T) {
	d, emitter := newDeps(t, gametest.NewClient())

	data, err := d.setAgentRole(context.Background(), map[string]any{"role": "necromancer"})
	require.NoError(t, err)
	status := data.(game.RoleStatus)
	assert.Equal(t, game.RoleGeneralist, status.Role.ID)
	assert.Equal(t, "generalist", emitter.last["role"])
}

func TestRegisterAndInvokeSkill(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	_, err := d.registerSkill(context.Background(), map[string]any{
		"id":          "mine-iron",
		"title":       "Mine iron",
		"description": "Find and mine iron ore",
		"steps":       []any{"locate ore", "dig"},
		"tags":        []any{"mining"},
	})
	require.NoError(t, err)

	data, err := d.invokeSkill(context.Background(), map[string]any{"id": "mine-iron"})
	require.NoError(t, err)
	got := data.(map[string]any)
	assert.Equal(t, []string{"locate ore", "dig"}, got["steps"])

	require.Len(t, c.Chats(), 1)
	assert.Contains(t, c.Chats()[0], "Mine iron")
}

func TestInvokeUnknownSkill(t *testing.T) {
	d, _ := newDeps(t, gametest.NewClient())

	_, err := d.invokeSkill(context.Background(), map[string]any{"id": "absent"})
	require.Error(t, err)
}

func TestSkillExploreChatsHint(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	data, err := d.skillExplore(context.Background(), map[string]any{
		"id":          "bridge-building",
		"description": "span a ravine safely",
	})
	require.NoError(t, err)
	got := data.(map[string]any)
	hint, _ := got["hint"].(string)
	assert.Contains(t, hint, "bridge-building")
	require.Len(t, c.Chats(), 1)
	assert.Equal(t, hint, c.Chats()[0])
}

func TestPlayVptActions(t *testing.T) {
	c := gametest.NewClient()
	d, _ := newDeps(t, c)

	data, err := d.playVptActions(context.Background(), map[string]any{
		"actions": []any{
			map[string]any{"kind": "wait", "durationTicks": 2.0},
		},
	})
	require.NoError(t, err)
	result, ok := data.(*playback.Result)
	require.True(t, ok)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 2, result.Ticks)
}
