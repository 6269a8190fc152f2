package sustain

import (
	"context"
	"errors"
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

func (s fixedSource) ActiveClient() game.Client { return s.c }

func testSustainConfig() config.SustainConfig {
	return config.SustainConfig{
		StarvationFoodLevel:   6,
		HungerWarningCooldown: 30 * time.Second,
	}
}

func newMonitor(c *gametest.Client) (*Monitor, *clock.Fake) {
	clk := clock.NewFake()
	var src ClientSource = fixedSource{}
	if c != nil {
		src = fixedSource{c: c}
	}
	m := NewMonitor(testSustainConfig(), clk, src)
	if c != nil {
		m.PopulateFoods(c)
	}
	return m, clk
}

func hungryClient() *gametest.Client {
	c := gametest.NewClient()
	c.Foods = []string{"bread", "cooked_beef", "apple"}
	c.VitalsState.Food = 4
	return c
}

func TestOnHealthIgnoresHealthyFoodLevel(t *testing.T) {
	c := hungryClient()
	c.VitalsState.Food = 12
	m, _ := newMonitor(c)

	assert.False(t, m.OnHealth(context.Background()))
	assert.Empty(t, c.EquipCalls())
	assert.Empty(t, c.Chats())
}

func TestOnHealthEatsAvailableFood(t *testing.T) {
	c := hungryClient()
	c.Items = []game.Item{
		{Slot: 0, Name: "cobblestone", Count: 32},
		{Slot: 1, Name: "bread", DisplayName: "Bread", Count: 2},
	}
	m, _ := newMonitor(c)

	assert.True(t, m.OnHealth(context.Background()))

	require.Len(t, c.EquipCalls(), 1)
	assert.Equal(t, [2]string{"bread", "hand"}, c.EquipCalls()[0])
	assert.Equal(t, 1, c.ConsumeCount())
	require.Len(t, c.Chats(), 1)
	assert.Contains(t, c.Chats()[0], "Bread")
}

func TestOnHealthThresholdBoundary(t *testing.T) {
	c := hungryClient()
	c.Items = []game.Item{{Slot: 0, Name: "bread", Count: 1}}
	m, _ := newMonitor(c)

	// Exactly at the threshold counts as starving.
	c.VitalsState.Food = 6
	assert.True(t, m.OnHealth(context.Background()))

	c.VitalsState.Food = 7
	assert.False(t, m.OnHealth(context.Background()))
}

func TestOnHealthWarnsWithCooldownWhenNoFood(t *testing.T) {
	c := hungryClient()
	m, clk := newMonitor(c)

	m.OnHealth(context.Background())
	require.Len(t, c.Chats(), 1)
	assert.Contains(t, c.Chats()[0], "starving")

	// Within the cooldown: silent.
	clk.Advance(10 * time.Second)
	m.OnHealth(context.Background())
	assert.Len(t, c.Chats(), 1)

	clk.Advance(30 * time.Second)
	m.OnHealth(context.Background())
	assert.Len(t, c.Chats(), 2)
}

func TestOnHealthReleasesConsumingFlagOnFailure(t *testing.T) {
	c := hungryClient()
	c.Items = []game.Item{{Slot: 0, Name: "bread", Count: 1}}
	c.ConsumeErr = errors.New("interrupted")
	m, _ := newMonitor(c)

	assert.False(t, m.OnHealth(context.Background()))

	// The flag was released: a later event with a working client eats.
	c.ConsumeErr = nil
	assert.True(t, m.OnHealth(context.Background()))
	assert.Equal(t, 1, c.ConsumeCount())
}

func TestOnHealthWithoutClient(t *testing.T) {
	m, _ := newMonitor(nil)
	assert.False(t, m.OnHealth(context.Background()))
}

func TestPopulateFoodsReplacesDictionary(t *testing.T) {
	c := hungryClient()
	m, _ := newMonitor(c)

	c.Foods = []string{"golden_carrot"}
	m.PopulateFoods(c)

	c.Items = []game.Item{{Slot: 0, Name: "bread", Count: 1}}
	assert.False(t, m.OnHealth(context.Background()), "bread is no longer in the dictionary")
	require.Len(t, c.Chats(), 1)
	assert.Contains(t, c.Chats()[0], "starving")
}
