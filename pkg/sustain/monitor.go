// Package sustain keeps the agent alive: it watches health events for
// starvation and eats whatever edible item the inventory holds.
package sustain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// ClientSource supplies the active game client, nil when not ready.
type ClientSource interface {
	ActiveClient() game.Client
}

// Monitor reacts to health events. When the food level drops to the
// starvation threshold it eats the first edible inventory item, or chats a
// cooldown-gated warning when none exists.
type Monitor struct {
	cfg config.SustainConfig
	clk clock.Clock
	src ClientSource

	mu            sync.Mutex
	consuming     bool
	lastWarningAt time.Time
	foods         map[string]bool
}

// NewMonitor builds a Monitor. PopulateFoods must run at spawn before the
// monitor can find anything edible.
func NewMonitor(cfg config.SustainConfig, clk clock.Clock, src ClientSource) *Monitor {
	return &Monitor{cfg: cfg, clk: clk, src: src, foods: make(map[string]bool)}
}

// PopulateFoods fills the food dictionary from the client's game data.
func (m *Monitor) PopulateFoods(c game.Client) {
	names := c.FoodNames()
	foods := make(map[string]bool, len(names))
	for _, name := range names {
		foods[name] = true
	}
	m.mu.Lock()
	m.foods = foods
	m.mu.Unlock()
	slog.Info("Food dictionary populated", "items", len(foods))
}

// OnHealth handles one health event. Returns whether a consumption was
// attempted (for tests; callers may ignore it).
func (m *Monitor) OnHealth(ctx context.Context) bool {
	c := m.src.ActiveClient()
	if c == nil {
		return false
	}
	if c.Vitals().Food > float64(m.cfg.StarvationFoodLevel) {
		return false
	}

	m.mu.Lock()
	if m.consuming {
		m.mu.Unlock()
		return false
	}
	m.consuming = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.consuming = false
		m.mu.Unlock()
	}()

	food := m.findFood(c)
	if food == nil {
		m.warnNoFood(c)
		return false
	}

	if err := c.Equip(food.Name, "hand"); err != nil {
		slog.Warn("Failed to equip food", "item", food.Name, "error", err)
		return false
	}
	if err := c.Consume(ctx); err != nil {
		slog.Warn("Failed to consume food", "item", food.Name, "error", err)
		return false
	}

	label := food.DisplayName
	if label == "" {
		label = food.Name
	}
	if err := c.Chat(fmt.Sprintf("Ate %s to fight off starvation.", label)); err != nil {
		slog.Warn("Failed to announce meal", "error", err)
	}
	slog.Info("Consumed food against starvation", "item", food.Name)
	return true
}

// findFood returns the first inventory stack present in the food dictionary.
func (m *Monitor) findFood(c game.Client) *game.Item {
	m.mu.Lock()
	foods := m.foods
	m.mu.Unlock()
	for _, item := range c.Inventory() {
		if foods[item.Name] {
			found := item
			return &found
		}
	}
	return nil
}

// warnNoFood chats a starvation warning at most once per cooldown.
func (m *Monitor) warnNoFood(c game.Client) {
	now := m.clk.Now()
	m.mu.Lock()
	if !m.lastWarningAt.IsZero() && now.Sub(m.lastWarningAt) < m.cfg.HungerWarningCooldown {
		m.mu.Unlock()
		return
	}
	m.lastWarningAt = now
	m.mu.Unlock()

	if err := c.Chat("I am starving and have nothing to eat!"); err != nil {
		slog.Warn("Failed to send hunger warning", "error", err)
	}
}
