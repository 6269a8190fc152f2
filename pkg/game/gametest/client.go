// Package gametest provides an in-memory game.Client for tests. Fields are
// plain state that tests mutate directly; mutating calls are recorded.
package gametest

import (
	"context"
	"fmt"
	"sync"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// Pathfinder is a recording game.Pathfinder. Goto behaviour is scripted via
// GotoFunc; when nil every walk succeeds.
type Pathfinder struct {
	mu        sync.Mutex
	movements game.Movements
	gotoCalls []gotoCall
	stopCalls int

	// GotoFunc, when set, decides the outcome of each Goto call.
	GotoFunc func(goal game.Goal, m game.Movements) error
}

type gotoCall struct {
	Goal      game.Goal
	Movements game.Movements
}

func (p *Pathfinder) Movements() game.Movements {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.movements
}

func (p *Pathfinder) SetMovements(m game.Movements) {
	p.mu.Lock()
	p.movements = m
	p.mu.Unlock()
}

func (p *Pathfinder) Goto(_ context.Context, goal game.Goal) error {
	p.mu.Lock()
	m := p.movements
	p.gotoCalls = append(p.gotoCalls, gotoCall{Goal: goal, Movements: m})
	fn := p.GotoFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(goal, m)
	}
	return nil
}

func (p *Pathfinder) Stop() {
	p.mu.Lock()
	p.stopCalls++
	p.mu.Unlock()
}

// GotoCount reports how many walks were attempted.
func (p *Pathfinder) GotoCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.gotoCalls)
}

// GotoGoal returns the goal of the i-th Goto call.
func (p *Pathfinder) GotoGoal(i int) game.Goal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotoCalls[i].Goal
}

// GotoMovements returns the profile active during the i-th Goto call.
func (p *Pathfinder) GotoMovements(i int) game.Movements {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotoCalls[i].Movements
}

// StopCount reports how many times Stop was called.
func (p *Pathfinder) StopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

// Client is a fake game.Client. Zero value is a spawned survival-mode
// client standing at the origin of the overworld.
type Client struct {
	mu sync.Mutex

	EntityState  *game.Entity
	VitalsState  game.Vitals
	Mode         string
	Dim          string
	Items        []game.Item
	SlotCount    int
	HotbarItems  [9]game.Item
	Held         *game.Item
	Foods        []string
	Blocks       map[[3]int]*game.Block
	SkyLight     int
	BlockLight   int
	LightOK      bool
	World        []game.WorldEntity
	TimeState    game.TimeState
	WeatherState game.WeatherState
	FoundBlocks  []game.Vec3

	EquipErr   error
	ConsumeErr error
	DigErr     error
	ChatErr    error

	PF *Pathfinder

	chats      []string
	controls   map[string]bool
	controlLog []string
	lookCalls  [][2]float64
	equipCalls [][2]string
	consumed   int
	digCalls   []game.Vec3
	closed     bool
}

// NewClient returns a spawned client with sane defaults.
func NewClient() *Client {
	return &Client{
		EntityState: &game.Entity{Position: game.Vec3{X: 0.5, Y: 64, Z: 0.5}, OnGround: true},
		VitalsState: game.Vitals{Health: 20, MaxHealth: 20, Food: 20, Saturation: 5, Oxygen: 20},
		Mode:        "survival",
		Dim:         "minecraft:overworld",
		SlotCount:   36,
		LightOK:     true,
		SkyLight:    15,
		BlockLight:  15,
		PF:          &Pathfinder{},
	}
}

func (c *Client) Chat(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ChatErr != nil {
		return c.ChatErr
	}
	c.chats = append(c.chats, message)
	return nil
}

// Chats returns every chat message sent.
func (c *Client) Chats() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chats))
	copy(out, c.chats)
	return out
}

func (c *Client) Entity() *game.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.EntityState
}

func (c *Client) Vitals() game.Vitals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.VitalsState
}

func (c *Client) GameMode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Mode
}

func (c *Client) Dimension() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Dim
}

func (c *Client) Inventory() []game.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.Item, len(c.Items))
	copy(out, c.Items)
	return out
}

func (c *Client) InventorySlots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SlotCount == 0 {
		return 36
	}
	return c.SlotCount
}

func (c *Client) Hotbar() [9]game.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.HotbarItems
}

func (c *Client) HeldItem() *game.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Held
}

func (c *Client) Equip(name, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EquipErr != nil {
		return c.EquipErr
	}
	c.equipCalls = append(c.equipCalls, [2]string{name, destination})
	return nil
}

// EquipCalls returns each (name, destination) pair passed to Equip.
func (c *Client) EquipCalls() [][2]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][2]string, len(c.equipCalls))
	copy(out, c.equipCalls)
	return out
}

func (c *Client) Consume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConsumeErr != nil {
		return c.ConsumeErr
	}
	c.consumed++
	return nil
}

// ConsumeCount reports how many successful Consume calls occurred.
func (c *Client) ConsumeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

func (c *Client) FoodNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Foods
}

func (c *Client) BlockAt(pos game.Vec3) *game.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	x, y, z := pos.Floored()
	return c.Blocks[[3]int{x, y, z}]
}

// SetBlock places a block in the fake world at integer coordinates.
func (c *Client) SetBlock(x, y, z int, b game.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Blocks == nil {
		c.Blocks = make(map[[3]int]*game.Block)
	}
	b.Position = game.Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
	c.Blocks[[3]int{x, y, z}] = &b
}

func (c *Client) LightAt(game.Vec3) (int, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.SkyLight, c.BlockLight, c.LightOK
}

func (c *Client) FindBlocks([]string, float64, int) []game.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.FoundBlocks
}

func (c *Client) Entities() []game.WorldEntity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.WorldEntity, len(c.World))
	copy(out, c.World)
	return out
}

func (c *Client) Time() game.TimeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TimeState
}

func (c *Client) Weather() game.WeatherState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WeatherState
}

func (c *Client) SetControl(control string, state bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controls == nil {
		c.controls = make(map[string]bool)
	}
	c.controls[control] = state
	c.controlLog = append(c.controlLog, fmt.Sprintf("%s=%t", control, state))
	return nil
}

// ControlState reports the current state of one control.
func (c *Client) ControlState(control string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls[control]
}

// ControlLog returns every SetControl call as "control=state" strings.
func (c *Client) ControlLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.controlLog))
	copy(out, c.controlLog)
	return out
}

func (c *Client) ClearControls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = nil
	c.controlLog = append(c.controlLog, "clear")
}

func (c *Client) Look(_ context.Context, yaw, pitch float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookCalls = append(c.lookCalls, [2]float64{yaw, pitch})
	if c.EntityState != nil {
		c.EntityState.Yaw = yaw
		c.EntityState.Pitch = pitch
	}
	return nil
}

// LookCalls returns each (yaw, pitch) pair passed to Look.
func (c *Client) LookCalls() [][2]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][2]float64, len(c.lookCalls))
	copy(out, c.lookCalls)
	return out
}

func (c *Client) Dig(_ context.Context, pos game.Vec3) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DigErr != nil {
		return c.DigErr
	}
	c.digCalls = append(c.digCalls, pos)
	return nil
}

// DigCalls returns the positions passed to Dig.
func (c *Client) DigCalls() []game.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.Vec3, len(c.digCalls))
	copy(out, c.digCalls)
	return out
}

func (c *Client) Pathfinder() game.Pathfinder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PF == nil {
		c.PF = &Pathfinder{}
	}
	return c.PF
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
