// Package game defines the interface to the low-level game-protocol client
// and owns its lifecycle: a supervisor that keeps at most one client alive,
// reconnects after connection loss, and tracks the agent's assigned role.
//
// The protocol client itself is an external collaborator. Implementations
// register a Factory at program init (the way database drivers register
// themselves); the runtime core only ever talks to the Client interface.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
)

// Pathfinding sentinels. Clients should wrap their library's failures in
// these so callers can classify without string matching; callers still fall
// back to substring checks for clients that do not.
var (
	// ErrNoPath reports that no route to the goal exists under the active
	// movement profile.
	ErrNoPath = errors.New("no path to the goal")
	// ErrGoalChanged reports that the goal was invalidated mid-walk, which
	// happens when the server force-corrects the entity position.
	ErrGoalChanged = errors.New("goal was changed")
)

// Vec3 is a world coordinate.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Floored returns the integer block coordinate containing the point.
func (v Vec3) Floored() (int, int, int) {
	return floorInt(v.X), floorInt(v.Y), floorInt(v.Z)
}

func floorInt(f float64) int {
	i := int(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return i
}

// Block is a world block sample.
type Block struct {
	Name     string
	Position Vec3
	Liquid   bool
	Empty    bool
}

// WorldEntity is another entity observed in the world.
type WorldEntity struct {
	ID       int
	Name     string
	Kind     string
	Type     string
	Position Vec3
}

// Entity is the agent's own in-world entity state.
type Entity struct {
	Position Vec3
	Velocity Vec3
	Yaw      float64
	Pitch    float64
	OnGround bool
}

// Vitals are the agent's survival stats.
type Vitals struct {
	Health     float64
	MaxHealth  float64
	Food       float64
	Saturation float64
	Oxygen     float64
}

// Item is an inventory stack. Durability is nil for items without one.
type Item struct {
	Slot         int
	Name         string
	DisplayName  string
	Count        int
	Enchantments []string
	Durability   *int
}

// TimeState is the in-game clock.
type TimeState struct {
	Age       int64
	Day       int64
	TimeOfDay int64
}

// WeatherState is the current weather sample.
type WeatherState struct {
	Raining      bool
	RainLevel    float64
	ThunderLevel float64
}

// Goal is a goal-near pathfinding target.
type Goal struct {
	X         float64
	Y         float64
	Z         float64
	Tolerance float64
}

// Movements is a pathfinding movement profile.
type Movements struct {
	CanDig         bool
	DigCost        float64
	AllowParkour   bool
	AllowSprinting bool
}

// Pathfinder is the path-planning capability loaded onto a client.
type Pathfinder interface {
	// Movements returns the active profile.
	Movements() Movements
	// SetMovements swaps the active profile.
	SetMovements(m Movements)
	// Goto walks to the goal, blocking until arrival or failure.
	Goto(ctx context.Context, goal Goal) error
	// Stop aborts any in-flight walk.
	Stop()
}

// Hooks are the client event callbacks. Any hook may be nil.
type Hooks struct {
	// OnSpawn fires when the spawn sequence completes and the entity is
	// materialised. Also fires after respawns.
	OnSpawn func()
	// OnHealth fires when health or food changes.
	OnHealth func()
	// OnMove fires when the entity position changes.
	OnMove func()
	// OnForcedMove fires when the server force-corrects the entity position.
	OnForcedMove func()
	// OnChat fires for chat messages from other participants.
	OnChat func(username, message string)
	// OnEnd fires once when the connection is lost, with the loss signal
	// (connection_error, kicked, ended).
	OnEnd func(reason string)
}

// Options configure a new protocol client.
type Options struct {
	Host     string
	Port     int
	Username string
	AuthMode config.AuthMode
	// Version pins the protocol version; empty means auto-negotiate.
	Version string
	// Patches override packet shape definitions, keyed by version.
	Patches map[string]map[string]any
	Hooks   Hooks
}

// Client is the game-protocol connection. Implementations are external;
// the runtime core serialises all mutating calls through handler context.
type Client interface {
	// Chat sends a chat message.
	Chat(message string) error

	// Entity returns the agent's entity state, or nil before spawn.
	Entity() *Entity
	// Vitals returns current survival stats.
	Vitals() Vitals
	// GameMode returns the current game mode (survival, creative,
	// adventure, spectator).
	GameMode() string
	// Dimension returns the current dimension name.
	Dimension() string

	// Inventory lists occupied inventory stacks.
	Inventory() []Item
	// InventorySlots reports total slot capacity.
	InventorySlots() int
	// Hotbar returns the 9 hotbar stacks; empty slots are zero-valued.
	Hotbar() [9]Item
	// HeldItem returns the main-hand stack, or nil when empty.
	HeldItem() *Item
	// Equip moves the named item to the given destination (e.g. "hand").
	Equip(name, destination string) error
	// Consume eats or drinks the held item, blocking until finished.
	Consume(ctx context.Context) error
	// FoodNames lists canonical names of edible items from game data.
	FoodNames() []string

	// BlockAt samples the block at a position, or nil when unloaded.
	BlockAt(pos Vec3) *Block
	// LightAt reads sky and block light at a position; ok is false when
	// lighting data is unavailable.
	LightAt(pos Vec3) (sky, block int, ok bool)
	// FindBlocks locates up to count blocks matching any of the names
	// within maxDistance, nearest first.
	FindBlocks(names []string, maxDistance float64, count int) []Vec3
	// Entities lists all other entities currently loaded.
	Entities() []WorldEntity
	// Time returns the in-game clock.
	Time() TimeState
	// Weather returns the current weather.
	Weather() WeatherState

	// SetControl presses or releases a control state (forward, jump, ...).
	SetControl(control string, state bool) error
	// ClearControls releases every control state.
	ClearControls()
	// Look turns to absolute yaw/pitch in radians, blocking until the
	// turn completes.
	Look(ctx context.Context, yaw, pitch float64) error

	// Dig breaks the block at the position, blocking until broken.
	Dig(ctx context.Context, pos Vec3) error

	// Pathfinder returns the path-planning capability.
	Pathfinder() Pathfinder

	// Close tears the connection down.
	Close() error
}

// Factory creates protocol clients. Exactly one implementation registers
// itself via SetFactory before the supervisor starts.
type Factory func(opts Options) (Client, error)

var (
	factoryMu sync.RWMutex
	factory   Factory
)

// SetFactory installs the protocol client implementation. Calling it twice
// panics: two client implementations cannot coexist.
func SetFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if factory != nil {
		panic("game: client factory already registered")
	}
	factory = f
}

func newClient(opts Options) (Client, error) {
	factoryMu.RLock()
	f := factory
	factoryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("game: no client factory registered")
	}
	return f(opts)
}

// resetFactory clears the registered factory. Test use only.
func resetFactory() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factory = nil
}
