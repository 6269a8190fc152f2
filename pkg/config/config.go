// Package config resolves the runtime core's configuration from process
// environment variables. Every numeric option is clamped to its documented
// range, every enum falls back to its default, and each normalisation emits
// a warning so operators can spot misconfigured deployments in the logs.
package config

import "time"

// AuthMode selects how the game-server connection authenticates.
type AuthMode string

const (
	AuthOffline   AuthMode = "offline"
	AuthMicrosoft AuthMode = "microsoft"
)

// ControlMode gates whether VPT action playback is accepted.
type ControlMode string

const (
	// ControlModeCommand accepts command verbs only; playVptActions is rejected.
	ControlModeCommand ControlMode = "command"
	// ControlModeVPT accepts VPT playback sequences.
	ControlModeVPT ControlMode = "vpt"
	// ControlModeHybrid accepts VPT playback while command verbs keep working.
	ControlModeHybrid ControlMode = "hybrid"
)

// Config is the fully normalised runtime configuration.
type Config struct {
	Game       GameConfig
	Router     RouterConfig
	Bridge     BridgeConfig
	Move       MoveConfig
	VPT        VPTConfig
	Perception PerceptionConfig
	Pathfinder PathfinderConfig
	ForcedMove ForcedMoveConfig
	Otel       OtelConfig
	Skills     SkillsConfig
	Sustain    SustainConfig
}

// GameConfig describes the game-server connection and bot identity.
type GameConfig struct {
	Host           string
	Port           int
	Version        string // empty means auto-negotiate
	Username       string
	AuthMode       AuthMode
	ReconnectDelay time.Duration
	PatchesPath    string // optional protocol-patch YAML file
}

// RouterConfig is the command router's bind address.
type RouterConfig struct {
	Host string
	Port int
}

// BridgeConfig tunes the outbound planner session.
type BridgeConfig struct {
	URL                 string
	ConnectTimeout      time.Duration
	SendTimeout         time.Duration
	HealthcheckInterval time.Duration
	ReconnectDelay      time.Duration
	MaxRetries          int
	BatchInterval       time.Duration
	BatchMaxSize        int
	QueueMaxSize        int
}

// MoveConfig holds navigation goal parameters.
type MoveConfig struct {
	GoalTolerance int
}

// VPTConfig tunes the action playback engine.
type VPTConfig struct {
	ControlMode       ControlMode
	TickInterval      time.Duration
	MaxSequenceLength int
}

// PerceptionConfig tunes snapshot construction and broadcast throttling.
type PerceptionConfig struct {
	EntityRadius      int
	BlockRadius       int
	BlockHeight       int
	BroadcastInterval time.Duration
}

// PathfinderConfig holds movement-profile inputs.
type PathfinderConfig struct {
	AllowParkour    bool
	AllowSprinting  bool
	DigCostEnabled  int
	DigCostDisabled int
}

// ForcedMoveConfig bounds the forced-move retry behaviour of moveTo.
type ForcedMoveConfig struct {
	RetryWindow time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OtelConfig describes the OTLP/HTTP telemetry exporter.
type OtelConfig struct {
	Endpoint     string // empty disables export
	ServiceName  string
	Environment  string
	SamplerRatio float64
}

// SkillsConfig locates the append-only skill history log.
type SkillsConfig struct {
	HistoryPath string
}

// SustainConfig tunes the hunger monitor.
type SustainConfig struct {
	StarvationFoodLevel   int
	HungerWarningCooldown time.Duration
}
