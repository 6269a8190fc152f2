package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// containerGatewayAlias is the hostname the planner service is reachable at
// from inside a container network. Loopback planner hosts are rewritten to
// this alias when a container runtime is detected.
const containerGatewayAlias = "python-agent"

// Resolver reads the environment and produces a normalised Config. The
// lookup function and the container-detection paths are injectable so tests
// can exercise the clamping and rewrite rules without touching the process
// environment.
type Resolver struct {
	// Lookup returns the value for an environment key. Defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
	// DockerEnvPath and CgroupPath drive container-runtime detection.
	DockerEnvPath string
	CgroupPath    string

	warnings []string
}

// NewResolver returns a Resolver bound to the process environment.
func NewResolver() *Resolver {
	return &Resolver{
		Lookup:        os.LookupEnv,
		DockerEnvPath: "/.dockerenv",
		CgroupPath:    "/proc/1/cgroup",
	}
}

// Resolve normalises the recognised environment options into a Config and
// returns the warnings accumulated while doing so. Each warning is also
// logged at warn level as it is produced.
func (r *Resolver) Resolve() (*Config, []string) {
	r.warnings = nil

	cfg := &Config{
		Game: GameConfig{
			Host:           r.str("MC_HOST", "127.0.0.1"),
			Port:           r.intRange("MC_PORT", 25565, 1, 65535),
			Version:        r.str("MC_VERSION", ""),
			Username:       r.str("BOT_USERNAME", "AgentBot"),
			AuthMode:       AuthMode(r.enum("AUTH_MODE", string(AuthOffline), []string{string(AuthOffline), string(AuthMicrosoft)})),
			ReconnectDelay: r.durationMS("MC_RECONNECT_DELAY_MS", 5000, 100, 600000),
			PatchesPath:    r.str("PROTOCOL_PATCHES_PATH", ""),
		},
		Router: RouterConfig{
			Host: r.str("WS_HOST", "0.0.0.0"),
			Port: r.intRange("WS_PORT", 8765, 1, 65535),
		},
		Move: MoveConfig{
			GoalTolerance: r.intRange("MOVE_GOAL_TOLERANCE", 3, 1, 30),
		},
		VPT: VPTConfig{
			ControlMode:       ControlMode(r.enum("CONTROL_MODE", string(ControlModeCommand), []string{string(ControlModeCommand), string(ControlModeVPT), string(ControlModeHybrid)})),
			TickInterval:      r.durationMS("VPT_TICK_INTERVAL_MS", 50, 10, 250),
			MaxSequenceLength: r.intRange("VPT_MAX_SEQUENCE_LENGTH", 240, 1, 2000),
		},
		Perception: PerceptionConfig{
			EntityRadius:      r.intRange("PERCEPTION_ENTITY_RADIUS", 12, 1, 64),
			BlockRadius:       r.intRange("PERCEPTION_BLOCK_RADIUS", 4, 1, 16),
			BlockHeight:       r.intRange("PERCEPTION_BLOCK_HEIGHT", 2, 1, 12),
			BroadcastInterval: r.durationMS("PERCEPTION_BROADCAST_INTERVAL_MS", 1500, 250, 30000),
		},
		Pathfinder: PathfinderConfig{
			AllowParkour:    r.boolean("PATHFINDER_ALLOW_PARKOUR", true),
			AllowSprinting:  r.boolean("PATHFINDER_ALLOW_SPRINTING", true),
			DigCostEnabled:  r.intRange("PATHFINDER_DIG_COST_ENABLED", 1, 1, 1000),
			DigCostDisabled: r.intRange("PATHFINDER_DIG_COST_DISABLED", 96, 1, 1000),
		},
		ForcedMove: ForcedMoveConfig{
			RetryWindow: r.durationMS("FORCED_MOVE_RETRY_WINDOW_MS", 2000, 100, 60000),
			MaxRetries:  r.intRange("FORCED_MOVE_MAX_RETRIES", 2, 0, 10),
			RetryDelay:  r.durationMS("FORCED_MOVE_RETRY_DELAY_MS", 300, 10, 10000),
		},
		Otel: OtelConfig{
			Endpoint:     r.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  r.str("OTEL_SERVICE_NAME", "mc-agent-adapter"),
			Environment:  r.str("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),
			SamplerRatio: r.ratio("OTEL_TRACES_SAMPLER_RATIO", 1.0),
		},
		Skills: SkillsConfig{
			HistoryPath: r.str("SKILL_HISTORY_PATH", "var/skills/history.ndjson"),
		},
		Sustain: SustainConfig{
			StarvationFoodLevel:   r.intRange("STARVATION_FOOD_LEVEL", 6, 0, 20),
			HungerWarningCooldown: r.durationMS("HUNGER_WARNING_COOLDOWN_MS", 30000, 1000, 600000),
		},
	}

	cfg.Bridge = r.resolveBridge()

	return cfg, r.warnings
}

// resolveBridge derives the planner endpoint and session tuning. AGENT_WS_URL
// wins outright; otherwise the URL is assembled from host and port, with the
// host default depending on container detection.
func (r *Resolver) resolveBridge() BridgeConfig {
	cfg := BridgeConfig{
		ConnectTimeout:      r.durationMS("AGENT_WS_CONNECT_TIMEOUT_MS", 5000, 100, 60000),
		SendTimeout:         r.durationMS("AGENT_WS_SEND_TIMEOUT_MS", 5000, 100, 60000),
		HealthcheckInterval: r.durationMS("AGENT_WS_HEALTHCHECK_INTERVAL_MS", 15000, 1000, 300000),
		ReconnectDelay:      r.durationMS("AGENT_WS_RECONNECT_DELAY_MS", 3000, 100, 600000),
		MaxRetries:          r.intRange("AGENT_WS_MAX_RETRIES", 2, 0, 10),
		BatchInterval:       r.durationMS("AGENT_EVENT_BATCH_INTERVAL_MS", 250, 10, 60000),
		BatchMaxSize:        r.intRange("AGENT_EVENT_BATCH_MAX_SIZE", 20, 1, 500),
		QueueMaxSize:        r.intRange("AGENT_EVENT_QUEUE_MAX_SIZE", 500, 1, 100000),
	}

	if url, ok := r.Lookup("AGENT_WS_URL"); ok && strings.TrimSpace(url) != "" {
		cfg.URL = strings.TrimSpace(url)
		return cfg
	}

	inContainer := r.detectContainer()
	defaultHost := "127.0.0.1"
	if inContainer {
		defaultHost = containerGatewayAlias
	}

	host := r.str("AGENT_WS_HOST", defaultHost)
	if inContainer && isLoopback(host) {
		r.warnf("AGENT_WS_HOST %q is a loopback address inside a container; rewriting to %q", host, containerGatewayAlias)
		host = containerGatewayAlias
	}
	port := r.intRange("AGENT_WS_PORT", 9000, 1, 65535)

	cfg.URL = fmt.Sprintf("ws://%s:%d", host, port)
	return cfg
}

// detectContainer reports whether the process appears to run inside a
// container: either /.dockerenv exists or the init process's cgroup file
// mentions docker or kubepods.
func (r *Resolver) detectContainer() bool {
	if _, err := os.Stat(r.DockerEnvPath); err == nil {
		return true
	}
	data, err := os.ReadFile(r.CgroupPath)
	if err != nil {
		return false
	}
	s := string(data)
	return strings.Contains(s, "docker") || strings.Contains(s, "kubepods")
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// Keys enumerates every recognised environment option, sorted.
func Keys() []string {
	keys := []string{
		"MC_HOST", "MC_PORT", "MC_VERSION", "MC_RECONNECT_DELAY_MS",
		"BOT_USERNAME", "AUTH_MODE", "PROTOCOL_PATCHES_PATH",
		"WS_HOST", "WS_PORT",
		"AGENT_WS_URL", "AGENT_WS_HOST", "AGENT_WS_PORT",
		"AGENT_WS_CONNECT_TIMEOUT_MS", "AGENT_WS_SEND_TIMEOUT_MS",
		"AGENT_WS_HEALTHCHECK_INTERVAL_MS", "AGENT_WS_RECONNECT_DELAY_MS",
		"AGENT_WS_MAX_RETRIES",
		"AGENT_EVENT_BATCH_INTERVAL_MS", "AGENT_EVENT_BATCH_MAX_SIZE",
		"AGENT_EVENT_QUEUE_MAX_SIZE",
		"MOVE_GOAL_TOLERANCE",
		"CONTROL_MODE", "VPT_TICK_INTERVAL_MS", "VPT_MAX_SEQUENCE_LENGTH",
		"PERCEPTION_ENTITY_RADIUS", "PERCEPTION_BLOCK_RADIUS",
		"PERCEPTION_BLOCK_HEIGHT", "PERCEPTION_BROADCAST_INTERVAL_MS",
		"PATHFINDER_ALLOW_PARKOUR", "PATHFINDER_ALLOW_SPRINTING",
		"PATHFINDER_DIG_COST_ENABLED", "PATHFINDER_DIG_COST_DISABLED",
		"FORCED_MOVE_RETRY_WINDOW_MS", "FORCED_MOVE_MAX_RETRIES",
		"FORCED_MOVE_RETRY_DELAY_MS",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
		"OTEL_DEPLOYMENT_ENVIRONMENT", "OTEL_TRACES_SAMPLER_RATIO",
		"SKILL_HISTORY_PATH",
		"STARVATION_FOOD_LEVEL", "HUNGER_WARNING_COOLDOWN_MS",
	}
	sort.Strings(keys)
	return keys
}

// --- typed lookups ---

func (r *Resolver) str(key, def string) string {
	if v, ok := r.Lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// intRange parses an integer option and clamps it to [min, max], warning on
// both parse failures and out-of-range values.
func (r *Resolver) intRange(key string, def, min, max int) int {
	raw, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		r.warnf("%s=%q is not an integer; using default %d", key, raw, def)
		return def
	}
	if n < min {
		r.warnf("%s=%d is below the minimum %d; clamping", key, n, min)
		return min
	}
	if n > max {
		r.warnf("%s=%d is above the maximum %d; clamping", key, n, max)
		return max
	}
	return n
}

func (r *Resolver) durationMS(key string, def, min, max int) time.Duration {
	return time.Duration(r.intRange(key, def, min, max)) * time.Millisecond
}

// enum validates a closed-set option, falling back to def with a warning.
func (r *Resolver) enum(key, def string, allowed []string) string {
	raw, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.warnf("%s=%q is not one of %v; using default %q", key, raw, allowed, def)
	return def
}

func (r *Resolver) boolean(key string, def bool) bool {
	raw, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		r.warnf("%s=%q is not a boolean; using default %t", key, raw, def)
		return def
	}
	return v
}

// ratio parses a float in [0,1]; anything unparsable or non-finite falls
// back to the default, out-of-range values clamp.
func (r *Resolver) ratio(key string, def float64) float64 {
	raw, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		r.warnf("%s=%q is not a valid ratio; using default %g", key, raw, def)
		return def
	}
	if f < 0 {
		r.warnf("%s=%g is below 0; clamping", key, f)
		return 0
	}
	if f > 1 {
		r.warnf("%s=%g is above 1; clamping", key, f)
		return 1
	}
	return f
}

func (r *Resolver) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	slog.Warn("Config option normalised", "detail", msg)
}
