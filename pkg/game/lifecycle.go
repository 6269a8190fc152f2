package game

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
)

// Registrar installs domain event handlers on a freshly created client. It
// is invoked exactly once per client instance; the supervisor stores it and
// re-invokes it after every reconnect.
type Registrar func(c Client) Hooks

// Supervisor owns at most one protocol client. It creates the client,
// wires the registrar's hooks, tracks spawn completion, and schedules an
// idempotent reconnect when the connection is lost.
type Supervisor struct {
	cfg       config.GameConfig
	clk       clock.Clock
	registrar Registrar
	patches   map[string]map[string]any

	mu             sync.Mutex
	client         Client
	spawned        bool
	reconnectTimer clock.Timer
	closed         bool

	role roleState
}

// NewSupervisor builds a supervisor. Start must be called to connect.
func NewSupervisor(cfg config.GameConfig, clk clock.Clock, registrar Registrar) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		clk:       clk,
		registrar: registrar,
		role:      defaultRoleState(),
	}
}

// Start creates the protocol client and wires its event hooks. Protocol
// patches are loaded from the configured path on the first call.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("lifecycle supervisor is closed")
	}
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}
	if s.patches == nil && s.cfg.PatchesPath != "" {
		patches, err := LoadPatches(s.cfg.PatchesPath)
		if err != nil {
			slog.Warn("Failed to load protocol patches; continuing without",
				"path", s.cfg.PatchesPath, "error", err)
		}
		s.patches = patches
	}
	s.mu.Unlock()

	return s.connect()
}

func (s *Supervisor) connect() error {
	slog.Info("Connecting to game server",
		"host", s.cfg.Host, "port", s.cfg.Port, "username", s.cfg.Username)

	opts := Options{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		Username: s.cfg.Username,
		AuthMode: s.cfg.AuthMode,
		Version:  s.cfg.Version,
		Patches:  s.patches,
	}

	// Hooks may start firing as soon as the factory returns, before the
	// registrar has run; the box buffers that window safely.
	box := &hookBox{}
	var once sync.Once
	opts.Hooks = Hooks{
		OnSpawn: func() {
			s.mu.Lock()
			if s.client == box.client() {
				s.spawned = true
			}
			s.mu.Unlock()
			if fn := box.get().OnSpawn; fn != nil {
				fn()
			}
		},
		OnHealth:     func() { box.call(func(h Hooks) func() { return h.OnHealth }) },
		OnMove:       func() { box.call(func(h Hooks) func() { return h.OnMove }) },
		OnForcedMove: func() { box.call(func(h Hooks) func() { return h.OnForcedMove }) },
		OnChat: func(username, message string) {
			if fn := box.get().OnChat; fn != nil {
				fn(username, message)
			}
		},
		OnEnd: func(reason string) {
			once.Do(func() {
				if fn := box.get().OnEnd; fn != nil {
					fn(reason)
				}
				s.onConnectionLost(box.client(), reason)
			})
		},
	}

	created, err := newClient(opts)
	if err != nil {
		slog.Warn("Game client creation failed; scheduling reconnect", "error", err)
		s.scheduleReconnect()
		return err
	}
	box.setClient(created)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = created.Close()
		return fmt.Errorf("lifecycle supervisor is closed")
	}
	s.client = created
	s.spawned = false
	s.mu.Unlock()

	if s.registrar != nil {
		box.set(s.registrar(created))
	}
	return nil
}

// hookBox holds the registrar-supplied hooks and the client they belong to,
// both assigned after the factory returns while hooks may already be firing.
type hookBox struct {
	mu sync.Mutex
	h  Hooks
	c  Client
}

func (b *hookBox) set(h Hooks) {
	b.mu.Lock()
	b.h = h
	b.mu.Unlock()
}

func (b *hookBox) get() Hooks {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.h
}

func (b *hookBox) setClient(c Client) {
	b.mu.Lock()
	b.c = c
	b.mu.Unlock()
}

func (b *hookBox) client() Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.c
}

func (b *hookBox) call(pick func(Hooks) func()) {
	if fn := pick(b.get()); fn != nil {
		fn()
	}
}

// onConnectionLost drops the client instance and schedules a reconnect.
// Signals from a superseded client are ignored.
func (s *Supervisor) onConnectionLost(client Client, reason string) {
	s.mu.Lock()
	if s.closed || s.client != client {
		s.mu.Unlock()
		return
	}
	s.client = nil
	s.spawned = false
	s.mu.Unlock()

	slog.Warn("Game connection lost; scheduling reconnect",
		"reason", reason, "delay", s.cfg.ReconnectDelay)
	s.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already armed.
func (s *Supervisor) scheduleReconnect() {
	s.mu.Lock()
	if s.closed || s.reconnectTimer != nil {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = s.clk.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.mu.Lock()
		s.reconnectTimer = nil
		stale := s.closed || s.client != nil
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.connect(); err != nil {
			slog.Warn("Game reconnect failed", "error", err)
		}
	})
	s.mu.Unlock()
}

// ActiveClient returns the client only when it exists and its spawn
// sequence has completed; nil otherwise. Callers treat nil as "not ready".
func (s *Supervisor) ActiveClient() Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || !s.spawned {
		return nil
	}
	return s.client
}

// Connected reports whether a client instance exists, spawned or not.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Close tears down the client and cancels any pending reconnect.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	client := s.client
	s.client = nil
	s.spawned = false
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}
