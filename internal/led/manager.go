package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camrelay/internal/events"
)

// Manager mirrors the stream reader's phase on the status LED: solid while
// streaming, blinking while connecting or backing off, off when stopped.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	logger      *slog.Logger
	unsubscribe func()

	mu      sync.Mutex
	current Pattern
}

// NewManager creates a manager; nothing happens until Start.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start blinks the LED until the first frame and begins following events.
func (m *Manager) Start() {
	m.apply(PatternBlink)
	m.unsubscribe = m.eventBus.Subscribe(func(e events.ConnectionStateChangedEvent) {
		m.apply(patternForPhase(e.Phase))
	})
	m.logger.Info("LED manager started", "led", m.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.apply(PatternOff)
	m.logger.Info("LED manager stopped")
}

// Current returns the last pattern applied.
func (m *Manager) Current() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) apply(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == m.current {
		return
	}
	if err := m.controller.Set(p); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", p, "error", err)
		return
	}
	m.current = p
	m.logger.Debug("Status LED updated", "pattern", p)
}

func patternForPhase(phase string) Pattern {
	switch phase {
	case "streaming":
		return PatternSolid
	case "stopped", "idle":
		return PatternOff
	default:
		return PatternBlink
	}
}
