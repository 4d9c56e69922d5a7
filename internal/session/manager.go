package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kdduha/bgremover/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Manager owns one Controller per browser session and evicts idle ones.
type Manager struct {
	logger   *zap.Logger
	remover  remover
	previews *PreviewStore
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Controller
	cron     *cron.Cron
}

func NewManager(logger *zap.Logger, remover remover, previews *PreviewStore, ttl time.Duration) *Manager {
	return &Manager{
		logger:   logger,
		remover:  remover,
		previews: previews,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Controller),
	}
}

func (m *Manager) Create() (string, *Controller) {
	id := ksuid.New().String()
	ctrl := NewController(m.logger.With(zap.String("session", id)), m.remover, m.previews)

	m.mu.Lock()
	m.sessions[id] = ctrl
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionsActive(n)
	return id, ctrl
}

// Get returns the session and marks it active, so a session that is only
// being viewed is not swept.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[id]
	if ok {
		ctrl.Touch(m.now())
	}
	return ctrl, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL. Sessions with a
// removal in flight are kept until it finishes.
func (m *Manager) Sweep() int {
	deadline := m.now().Add(-m.ttl)

	m.mu.Lock()
	var evicted []*Controller
	for id, ctrl := range m.sessions {
		if ctrl.Busy() || ctrl.LastActive().After(deadline) {
			continue
		}
		delete(m.sessions, id)
		evicted = append(evicted, ctrl)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, ctrl := range evicted {
		ctrl.Close()
	}
	metrics.SessionsActive(n)

	if len(evicted) > 0 {
		m.logger.Info("evicted idle sessions",
			zap.Int("evicted", len(evicted)),
			zap.Int("active", n))
	}
	return len(evicted)
}

// Start runs Sweep on the given cron schedule, e.g. "@every 1m".
func (m *Manager) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	return nil
}

// Stop halts the sweeper, waits for a running sweep and closes every session.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Close()
	}
	metrics.SessionsActive(0)
}
