package session

import (
	"context"
	"sync"
	"time"

	"pulsefm/cache"
	"pulsefm/logger"
	"pulsefm/model"

	"github.com/google/uuid"
)

// Manager tracks registered client sessions by API key. The in-memory
// map is authoritative; redis carries a mirrored descriptor plus the
// TTL heartbeat marks that define "alive".
type Manager struct {
	hub   *Hub
	cache *cache.SessionCache

	mu       sync.RWMutex
	sessions map[string]*model.ClientSession
}

// NewManager wires the session registry to the hub and redis mirror.
func NewManager(hub *Hub, sessionCache *cache.SessionCache) *Manager {
	return &Manager{
		hub:      hub,
		cache:    sessionCache,
		sessions: make(map[string]*model.ClientSession),
	}
}

// Register records a fresh connection for an API key, replacing any
// previous session under that key.
func (m *Manager) Register(ctx context.Context, apiKey, clientID, clientName, role string) *model.ClientSession {
	if role == "" {
		role = model.RoleListener
	}

	s := &model.ClientSession{
		APIKey:       apiKey,
		ClientID:     clientID,
		ClientName:   clientName,
		ConnectionID: uuid.NewString(),
		Role:         role,
		Status:       model.SessionConnected,
		LastSeen:     time.Now(),
	}

	m.mu.Lock()
	m.sessions[apiKey] = s
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.SaveSession(ctx, s); err != nil {
			logger.Warn("session mirror save failed", logger.String("apiKey", apiKey), logger.ErrorField(err))
		}
		if err := m.cache.Heartbeat(ctx, apiKey); err != nil {
			logger.Warn("session heartbeat failed", logger.String("apiKey", apiKey), logger.ErrorField(err))
		}
	}

	logger.Info("session registered",
		logger.String("apiKey", apiKey),
		logger.String("client", clientName),
		logger.String("role", s.Role))
	return s
}

// Touch refreshes a session's keep-alive state.
func (m *Manager) Touch(apiKey string) {
	m.mu.Lock()
	if s, ok := m.sessions[apiKey]; ok {
		s.Status = model.SessionAlive
		s.LastSeen = time.Now()
	}
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Heartbeat(context.Background(), apiKey); err != nil {
			logger.Debug("session heartbeat failed", logger.String("apiKey", apiKey), logger.ErrorField(err))
		}
	}
}

// MarkDisconnected flags a session whose connection dropped without an
// administrative kick. The descriptor stays for inspection.
func (m *Manager) MarkDisconnected(apiKey string) {
	m.mu.Lock()
	if s, ok := m.sessions[apiKey]; ok {
		s.Status = model.SessionDisconnected
		s.LastSeen = time.Now()
	}
	m.mu.Unlock()
}

// Disconnect administratively removes a session and closes its
// connection. Idempotent: unknown keys are a no-op.
func (m *Manager) Disconnect(ctx context.Context, apiKey string) {
	m.mu.Lock()
	_, existed := m.sessions[apiKey]
	delete(m.sessions, apiKey)
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.KickKey(apiKey)
	}
	if m.cache != nil {
		if err := m.cache.RemoveSession(ctx, apiKey); err != nil {
			logger.Warn("session mirror remove failed", logger.String("apiKey", apiKey), logger.ErrorField(err))
		}
	}

	if existed {
		logger.Info("session disconnected administratively", logger.String("apiKey", apiKey))
	}
}

// Get returns the session registered under an API key.
func (m *Manager) Get(apiKey string) (*model.ClientSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[apiKey]
	return s, ok
}

// Role returns the role for an API key, defaulting to listener.
func (m *Manager) Role(apiKey string) string {
	if s, ok := m.Get(apiKey); ok {
		return s.Role
	}
	return model.RoleListener
}

// Sessions returns a snapshot of all known sessions.
func (m *Manager) Sessions() []*model.ClientSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.ClientSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		copied := *s
		out = append(out, &copied)
	}
	return out
}

// OnlineCount reports sessions with a live heartbeat.
func (m *Manager) OnlineCount(ctx context.Context) int64 {
	if m.cache != nil {
		if n, err := m.cache.OnlineCount(ctx); err == nil {
			return n
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.sessions {
		if s.Status != model.SessionDisconnected {
			n++
		}
	}
	return n
}
