// Package session tracks the live transport connections of one room and
// fans messages out to them. Sessions are connection-scoped and carry no
// player identity of their own; binding a session to a player slot is
// the room actor's business.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Message is the wire envelope for everything sent to clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Sender delivers serialized messages to one client connection.
// Implementations must not block the caller indefinitely: a full or
// broken connection should fail the Send instead.
type Sender interface {
	Send(data []byte) error
	Close()
}

// Manager owns the set of live sessions for a single room.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]Sender
	logger   *zap.Logger
}

// NewManager creates an empty session Manager.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]Sender),
		logger:   logger,
	}
}

// Register adds a session to the delivery set, replacing any prior
// sender registered under the same ID.
//
// Precondition: id must be non-empty; s must be non-nil.
func (m *Manager) Register(id string, s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[id]; ok {
		old.Close()
	}
	m.sessions[id] = s
}

// Unregister removes a session from the delivery set. Unknown IDs are ignored.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		s.Close()
	}
}

// Send delivers a message to a single session. The session is pruned if
// delivery fails.
//
// Postcondition: Returns an error if the session is unknown or delivery failed.
func (m *Manager) Send(id string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling %s message: %w", msg.Type, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not registered", id)
	}
	if err := s.Send(data); err != nil {
		delete(m.sessions, id)
		s.Close()
		m.logger.Warn("pruning session after failed send",
			zap.String("session", id),
			zap.String("message_type", msg.Type),
			zap.Error(err),
		)
		return fmt.Errorf("sending to session %s: %w", id, err)
	}
	return nil
}

// Broadcast serializes msg once and delivers it to every registered
// session. Sessions whose send fails are pruned; a failure never aborts
// delivery to the remaining sessions.
func (m *Manager) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("marshalling broadcast",
			zap.String("message_type", msg.Type),
			zap.Error(err),
		)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if err := s.Send(data); err != nil {
			delete(m.sessions, id)
			s.Close()
			m.logger.Warn("pruning session after failed broadcast",
				zap.String("session", id),
				zap.String("message_type", msg.Type),
				zap.Error(err),
			)
		}
	}
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll unregisters and closes every session. Used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		delete(m.sessions, id)
		s.Close()
	}
}
