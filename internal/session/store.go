// Package session owns the in-memory conversation state and its durable
// autosave pipeline.
package session

import (
	"sync"

	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
)

// Store is the authoritative in-memory state for sessions and their
// messages, independent of transport. Every mutation is an atomic critical
// section; listeners are notified synchronously after the lock is released.
type Store struct {
	mu        sync.Mutex
	sessions  []*models.ChatSession // newest first
	byID      map[string]*models.ChatSession
	currentID string

	ids ports.IDGenerator

	listenerMu sync.RWMutex
	listeners  []ports.SessionListener
}

var _ ports.SessionStore = (*Store)(nil)

func NewStore(ids ports.IDGenerator) *Store {
	return &Store{
		byID: make(map[string]*models.ChatSession),
		ids:  ids,
	}
}

// AddListener registers a mutation observer (autosaver, event hub, …).
func (s *Store) AddListener(l ports.SessionListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(change ports.Change) {
	s.listenerMu.RLock()
	listeners := make([]ports.SessionListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		l.SessionChanged(change)
	}
}

// CreateSession creates an empty active session at the front of the listing
// and makes it current.
func (s *Store) CreateSession(title, model string) *models.ChatSession {
	sess := models.NewChatSession(s.ids.GenerateSessionID(), title, model)

	s.mu.Lock()
	s.sessions = append([]*models.ChatSession{sess}, s.sessions...)
	s.byID[sess.ID] = sess
	s.currentID = sess.ID
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.notify(ports.Change{Kind: ports.ChangeSessionCreated, SessionID: sess.ID})
	return sess.Clone()
}

func (s *Store) SwitchSession(id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.currentID = id
	s.mu.Unlock()

	s.notify(ports.Change{Kind: ports.ChangeSessionSwitched, SessionID: id})
	return nil
}

func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(s.byID, id)
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	if s.currentID == id {
		s.currentID = ""
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		}
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.notify(ports.Change{Kind: ports.ChangeSessionDeleted, SessionID: id})
	return nil
}

func (s *Store) AppendMessage(sessionID string, msg *models.ChatMessage) error {
	s.mu.Lock()
	sess, ok := s.byID[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Touch()
	s.mu.Unlock()

	s.notify(ports.Change{
		Kind:      ports.ChangeMessageAppended,
		SessionID: sessionID,
		MessageID: msg.ID,
	})
	return nil
}

// UpdateLastMessage merges the partial update into the most recently
// appended message of the session: content replaced, metadata shallow-merged.
func (s *Store) UpdateLastMessage(sessionID string, update models.MessageUpdate) error {
	s.mu.Lock()
	sess, ok := s.byID[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	msg := sess.LastMessage()
	if msg == nil {
		s.mu.Unlock()
		return domain.ErrMessageNotFound
	}
	update.Apply(msg)
	sess.Touch()
	msgID := msg.ID
	s.mu.Unlock()

	s.notify(ports.Change{
		Kind:      ports.ChangeMessageUpdated,
		SessionID: sessionID,
		MessageID: msgID,
	})
	return nil
}

// Sessions returns the session listing, newest first, as defensive copies.
func (s *Store) Sessions() []*models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

func (s *Store) Session(id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) CurrentSession() *models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[s.currentID]; ok {
		return sess.Clone()
	}
	return nil
}

func (s *Store) Messages(sessionID string) ([]*models.ChatMessage, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns a deep copy of all sessions for serialization.
func (s *Store) Snapshot() []*models.ChatSession {
	return s.Sessions()
}

// Install replaces the whole collection, used when loading a persisted
// snapshot at startup. No listeners fire.
func (s *Store) Install(sessions []*models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	s.byID = make(map[string]*models.ChatSession, len(sessions))
	for _, sess := range sessions {
		s.byID[sess.ID] = sess
	}
	s.currentID = ""
	if len(sessions) > 0 {
		s.currentID = sessions[0].ID
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
}

// Upsert merges sessions by id: existing ones are updated in place (position
// preserved), unknown ones are prepended. Used by snapshot import.
func (s *Store) Upsert(sessions []*models.ChatSession) {
	s.mu.Lock()
	for _, incoming := range sessions {
		if existing, ok := s.byID[incoming.ID]; ok {
			*existing = *incoming
			continue
		}
		s.sessions = append([]*models.ChatSession{incoming}, s.sessions...)
		s.byID[incoming.ID] = incoming
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}
