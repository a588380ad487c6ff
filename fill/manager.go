package fill

import (
	"fmt"
	"sync"

	"github.com/okelemen/formfill/model"
)

// Manager tracks the active fill sessions, one per (form, user). Sessions
// are transient: they live here and nowhere else, and a restart loses
// them, which costs the user a fill but never stored data.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

func sessionKey(formID, userID int) string {
	return fmt.Sprintf("%d:%d", formID, userID)
}

// Start returns the user's session for the form, creating it if there is
// none. A session that already submitted is replaced with a fresh one
// (the store's uniqueness index is what actually forbids a second
// submission).
func (m *Manager) Start(form model.Form, userID int, submit SubmitFunc, tickers TickerFunc) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(form.ID, userID)
	if s, ok := m.sessions[key]; ok {
		if s.Snapshot().Status != StatusSubmitted {
			return s
		}
		s.Cancel()
	}

	s := Start(form, submit, tickers)
	m.sessions[key] = s
	return s
}

// Get looks up the user's session for a form.
func (m *Manager) Get(formID, userID int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionKey(formID, userID)]
	return s, ok
}

// Drop cancels and forgets the user's session for a form.
func (m *Manager) Drop(formID, userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(formID, userID)
	if s, ok := m.sessions[key]; ok {
		s.Cancel()
		delete(m.sessions, key)
	}
}
