package telegram

import (
	"sync"

	"dialogbot/internal/models"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateChoosingModel
	StateChoosingRole
	StateAwaitingPrompt
)

type DialogMode string

const (
	ModeText  DialogMode = "text"
	ModeImage DialogMode = "image"
)

// Session is the per-chat conversation state. It lives in memory only; the
// dialogs themselves are persisted.
type Session struct {
	State           SessionState
	SelectedModel   models.ModelType
	SelectedRole    models.RoleType
	CurrentDialogID int64
	Mode            DialogMode
	IgnoreHistory   bool
}

type StateManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
	}
}

func (m *StateManager) Get(chatID int64) *Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return session
	}
	return &Session{
		State: StateIdle,
		Mode:  ModeText,
	}
}

func (m *StateManager) Set(chatID int64, session *Session) {
	m.mu.Lock()
	m.sessions[chatID] = session
	m.mu.Unlock()
}

func (m *StateManager) Reset(chatID int64) {
	m.Set(chatID, &Session{
		State: StateIdle,
		Mode:  ModeText,
	})
}
