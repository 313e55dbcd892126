package storage

import (
	"sync"
	"time"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

// MemoryStore keeps everything in maps. Used by tests and by
// USE_MEMORY_STORE=true runs; not for production.
type MemoryStore struct {
	mu sync.RWMutex

	sessions      map[string]*models.Session
	users         map[string]*models.User // key: contactID + "|" + sessionID
	groups        map[string]*models.Group
	messages      []*models.Message
	groupMessages []*models.GroupMessage

	userCounter    uint
	groupCounter   uint
	sessionCounter uint

	// AgentTimeout is overridable so tests don't wait half an hour.
	AgentTimeout time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*models.Session),
		users:        make(map[string]*models.User),
		groups:       make(map[string]*models.Group),
		AgentTimeout: agentTimeout,
	}
}

func userKey(contactID, sessionID string) string {
	return contactID + "|" + sessionID
}

func (m *MemoryStore) findOrCreateSessionLocked(sessionID string) *models.Session {
	if session, exists := m.sessions[sessionID]; exists {
		return session
	}
	m.sessionCounter++
	session := &models.Session{
		ID:        m.sessionCounter,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	m.sessions[sessionID] = session
	return session
}

// FindOrCreateSession lazily creates the session on first reference.
func (m *MemoryStore) FindOrCreateSession(sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOrCreateSessionLocked(sessionID), nil
}

// SaveSessionDevice records the paired device JID for a session.
func (m *MemoryStore) SaveSessionDevice(sessionID, deviceJID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findOrCreateSessionLocked(sessionID).DeviceJID = deviceJID
	return nil
}

// ListSessions returns all sessions.
func (m *MemoryStore) ListSessions() ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// DeleteSession removes a session and cascades to its users and groups.
func (m *MemoryStore) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	for key, user := range m.users {
		if user.SessionID == sessionID {
			delete(m.users, key)
		}
	}
	for key, group := range m.groups {
		if group.SessionID == sessionID {
			delete(m.groups, key)
		}
	}
	return nil
}

// FindOrCreateUser resolves a contact within a session.
func (m *MemoryStore) FindOrCreateUser(contactID, sessionID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findOrCreateSessionLocked(sessionID)

	key := userKey(contactID, sessionID)
	if user, exists := m.users[key]; exists {
		return user, nil
	}

	m.userCounter++
	user := &models.User{
		ID:          m.userCounter,
		ContactID:   contactID,
		PhoneNumber: models.PhoneFromContactID(contactID),
		SessionID:   sessionID,
		State:       models.StateInitial,
		CreatedAt:   time.Now(),
	}
	m.users[key] = user
	return user, nil
}

// FindOrCreateGroup resolves a group chat within a session.
func (m *MemoryStore) FindOrCreateGroup(groupJID, sessionID string) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findOrCreateSessionLocked(sessionID)

	key := groupJID + "|" + sessionID
	if group, exists := m.groups[key]; exists {
		return group, nil
	}

	m.groupCounter++
	group := &models.Group{
		ID:        m.groupCounter,
		GroupJID:  groupJID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	m.groups[key] = group
	return group, nil
}

// UpdateUserState moves a user to the given conversation state.
func (m *MemoryStore) UpdateUserState(userID uint, state models.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			user.State = state
			return nil
		}
	}
	return nil
}

// UpdateUserInteractionTime stamps the user as active now.
func (m *MemoryStore) UpdateUserInteractionTime(userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			now := time.Now()
			user.LastInteractionAt = &now
			return nil
		}
	}
	return nil
}

// SaveMessage appends one individual-conversation message.
func (m *MemoryStore) SaveMessage(userID uint, text string, source models.MessageSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, &models.Message{
		ID:          uint(len(m.messages) + 1),
		UserID:      userID,
		MessageText: text,
		Source:      source,
		CreatedAt:   time.Now(),
	})
	return nil
}

// SaveGroupMessage appends one group message.
func (m *MemoryStore) SaveGroupMessage(groupID uint, senderJID, text string, source models.MessageSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupMessages = append(m.groupMessages, &models.GroupMessage{
		ID:          uint(len(m.groupMessages) + 1),
		GroupID:     groupID,
		SenderJID:   senderJID,
		MessageText: text,
		Source:      source,
		CreatedAt:   time.Now(),
	})
	return nil
}

// CheckAgentTimeouts resets stale awaiting_agent users and returns them.
func (m *MemoryStore) CheckAgentTimeouts() ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.AgentTimeout)
	var timedOut []*models.User
	for _, user := range m.users {
		if user.State == models.StateAwaitingAgent &&
			user.LastInteractionAt != nil && user.LastInteractionAt.Before(cutoff) {
			snapshot := *user
			timedOut = append(timedOut, &snapshot)
			user.State = models.StateInitial
		}
	}
	return timedOut, nil
}

// Messages returns a copy of all stored individual messages. Test helper.
func (m *MemoryStore) Messages() []*models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// GroupMessages returns a copy of all stored group messages. Test helper.
func (m *MemoryStore) GroupMessages() []*models.GroupMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.GroupMessage, len(m.groupMessages))
	copy(out, m.groupMessages)
	return out
}

// GetUser looks a user up by id. Test helper.
func (m *MemoryStore) GetUser(userID uint) (*models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.ID == userID {
			snapshot := *user
			return &snapshot, true
		}
	}
	return nil, false
}
