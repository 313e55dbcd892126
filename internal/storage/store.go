package storage

import (
	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

// Store defines the persistence operations the router, the chatbot flow and
// the timeout sweep need. Find-or-create operations must stay safe when two
// events for an unknown contact race each other.
type Store interface {
	// User operations
	FindOrCreateUser(contactID, sessionID string) (*models.User, error)
	UpdateUserState(userID uint, state models.ConversationState) error
	UpdateUserInteractionTime(userID uint) error

	// Group operations
	FindOrCreateGroup(groupJID, sessionID string) (*models.Group, error)

	// Message operations (append-only)
	SaveMessage(userID uint, text string, source models.MessageSource) error
	SaveGroupMessage(groupID uint, senderJID, text string, source models.MessageSource) error

	// CheckAgentTimeouts finds users stuck in awaiting_agent past the
	// threshold, resets them to initial and returns the pre-reset rows.
	CheckAgentTimeouts() ([]*models.User, error)

	// Session operations
	FindOrCreateSession(sessionID string) (*models.Session, error)
	SaveSessionDevice(sessionID, deviceJID string) error
	ListSessions() ([]*models.Session, error)
	DeleteSession(sessionID string) error
}
