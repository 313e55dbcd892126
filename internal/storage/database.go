package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
)

// agentTimeout is how long a contact may sit in awaiting_agent without any
// interaction before the sweep returns them to the menu.
const agentTimeout = 30 * time.Minute

// DatabaseStore implements Store on top of GORM/MySQL.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// FindOrCreateSession lazily creates the session row on first reference.
func (s *DatabaseStore) FindOrCreateSession(sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.db.Where(&models.Session{SessionID: sessionID}).
		Attrs(&models.Session{SessionID: sessionID}).
		FirstOrCreate(&session).Error
	if err != nil {
		// Two first-contact events can race the insert; the loser re-reads.
		if retryErr := s.db.Where("session_id = ?", sessionID).First(&session).Error; retryErr == nil {
			return &session, nil
		}
		return nil, err
	}
	return &session, nil
}

// SaveSessionDevice records the paired device JID after a QR login.
func (s *DatabaseStore) SaveSessionDevice(sessionID, deviceJID string) error {
	if _, err := s.FindOrCreateSession(sessionID); err != nil {
		return err
	}
	return s.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("device_jid", deviceJID).Error
}

// ListSessions returns every known session, paired or not.
func (s *DatabaseStore) ListSessions() ([]*models.Session, error) {
	var sessions []*models.Session
	if err := s.db.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session row; users and groups cascade with it.
func (s *DatabaseStore) DeleteSession(sessionID string) error {
	return s.db.Where("session_id = ?", sessionID).Delete(&models.Session{}).Error
}

// FindOrCreateUser resolves a contact within a session, creating the session
// and the user rows as needed.
func (s *DatabaseStore) FindOrCreateUser(contactID, sessionID string) (*models.User, error) {
	if _, err := s.FindOrCreateSession(sessionID); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.Where("contact_id = ? AND session_id = ?", contactID, sessionID).First(&user).Error
	if err == nil {
		return s.repairPhone(&user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		ContactID: contactID,
		SessionID: sessionID,
		State:     models.StateInitial,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		// Lost the insert race against a concurrent first-contact event.
		if err := s.db.Where("contact_id = ? AND session_id = ?", contactID, sessionID).First(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// repairPhone fixes legacy rows that stored the full JID in phone_number.
func (s *DatabaseStore) repairPhone(user *models.User) (*models.User, error) {
	if !strings.Contains(user.PhoneNumber, "@") {
		return user, nil
	}
	phone := models.PhoneFromContactID(user.ContactID)
	if err := s.db.Model(user).Update("phone_number", phone).Error; err != nil {
		return nil, err
	}
	user.PhoneNumber = phone
	return user, nil
}

// FindOrCreateGroup resolves a group chat within a session.
func (s *DatabaseStore) FindOrCreateGroup(groupJID, sessionID string) (*models.Group, error) {
	if _, err := s.FindOrCreateSession(sessionID); err != nil {
		return nil, err
	}

	var group models.Group
	err := s.db.Where(&models.Group{GroupJID: groupJID, SessionID: sessionID}).
		Attrs(&models.Group{GroupJID: groupJID, SessionID: sessionID}).
		FirstOrCreate(&group).Error
	if err != nil {
		if retryErr := s.db.Where("group_jid = ? AND session_id = ?", groupJID, sessionID).First(&group).Error; retryErr == nil {
			return &group, nil
		}
		return nil, err
	}
	return &group, nil
}

// UpdateUserState moves a user to the given conversation state.
func (s *DatabaseStore) UpdateUserState(userID uint, state models.ConversationState) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("state", state).Error
}

// UpdateUserInteractionTime stamps the user as active now.
func (s *DatabaseStore) UpdateUserInteractionTime(userID uint) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_interaction_at", time.Now()).Error
}

// SaveMessage appends one individual-conversation message.
func (s *DatabaseStore) SaveMessage(userID uint, text string, source models.MessageSource) error {
	return s.db.Create(&models.Message{
		UserID:      userID,
		MessageText: text,
		Source:      source,
	}).Error
}

// SaveGroupMessage appends one group message.
func (s *DatabaseStore) SaveGroupMessage(groupID uint, senderJID, text string, source models.MessageSource) error {
	return s.db.Create(&models.GroupMessage{
		GroupID:     groupID,
		SenderJID:   senderJID,
		MessageText: text,
		Source:      source,
	}).Error
}

// CheckAgentTimeouts returns users whose agent handoff went stale and resets
// their state so the menu takes the conversation back.
func (s *DatabaseStore) CheckAgentTimeouts() ([]*models.User, error) {
	cutoff := time.Now().Add(-agentTimeout)

	var users []*models.User
	err := s.db.
		Where("state = ? AND last_interaction_at < ?", models.StateAwaitingAgent, cutoff).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	err = s.db.Model(&models.User{}).Where("id IN ?", ids).
		Update("state", models.StateInitial).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
