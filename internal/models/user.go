package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ConversationState is the position of a contact inside the menu flow.
type ConversationState string

const (
	StateInitial        ConversationState = "initial"
	StateAwaitingMenu   ConversationState = "awaiting_menu_choice"
	StateAwaitingAmount ConversationState = "awaiting_recharge_amount"
	StateAwaitingAgent  ConversationState = "awaiting_agent"
)

// User is a contact within a session. The pair (contact_id, session_id) is
// unique; the same phone talking to two sessions is two users.
type User struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	ContactID         string            `json:"contact_id" gorm:"size:255;not null;uniqueIndex:unique_user_session,priority:1"`
	PhoneNumber       string            `json:"phone_number" gorm:"size:255;not null"`
	SessionID         string            `json:"session_id" gorm:"size:255;not null;uniqueIndex:unique_user_session,priority:2"`
	State             ConversationState `json:"state" gorm:"size:255;default:initial"`
	LastInteractionAt *time.Time        `json:"last_interaction_at"`
	CreatedAt         time.Time         `json:"created_at"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:SessionID;constraint:OnDelete:CASCADE"`
}

// PhoneFromContactID derives the bare phone number from a contact JID,
// dropping the @server suffix and any :device part (e.g. "591234:1@s.whatsapp.net").
func PhoneFromContactID(contactID string) string {
	phone := strings.SplitN(contactID, "@", 2)[0]
	phone = strings.SplitN(phone, ":", 2)[0]
	return phone
}

// BeforeCreate normalizes the row the way the storage layer expects it.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.PhoneNumber == "" {
		u.PhoneNumber = PhoneFromContactID(u.ContactID)
	}
	if u.State == "" {
		u.State = StateInitial
	}
	return nil
}
