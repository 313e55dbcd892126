package models

import "time"

// MessageSource says who produced a stored message.
type MessageSource string

const (
	SourceUser   MessageSource = "user"   // inbound from the contact
	SourceBot    MessageSource = "bot"    // sent by the menu bot or the timeout sweep
	SourceManual MessageSource = "manual" // sent by a human from the paired phone/agent console
)

// Message is one utterance in an individual conversation. Rows are
// append-only: nothing in the system updates or deletes them.
type Message struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	UserID      uint          `json:"user_id" gorm:"index;not null"`
	MessageText string        `json:"message_text" gorm:"type:text"`
	Source      MessageSource `json:"source" gorm:"size:16;not null"`
	CreatedAt   time.Time     `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// GroupMessage is the group-chat counterpart of Message, with the sender
// address kept because many parties write into the same group.
type GroupMessage struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	GroupID     uint          `json:"group_id" gorm:"index;not null"`
	SenderJID   string        `json:"sender_jid" gorm:"size:255"`
	MessageText string        `json:"message_text" gorm:"type:text"`
	Source      MessageSource `json:"source" gorm:"size:16;not null"`
	CreatedAt   time.Time     `json:"created_at"`

	Group Group `json:"-" gorm:"foreignKey:GroupID"`
}
