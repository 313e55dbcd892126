package models

import "time"

// Group is a multi-party chat within a session. Group chats are archived
// only; they never drive the bot.
type Group struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GroupJID  string    `json:"group_jid" gorm:"size:255;not null;uniqueIndex:unique_group_session,priority:1"`
	SessionID string    `json:"session_id" gorm:"size:255;not null;uniqueIndex:unique_group_session,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:SessionID;constraint:OnDelete:CASCADE"`
}
