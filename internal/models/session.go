package models

import "time"

// Session represents one WhatsApp connection context. Users and groups hang
// off a session and are removed with it when the session row is deleted.
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"uniqueIndex;size:255;not null"`
	DeviceJID string    `json:"device_jid" gorm:"size:255"` // paired device, empty until QR login completes
	CreatedAt time.Time `json:"created_at"`
}
