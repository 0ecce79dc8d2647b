package models

import "time"

// MessageKind distinguishes user text from system announcements.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// Message is a direct message between two users. New messages are also
// published on the receiver's Redis channel for the SSE stream.
type Message struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	SenderID   uint        `gorm:"index;not null" json:"sender_id"`
	ReceiverID uint        `gorm:"index;not null" json:"receiver_id"`
	Content    string      `gorm:"type:text;not null" json:"content"`
	Kind       MessageKind `gorm:"size:16;not null;default:'text'" json:"kind"`
	Read       bool        `gorm:"default:false" json:"read"`
	CreatedAt  time.Time   `gorm:"index" json:"created_at"`
}
