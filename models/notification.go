package models

import "time"

// BroadcastRecipient is the sentinel recipient meaning "every user".
const BroadcastRecipient = "all"

// Notification targets either a single user (Recipient is the user's phone) or
// every user via the broadcast sentinel. The admin phone is excluded at read time.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Recipient string    `gorm:"size:20;index;not null" json:"recipient"`
	Message   string    `gorm:"size:512;not null" json:"message"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Broadcast reports whether the notification addresses every user.
func (n *Notification) Broadcast() bool {
	return n.Recipient == BroadcastRecipient
}
