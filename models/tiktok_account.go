package models

import "time"

// TikTokAccount stores the OAuth tokens linking a user to a TikTok business
// account. One account per user.
type TikTokAccount struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BusinessID   string    `gorm:"size:64" json:"business_id"`
	AccessToken  string    `gorm:"size:512" json:"-"`
	RefreshToken string    `gorm:"size:512" json:"-"`
	Scope        string    `gorm:"size:255" json:"scope"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token needs refreshing.
func (a *TikTokAccount) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
