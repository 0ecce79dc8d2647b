package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a platform member. Passwords are stored as bcrypt hashes only.
// Phone numbers are normalized to E.164 before persisting.
type User struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`
	Phone                    string         `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	PasswordHash             string         `gorm:"size:255" json:"-"`
	Pseudo                   string         `gorm:"size:64" json:"pseudo"`
	Country                  string         `gorm:"size:8" json:"country"`
	Credits                  int            `gorm:"default:0" json:"credits"`
	Links                    string         `gorm:"type:text" json:"links"` // JSON array of {label,url} profile links
	DashboardAccess          bool           `gorm:"default:true" json:"dashboard_access"`
	DashboardAccessExpiresAt *time.Time     `json:"dashboard_access_expires_at"`
	LastPaymentAt            *time.Time     `json:"last_payment_at"`
	RegisterIP               string         `gorm:"size:45" json:"-"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// SubscriptionValid reports whether the 30-day dashboard window following the
// last successful payment is still open.
func (u *User) SubscriptionValid(now time.Time) bool {
	if u.LastPaymentAt == nil {
		return false
	}
	return now.Before(u.LastPaymentAt.Add(30 * 24 * time.Hour))
}

// HasLinks reports whether the user filled in at least one profile link.
func (u *User) HasLinks() bool {
	return u.Links != "" && u.Links != "[]" && u.Links != "null"
}
