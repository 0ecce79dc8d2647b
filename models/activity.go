package models

import "time"

// ActivityType enumerates the recorded user action kinds.
type ActivityType string

const (
	ActivityLogin         ActivityType = "login"
	ActivityLoginFailed   ActivityType = "login_failed"
	ActivityRegister      ActivityType = "register"
	ActivityLogout        ActivityType = "logout"
	ActivityTaskCreated   ActivityType = "task_created"
	ActivityTaskCompleted ActivityType = "task_completed"
	ActivityCreditsEarned ActivityType = "credits_earned"
	ActivityCreditsSpent  ActivityType = "credits_spent"
	ActivitySuspicious    ActivityType = "suspicious"
)

// Valid reports whether t is one of the closed activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityLogin, ActivityLoginFailed, ActivityRegister, ActivityLogout,
		ActivityTaskCreated, ActivityTaskCompleted, ActivityCreditsEarned,
		ActivityCreditsSpent, ActivitySuspicious:
		return true
	}
	return false
}

// Activity is an append-only audit entry. Rows are never updated; the admin
// security view and the user feed both read from this table.
type Activity struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	UserID      uint         `gorm:"index" json:"user_id"`
	Phone       string       `gorm:"size:20" json:"phone"`
	Pseudo      string       `gorm:"size:64" json:"pseudo"`
	Type        ActivityType `gorm:"size:32;index;not null" json:"type"`
	Description string       `gorm:"size:255" json:"description"`
	Details     string       `gorm:"type:text" json:"details"` // free-form JSON
	Credits     int          `json:"credits"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
}
