package models

import "time"

// TaskType enumerates the engagement actions a task can ask for.
type TaskType string

const (
	TaskLike    TaskType = "LIKE"
	TaskFollow  TaskType = "FOLLOW"
	TaskComment TaskType = "COMMENT"
	TaskShare   TaskType = "SHARE"
)

// Valid reports whether t is one of the closed task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskLike, TaskFollow, TaskComment, TaskShare:
		return true
	}
	return false
}

// Task is an exchange task: the creator pays credits up-front and other users
// earn Task.Credits per verified action until ActionsRemaining hits zero.
type Task struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Type             TaskType  `gorm:"size:16;not null" json:"type"`
	URL              string    `gorm:"size:512;not null" json:"url"`
	Credits          int       `gorm:"not null" json:"credits"`
	ActionsRemaining int       `gorm:"not null" json:"actions_remaining"`
	CreatorID        uint      `gorm:"index;not null" json:"creator_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Creator          User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"creator"`
}

// TotalCost is what the creator is debited when the task is published.
func (t *Task) TotalCost() int {
	return t.Credits * t.ActionsRemaining
}
