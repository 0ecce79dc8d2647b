package models

import "time"

// CompletionStatus enumerates verification outcomes for a task completion.
type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionVerified CompletionStatus = "verified"
	CompletionRejected CompletionStatus = "rejected"
)

// completionTransitions is the closed transition table for completion review.
// A verified or rejected completion is final.
var completionTransitions = map[CompletionStatus][]CompletionStatus{
	CompletionPending: {CompletionVerified, CompletionRejected},
}

// CanTransition reports whether moving from s to next is allowed.
func (s CompletionStatus) CanTransition(next CompletionStatus) bool {
	for _, allowed := range completionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Completion records one user having performed a task's action.
// The unique index makes repeat completions by the same user unrepresentable.
type Completion struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	TaskID      uint             `gorm:"not null;uniqueIndex:idx_completions_task_user" json:"task_id"`
	UserID      uint             `gorm:"not null;uniqueIndex:idx_completions_task_user" json:"user_id"`
	Status      CompletionStatus `gorm:"size:16;not null;default:'pending'" json:"status"`
	Result      string           `gorm:"size:255" json:"result"`
	Receipt     string           `gorm:"size:36;uniqueIndex" json:"receipt"`
	CompletedAt time.Time        `json:"completed_at"`
}
