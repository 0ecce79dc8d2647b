package models

import "time"

// PaymentStatus enumerates the lifecycle of a mobile-money transaction.
type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "initiated"
	PaymentPending    PaymentStatus = "pending"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// paymentTransitions is the closed transition table. successful, failed and
// cancelled are terminal, which is what makes credit grants idempotent: a
// second verify of a successful payment has no legal transition to take.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentInitiated: {PaymentPending, PaymentFailed, PaymentCancelled},
	PaymentPending:   {PaymentSuccessful, PaymentFailed, PaymentCancelled},
}

// CanTransition reports whether moving from s to next is allowed.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// Payment tracks one Noupia transaction from initiation to settlement.
// Reference is our idempotency key; ProviderTxn is Noupia's transaction id.
type Payment struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Reference        string        `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	ProviderTxn      string        `gorm:"size:64;index" json:"provider_txn"`
	UserID           uint          `gorm:"index;not null" json:"user_id"`
	Amount           int           `gorm:"not null" json:"amount"`
	Currency         string        `gorm:"size:8;not null" json:"currency"`
	CreditsPurchased int           `gorm:"not null" json:"credits_purchased"`
	Status           PaymentStatus `gorm:"size:16;not null;default:'initiated'" json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
