package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// PlanTransaction records a plan purchase attempt for a tenant. The webhook
// handler flips the status once Stripe confirms payment.
type PlanTransaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	PlanID   uuid.UUID `gorm:"type:uuid;not null" json:"plan_id"`

	Amount   int64             `gorm:"not null" json:"amount"` // cents
	Currency string            `gorm:"default:'USD'" json:"currency"`
	Status   TransactionStatus `gorm:"default:'pending';index" json:"status"`

	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id,omitempty"`
	StripeChargeID        string `json:"stripe_charge_id,omitempty"`
	FailureReason         string `json:"failure_reason,omitempty"`

	// Relations
	Tenant Tenant           `gorm:"foreignKey:TenantID" json:"-"`
	Plan   SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (t *PlanTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
