package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantStatus is the two-state lifecycle of a tenant. Transitions are
// admin-triggered only (suspend/activate); there is no automatic expiry.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant represents an isolated customer organization on the platform
type Tenant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name   string       `gorm:"not null" json:"name"`
	Slug   string       `gorm:"uniqueIndex;not null" json:"slug"`
	Domain string       `gorm:"index" json:"domain"`
	Status TenantStatus `gorm:"default:'ACTIVE'" json:"status"`

	// Subscription
	PlanID  *uuid.UUID `gorm:"type:uuid;index" json:"plan_id,omitempty"`
	IsTrial bool       `gorm:"default:false" json:"is_trial"`

	// Opaque per-tenant settings blob, owned by tenant admins
	Settings datatypes.JSON `json:"settings,omitempty"`

	// Compliance posture
	MFARequired   bool   `gorm:"default:false" json:"mfa_required"`
	DataResidency string `gorm:"default:'US'" json:"data_residency"`
	APIQuotaDaily int    `gorm:"default:10000" json:"api_quota_daily"`

	// Relations
	Plan     *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Users    []User            `gorm:"foreignKey:TenantID" json:"users,omitempty"`
	Features []TenantFeature   `gorm:"foreignKey:TenantID" json:"features,omitempty"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// SubscriptionPlan represents a subscription tier defining default feature
// entitlements via PlanFeature rows
type SubscriptionPlan struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `gorm:"uniqueIndex;not null" json:"name"` // PROFESSIONAL, ENTERPRISE
	DisplayName string `gorm:"not null" json:"display_name"`
	Description string `json:"description"`

	Price         int64  `gorm:"not null" json:"price"` // in cents
	Currency      string `gorm:"default:'USD'" json:"currency"`
	BillingPeriod string `gorm:"default:'monthly'" json:"billing_period"` // monthly, yearly

	MaxUsers     int `gorm:"default:50" json:"max_users"`
	MaxProjects  int `gorm:"default:25" json:"max_projects"`
	StorageLimit int `gorm:"default:10240" json:"storage_limit"` // in MB

	IsActive bool `gorm:"default:true" json:"is_active"`
	IsPublic bool `gorm:"default:true" json:"is_public"`

	StripePriceID string `json:"stripe_price_id,omitempty"`

	// Relations
	PlanFeatures []PlanFeature `gorm:"foreignKey:PlanID" json:"plan_features,omitempty"`
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
