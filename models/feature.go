package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Feature represents a sellable platform capability. Features may nest one
// level of sub-features via ParentID; the tree is materialized at read time
// by the entitlement resolver.
type Feature struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key         string `gorm:"uniqueIndex;not null" json:"key"` // e.g. sbom-management
	Name        string `gorm:"not null" json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`

	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	// Flags
	IsPremium       bool `gorm:"default:false" json:"is_premium"`
	RequiresLicense bool `gorm:"default:false" json:"requires_license"`
	IsAddOn         bool `gorm:"default:false" json:"is_add_on"`
	IsActive        bool `gorm:"default:true" json:"is_active"`
	IsVisible       bool `gorm:"default:true" json:"is_visible"`
	IsDeprecated    bool `gorm:"default:false" json:"is_deprecated"`

	// Catalog-level default: seeds plan rows and drives the platform-wide
	// catalog view. Tenant entitlement still requires a plan row or override.
	DefaultEnabled bool           `gorm:"default:false" json:"default_enabled"`
	DefaultConfig  datatypes.JSON `json:"default_config,omitempty"`

	// Relations
	Categories []FeatureCategory `gorm:"many2many:feature_category_memberships" json:"categories,omitempty"`
}

func (f *Feature) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FeatureCategory groups features for catalog display (it-security,
// product-security, compliance, ...)
type FeatureCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key         string `gorm:"uniqueIndex;not null" json:"key"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Features []Feature `gorm:"many2many:feature_category_memberships" json:"features,omitempty"`
}

func (c *FeatureCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PlanFeature is the join row defining the entitlement default a subscription
// plan grants for a feature
type PlanFeature struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PlanID    uuid.UUID `gorm:"type:uuid;not null;index:idx_plan_feature,unique" json:"plan_id"`
	FeatureID uuid.UUID `gorm:"type:uuid;not null;index:idx_plan_feature,unique" json:"feature_id"`

	Enabled      bool           `gorm:"default:true" json:"enabled"`
	Config       datatypes.JSON `json:"config,omitempty"`
	Limits       datatypes.JSON `json:"limits,omitempty"`
	MaxUsers     int            `gorm:"default:0" json:"max_users"` // 0 = unlimited
	CurrentUsers int            `gorm:"default:0" json:"current_users"`

	// Relations
	Plan    SubscriptionPlan `gorm:"foreignKey:PlanID" json:"-"`
	Feature Feature          `gorm:"foreignKey:FeatureID" json:"feature,omitempty"`
}

func (pf *PlanFeature) BeforeCreate(tx *gorm.DB) error {
	if pf.ID == uuid.Nil {
		pf.ID = uuid.New()
	}
	return nil
}

// TenantFeature is a per-tenant override of the plan default for one feature.
// When present it wins over the PlanFeature row; concurrent admin writes are
// last-write-wins.
type TenantFeature struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_tenant_feature,unique" json:"tenant_id"`
	FeatureID uuid.UUID `gorm:"type:uuid;not null;index:idx_tenant_feature,unique" json:"feature_id"`

	Enabled      bool           `json:"enabled"`
	Config       datatypes.JSON `json:"config,omitempty"`
	MaxUsers     int            `gorm:"default:0" json:"max_users"`
	CurrentUsers int            `gorm:"default:0" json:"current_users"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`

	// Relations
	Tenant  Tenant  `gorm:"foreignKey:TenantID" json:"-"`
	Feature Feature `gorm:"foreignKey:FeatureID" json:"feature,omitempty"`
}

func (tf *TenantFeature) BeforeCreate(tx *gorm.DB) error {
	if tf.ID == uuid.Nil {
		tf.ID = uuid.New()
	}
	return nil
}
