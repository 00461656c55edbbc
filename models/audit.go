package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit event types. The activity feed maps these onto coarse categories
// (project/security/user/system) and severities.
const (
	EventTenantCreated     = "TENANT_CREATED"
	EventTenantSuspended   = "TENANT_SUSPENDED"
	EventTenantActivated   = "TENANT_ACTIVATED"
	EventTenantUpdated     = "TENANT_UPDATED"
	EventUserCreated       = "USER_CREATED"
	EventUserRoleChanged   = "USER_ROLE_CHANGED"
	EventUserStatusChanged = "USER_STATUS_CHANGED"
	EventProjectCreated    = "PROJECT_CREATED"
	EventProjectUpdated    = "PROJECT_UPDATED"
	EventFeatureOverride   = "FEATURE_OVERRIDE_CHANGED"
	EventPlanPurchased     = "PLAN_PURCHASED"
	EventLogin             = "AUTHENTICATION_LOGIN"
	EventLogout            = "AUTHENTICATION_LOGOUT"
	EventLoginFailed       = "AUTHENTICATION_FAILED"
	EventSecurityAlert     = "SECURITY_ALERT"
)

type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLog is an append-only record of a mutating or security-relevant
// action. Rows are written by the audit worker and never updated.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	TenantID *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	UserID   *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`

	EventType string        `gorm:"not null;index" json:"event_type"`
	Action    string        `json:"action"`
	Resource  string        `json:"resource"`
	Details   string        `json:"details"`
	Severity  AuditSeverity `gorm:"default:'low'" json:"severity"`

	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`

	// Relations
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// SignInLog records every login attempt, successful or not
type SignInLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID  *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Email   string     `gorm:"index" json:"email"`
	Success bool       `json:"success"`
	Reason  string     `json:"reason,omitempty"`

	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

func (s *SignInLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
