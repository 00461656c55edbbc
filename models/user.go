package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStatus mirrors TenantStatus for individual accounts
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User represents a user account. TenantID is nil only for platform admins,
// who operate across tenant boundaries.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Authentication fields
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	OTP          string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	// Profile information
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`

	// Tenancy and authorization
	TenantID *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Role     UserRole   `gorm:"default:'END_USER';index" json:"role"`

	// Account status. Users are never hard-deleted; deactivation flips these.
	Status      UserStatus `gorm:"default:'ACTIVE'" json:"status"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Incremented on logout/password change to invalidate outstanding tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName returns the display name, falling back to first+last
func (u *User) FullName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}
