package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "PLANNING"
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
)

// Project is a tenant-scoped security project (threat model, SBOM review,
// compliance audit). Dashboard stats count these per role scope.
type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID uuid.UUID     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	OwnerID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name     string        `gorm:"not null" json:"name"`
	Status   ProjectStatus `gorm:"default:'PLANNING'" json:"status"`
	DueAt    *time.Time    `json:"due_at,omitempty"`

	// Relations
	Tenant Tenant `gorm:"foreignKey:TenantID" json:"-"`
	Owner  User   `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Progress maps status onto a rough completion percentage for dashboards
func (p *Project) Progress() int {
	switch p.Status {
	case ProjectStatusCompleted:
		return 100
	case ProjectStatusActive:
		return 75
	case ProjectStatusPlanning:
		return 25
	default:
		return 50
	}
}
