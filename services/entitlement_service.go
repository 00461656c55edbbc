package services

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/utils"
)

// EntitlementSource says which layer decided the feature state
type EntitlementSource string

const (
	SourceOverride EntitlementSource = "override"
	SourcePlan     EntitlementSource = "plan"
	SourceDefault  EntitlementSource = "default"
)

// EffectiveFeature is the resolved entitlement for one feature, with one level
// of sub-features nested under their parent
type EffectiveFeature struct {
	ID           uuid.UUID          `json:"id"`
	Key          string             `json:"key"`
	Name         string             `json:"name"`
	DisplayName  string             `json:"display_name"`
	Description  string             `json:"description"`
	Enabled      bool               `json:"enabled"`
	Source       EntitlementSource  `json:"source"`
	IsPremium    bool               `json:"is_premium"`
	MaxUsers     int                `json:"max_users"`
	CurrentUsers int                `json:"current_users"`
	Config       datatypes.JSON     `json:"config,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	SubFeatures  []EffectiveFeature `json:"sub_features,omitempty"`
}

type EntitlementService struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewEntitlementService(db *gorm.DB, logger *logrus.Logger) *EntitlementService {
	return &EntitlementService{DB: db, Logger: logger}
}

// ResolveTenantFeatures computes the full effective feature set for a tenant.
// Resolution order per feature: unexpired tenant override, then the plan's
// row, else not entitled. A tenant with no plan resolves to an empty set
// rather than an error so catalogs render cleanly.
func (s *EntitlementService) ResolveTenantFeatures(tenantID uuid.UUID) ([]EffectiveFeature, error) {
	var tenant models.Tenant
	if err := s.DB.First(&tenant, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}

	if tenant.PlanID == nil {
		return []EffectiveFeature{}, nil
	}

	var features []models.Feature
	if err := s.DB.Where("is_active = ? AND is_visible = ?", true, true).Find(&features).Error; err != nil {
		return nil, err
	}

	planRows, overrides, err := s.loadEntitlementRows(*tenant.PlanID, tenantID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[uuid.UUID]*EffectiveFeature, len(features))
	for i := range features {
		resolved[features[i].ID] = s.resolveOne(&features[i], planRows, overrides)
	}

	// Attach sub-features under their parents. A disabled parent gates its
	// children regardless of their own resolution.
	var roots []EffectiveFeature
	for i := range features {
		f := &features[i]
		if f.ParentID == nil {
			continue
		}
		parent, ok := resolved[*f.ParentID]
		if !ok {
			continue
		}
		child := *resolved[f.ID]
		if !parent.Enabled {
			child.Enabled = false
		}
		parent.SubFeatures = append(parent.SubFeatures, child)
	}
	for i := range features {
		if features[i].ParentID == nil {
			sort.Slice(resolved[features[i].ID].SubFeatures, func(a, b int) bool {
				sf := resolved[features[i].ID].SubFeatures
				return sf[a].Key < sf[b].Key
			})
			roots = append(roots, *resolved[features[i].ID])
		}
	}

	sort.Slice(roots, func(a, b int) bool { return roots[a].Key < roots[b].Key })
	return roots, nil
}

// CatalogFeatures returns the default-enabled feature catalog with sub-features
// nested. Platform-level callers have no tenant to resolve against and see the
// whole catalog instead.
func (s *EntitlementService) CatalogFeatures() ([]EffectiveFeature, error) {
	var features []models.Feature
	if err := s.DB.Where("is_active = ? AND is_visible = ? AND default_enabled = ?",
		true, true, true).Find(&features).Error; err != nil {
		return nil, err
	}

	resolved := make(map[uuid.UUID]*EffectiveFeature, len(features))
	for i := range features {
		f := &features[i]
		resolved[f.ID] = &EffectiveFeature{
			ID:          f.ID,
			Key:         f.Key,
			Name:        f.Name,
			DisplayName: f.DisplayName,
			Description: f.Description,
			Enabled:     true,
			Source:      SourceDefault,
			IsPremium:   f.IsPremium,
			Config:      f.DefaultConfig,
		}
	}

	for i := range features {
		f := &features[i]
		if f.ParentID == nil {
			continue
		}
		if parent, ok := resolved[*f.ParentID]; ok {
			parent.SubFeatures = append(parent.SubFeatures, *resolved[f.ID])
		}
	}

	var roots []EffectiveFeature
	for i := range features {
		if features[i].ParentID != nil {
			continue
		}
		root := resolved[features[i].ID]
		sort.Slice(root.SubFeatures, func(a, b int) bool {
			return root.SubFeatures[a].Key < root.SubFeatures[b].Key
		})
		roots = append(roots, *root)
	}
	sort.Slice(roots, func(a, b int) bool { return roots[a].Key < roots[b].Key })
	return roots, nil
}

// CheckFeatureAccess decides whether a user may use a feature. Platform-level
// roles are allowed unconditionally. For tenant users an unconfigured plan is
// a distinct error so the caller can surface a setup problem instead of a
// silent denial.
func (s *EntitlementService) CheckFeatureAccess(user *models.User, featureKey string) (bool, error) {
	if user.Role.IsPlatformLevel() {
		return true, nil
	}
	if user.TenantID == nil {
		return false, utils.ErrForbidden
	}

	var feature models.Feature
	if err := s.DB.First(&feature, "key = ? AND is_active = ?", featureKey, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, utils.ErrNotFound
		}
		return false, err
	}

	var tenant models.Tenant
	if err := s.DB.First(&tenant, "id = ?", *user.TenantID).Error; err != nil {
		return false, err
	}
	if tenant.PlanID == nil {
		return false, utils.ErrTenantPlanNotConfigured
	}

	planRows, overrides, err := s.loadEntitlementRows(*tenant.PlanID, tenant.ID)
	if err != nil {
		return false, err
	}

	eff := s.resolveOne(&feature, planRows, overrides)

	// Sub-features are additionally gated by their parent
	if feature.ParentID != nil && eff.Enabled {
		var parent models.Feature
		if err := s.DB.First(&parent, "id = ?", *feature.ParentID).Error; err == nil {
			if !s.resolveOne(&parent, planRows, overrides).Enabled {
				eff.Enabled = false
			}
		}
	}

	return eff.Enabled, nil
}

// SetTenantFeatureOverride upserts the per-tenant override row. Concurrent
// writes are last-write-wins.
func (s *EntitlementService) SetTenantFeatureOverride(tenantID uuid.UUID, featureKey string, enabled bool, expiresAt *time.Time) (*models.TenantFeature, error) {
	var feature models.Feature
	if err := s.DB.First(&feature, "key = ?", featureKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}

	var tf models.TenantFeature
	err := s.DB.Where("tenant_id = ? AND feature_id = ?", tenantID, feature.ID).First(&tf).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		tf = models.TenantFeature{
			TenantID:  tenantID,
			FeatureID: feature.ID,
			Enabled:   enabled,
			ExpiresAt: expiresAt,
		}
		if err := s.DB.Create(&tf).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		tf.Enabled = enabled
		tf.ExpiresAt = expiresAt
		if err := s.DB.Save(&tf).Error; err != nil {
			return nil, err
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"feature":   featureKey,
		"enabled":   enabled,
	}).Info("tenant feature override updated")

	tf.Feature = feature
	return &tf, nil
}

func (s *EntitlementService) loadEntitlementRows(planID, tenantID uuid.UUID) (map[uuid.UUID]*models.PlanFeature, map[uuid.UUID]*models.TenantFeature, error) {
	var planFeatures []models.PlanFeature
	if err := s.DB.Where("plan_id = ?", planID).Find(&planFeatures).Error; err != nil {
		return nil, nil, err
	}
	planRows := make(map[uuid.UUID]*models.PlanFeature, len(planFeatures))
	for i := range planFeatures {
		planRows[planFeatures[i].FeatureID] = &planFeatures[i]
	}

	var tenantFeatures []models.TenantFeature
	if err := s.DB.Where("tenant_id = ?", tenantID).Find(&tenantFeatures).Error; err != nil {
		return nil, nil, err
	}
	overrides := make(map[uuid.UUID]*models.TenantFeature, len(tenantFeatures))
	for i := range tenantFeatures {
		overrides[tenantFeatures[i].FeatureID] = &tenantFeatures[i]
	}

	return planRows, overrides, nil
}

func (s *EntitlementService) resolveOne(f *models.Feature, planRows map[uuid.UUID]*models.PlanFeature, overrides map[uuid.UUID]*models.TenantFeature) *EffectiveFeature {
	// No plan row and no override means not entitled. DefaultConfig still
	// rides along as display metadata.
	eff := &EffectiveFeature{
		ID:          f.ID,
		Key:         f.Key,
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
		IsPremium:   f.IsPremium,
		Enabled:     false,
		Source:      SourceDefault,
		Config:      f.DefaultConfig,
	}

	if row, ok := planRows[f.ID]; ok {
		eff.Enabled = row.Enabled
		eff.Source = SourcePlan
		eff.MaxUsers = row.MaxUsers
		eff.CurrentUsers = row.CurrentUsers
		if len(row.Config) > 0 {
			eff.Config = row.Config
		}
	}

	if ov, ok := overrides[f.ID]; ok {
		if ov.ExpiresAt == nil || ov.ExpiresAt.After(time.Now()) {
			eff.Enabled = ov.Enabled
			eff.Source = SourceOverride
			if ov.MaxUsers > 0 {
				eff.MaxUsers = ov.MaxUsers
			}
			eff.CurrentUsers = ov.CurrentUsers
			if len(ov.Config) > 0 {
				eff.Config = ov.Config
			}
			eff.ExpiresAt = ov.ExpiresAt
		}
	}

	return eff
}
