package models

import (
	"gorm.io/gorm"
)

// Migrate creates/updates the relational schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SubscriptionPlan{},
		&Tenant{},
		&User{},
		&FeatureCategory{},
		&Feature{},
		&PlanFeature{},
		&TenantFeature{},
		&Project{},
		&AuditLog{},
		&SignInLog{},
		&PlanTransaction{},
	)
}

// CreateDefaultPlans seeds the subscription tiers
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []SubscriptionPlan{
		{
			Name:          "PROFESSIONAL",
			DisplayName:   "Professional",
			Description:   "Advanced features for growing security teams",
			Price:         9900, // $99
			Currency:      "USD",
			BillingPeriod: "monthly",
			MaxUsers:      50,
			MaxProjects:   25,
			StorageLimit:  10240, // 10GB
			IsActive:      true,
			IsPublic:      true,
		},
		{
			Name:          "ENTERPRISE",
			DisplayName:   "Enterprise",
			Description:   "Full-featured solution for large organizations",
			Price:         29900, // $299
			Currency:      "USD",
			BillingPeriod: "monthly",
			MaxUsers:      500,
			MaxProjects:   100,
			StorageLimit:  102400, // 100GB
			IsActive:      true,
			IsPublic:      true,
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return nil
}

type seedFeature struct {
	Key            string
	Name           string
	Description    string
	Category       string
	DefaultEnabled bool
	IsPremium      bool
	SubFeatures    []seedFeature
}

var defaultCategories = []FeatureCategory{
	{Key: "it-security", Name: "IT Security", Description: "Infrastructure and network security"},
	{Key: "product-security", Name: "Product Security", Description: "Application and supply-chain security"},
	{Key: "compliance", Name: "Compliance", Description: "Compliance reporting and auditing"},
	{Key: "core-platform", Name: "Core Platform", Description: "Platform-wide capabilities"},
}

var defaultFeatures = []seedFeature{
	{
		Key:            "sbom-management",
		Name:           "SBOM Management",
		Description:    "Software bill of materials ingestion, analysis and reporting",
		Category:       "product-security",
		DefaultEnabled: true,
		SubFeatures: []seedFeature{
			{Key: "sbom-import", Name: "SBOM Import", Description: "Import SPDX and CycloneDX documents", DefaultEnabled: true},
			{Key: "sbom-diff", Name: "SBOM Diff", Description: "Compare component inventories across releases", DefaultEnabled: true},
		},
	},
	{
		Key:            "it-threat-modeling",
		Name:           "IT Infrastructure Threat Modeling",
		Description:    "Threat modeling for networks and enterprise systems",
		Category:       "it-security",
		DefaultEnabled: true,
	},
	{
		Key:            "product-threat-modeling",
		Name:           "Product Threat Modeling",
		Description:    "Threat modeling for applications and the development lifecycle",
		Category:       "product-security",
		DefaultEnabled: true,
	},
	{
		Key:            "secure-code-review",
		Name:           "Secure Code Review",
		Description:    "Automated and manual secure code review workflows",
		Category:       "product-security",
		DefaultEnabled: true,
	},
	{
		Key:            "compliance-reporting",
		Name:           "Compliance Reporting",
		Description:    "Automated reporting for SOC2, ISO27001, NIST and GDPR",
		Category:       "compliance",
		DefaultEnabled: true,
	},
	{
		Key:            "risk-assessment",
		Name:           "Risk Assessment",
		Description:    "Risk assessment and management workflows",
		Category:       "it-security",
		DefaultEnabled: true,
	},
	{
		Key:            "sso-integration",
		Name:           "Single Sign-On Integration",
		Description:    "Enterprise SSO with multiple identity providers",
		Category:       "core-platform",
		DefaultEnabled: false,
		IsPremium:      true,
	},
}

// CreateDefaultFeatures seeds the feature catalog, categories and the
// plan-feature defaults for each seeded plan
func CreateDefaultFeatures(db *gorm.DB) error {
	categories := make(map[string]FeatureCategory, len(defaultCategories))
	for _, cat := range defaultCategories {
		if err := db.FirstOrCreate(&cat, "key = ?", cat.Key).Error; err != nil {
			return err
		}
		categories[cat.Key] = cat
	}

	var plans []SubscriptionPlan
	if err := db.Where("is_active = ?", true).Find(&plans).Error; err != nil {
		return err
	}

	for _, sf := range defaultFeatures {
		feature := Feature{
			Key:            sf.Key,
			Name:           sf.Name,
			DisplayName:    sf.Name,
			Description:    sf.Description,
			DefaultEnabled: sf.DefaultEnabled,
			IsPremium:      sf.IsPremium,
			IsActive:       true,
			IsVisible:      true,
		}
		if err := db.FirstOrCreate(&feature, "key = ?", sf.Key).Error; err != nil {
			return err
		}

		if cat, ok := categories[sf.Category]; ok {
			if err := db.Model(&feature).Association("Categories").Append(&cat); err != nil {
				return err
			}
		}

		children := make([]Feature, 0, len(sf.SubFeatures))
		for _, sub := range sf.SubFeatures {
			child := Feature{
				Key:            sub.Key,
				Name:           sub.Name,
				DisplayName:    sub.Name,
				Description:    sub.Description,
				ParentID:       &feature.ID,
				DefaultEnabled: sub.DefaultEnabled,
				IsActive:       true,
				IsVisible:      true,
			}
			if err := db.FirstOrCreate(&child, "key = ?", sub.Key).Error; err != nil {
				return err
			}
			children = append(children, child)
		}

		// Plan defaults, for the feature and its sub-features. A feature
		// without a plan row is not entitled, so every seeded feature gets
		// one per plan; premium features are enabled only on ENTERPRISE.
		for _, plan := range plans {
			enabled := sf.DefaultEnabled
			if sf.IsPremium && plan.Name != "ENTERPRISE" {
				enabled = false
			}
			pf := PlanFeature{
				PlanID:    plan.ID,
				FeatureID: feature.ID,
				Enabled:   enabled,
			}
			if err := db.FirstOrCreate(&pf, "plan_id = ? AND feature_id = ?", plan.ID, feature.ID).Error; err != nil {
				return err
			}
			for _, child := range children {
				cpf := PlanFeature{
					PlanID:    plan.ID,
					FeatureID: child.ID,
					Enabled:   enabled && child.DefaultEnabled,
				}
				if err := db.FirstOrCreate(&cpf, "plan_id = ? AND feature_id = ?", plan.ID, child.ID).Error; err != nil {
					return err
				}
			}
		}
	}
	return nil
}
