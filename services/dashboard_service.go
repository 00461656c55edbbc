package services

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"blicktrack/models"
	"blicktrack/utils"
)

// DashboardStats is the role-scoped stats payload. Platform-only fields are
// pointers so tenant and end-user responses omit them.
type DashboardStats struct {
	Role  models.UserRole `json:"role"`
	Scope string          `json:"scope"` // platform, tenant or user

	TotalTenants  *int64 `json:"total_tenants,omitempty"`
	ActiveTenants *int64 `json:"active_tenants,omitempty"`

	TotalUsers  int64 `json:"total_users,omitempty"`
	ActiveUsers int64 `json:"active_users,omitempty"`

	TotalProjects     int64 `json:"total_projects"`
	ActiveProjects    int64 `json:"active_projects"`
	CompletedProjects int64 `json:"completed_projects"`

	EnabledFeatures int `json:"enabled_features,omitempty"`
}

// ActivityItem is one row of the recent-activity feed
type ActivityItem struct {
	ID        uuid.UUID            `json:"id"`
	Category  string               `json:"category"` // project, security, user or system
	EventType string               `json:"event_type"`
	Message   string               `json:"message"`
	Severity  models.AuditSeverity `json:"severity"`
	Timestamp time.Time            `json:"timestamp"`
}

// ProjectSummary is the dashboard's view of a project
type ProjectSummary struct {
	ID       uuid.UUID            `json:"id"`
	Name     string               `json:"name"`
	Status   models.ProjectStatus `json:"status"`
	Progress int                  `json:"progress"`
	Owner    string               `json:"owner"`
	DueAt    *time.Time           `json:"due_at,omitempty"`
}

// SystemHealth reports component status. Degradation is expressed in the
// payload, never as a 5xx, so monitoring dashboards can always render it.
type SystemHealth struct {
	Status    string         `json:"status"` // healthy or unhealthy
	Database  ComponentCheck `json:"database"`
	Memory    MemoryStats    `json:"memory"`
	UptimeSec int64          `json:"uptime_seconds"`
	Timestamp time.Time      `json:"timestamp"`
	Stats     *PlatformStats `json:"stats,omitempty"`
}

type ComponentCheck struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type MemoryStats struct {
	AllocMB    uint64 `json:"alloc_mb"`
	SysMB      uint64 `json:"sys_mb"`
	Goroutines int    `json:"goroutines"`
}

type PlatformStats struct {
	Tenants  int64 `json:"tenants"`
	Users    int64 `json:"users"`
	Projects int64 `json:"projects"`
}

// NavItem is one entry of the role-composed navigation tree. Items carrying a
// feature key are filtered by the tenant's entitlements.
type NavItem struct {
	Label      string    `json:"label"`
	Path       string    `json:"path"`
	Icon       string    `json:"icon,omitempty"`
	FeatureKey string    `json:"feature_key,omitempty"`
	Children   []NavItem `json:"children,omitempty"`
}

type DashboardService struct {
	DB           *gorm.DB
	Entitlements *EntitlementService
	Logger       *logrus.Logger
	startedAt    time.Time
}

func NewDashboardService(db *gorm.DB, ent *EntitlementService, logger *logrus.Logger) *DashboardService {
	return &DashboardService{DB: db, Entitlements: ent, Logger: logger, startedAt: time.Now()}
}

// activeUserWindow is how far back a login still counts as "active"
const activeUserWindow = 30 * 24 * time.Hour

// GetStats returns counts scoped by role: platform admins see the whole
// platform, tenant admins their tenant, everyone else their own projects.
func (s *DashboardService) GetStats(ctx context.Context, user *models.User) (*DashboardStats, error) {
	switch {
	case user.Role.IsPlatformLevel():
		return s.platformStats(ctx)
	case user.Role == models.RoleTenantAdmin:
		if user.TenantID == nil {
			return nil, utils.ErrForbidden
		}
		return s.tenantStats(ctx, user, *user.TenantID)
	default:
		return s.userStats(ctx, user)
	}
}

func (s *DashboardService) platformStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{Role: models.RolePlatformAdmin, Scope: "platform"}
	var totalTenants, activeTenants int64
	cutoff := time.Now().Add(-activeUserWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Tenant{}).Count(&totalTenants).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Tenant{}).
			Where("status = ?", models.TenantStatusActive).Count(&activeTenants).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.User{}).Count(&stats.TotalUsers).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.User{}).
			Where("last_login_at >= ?", cutoff).Count(&stats.ActiveUsers).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).Count(&stats.TotalProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("status = ?", models.ProjectStatusActive).Count(&stats.ActiveProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("status = ?", models.ProjectStatusCompleted).Count(&stats.CompletedProjects).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.TotalTenants = &totalTenants
	stats.ActiveTenants = &activeTenants
	return stats, nil
}

func (s *DashboardService) tenantStats(ctx context.Context, user *models.User, tenantID uuid.UUID) (*DashboardStats, error) {
	stats := &DashboardStats{Role: user.Role, Scope: "tenant"}
	cutoff := time.Now().Add(-activeUserWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.User{}).
			Where("tenant_id = ?", tenantID).Count(&stats.TotalUsers).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.User{}).
			Where("tenant_id = ? AND last_login_at >= ?", tenantID, cutoff).Count(&stats.ActiveUsers).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("tenant_id = ?", tenantID).Count(&stats.TotalProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("tenant_id = ? AND status = ?", tenantID, models.ProjectStatusActive).Count(&stats.ActiveProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("tenant_id = ? AND status = ?", tenantID, models.ProjectStatusCompleted).Count(&stats.CompletedProjects).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	features, err := s.Entitlements.ResolveTenantFeatures(tenantID)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		if f.Enabled {
			stats.EnabledFeatures++
		}
	}

	return stats, nil
}

func (s *DashboardService) userStats(ctx context.Context, user *models.User) (*DashboardStats, error) {
	stats := &DashboardStats{Role: user.Role, Scope: "user"}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("owner_id = ?", user.ID).Count(&stats.TotalProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("owner_id = ? AND status = ?", user.ID, models.ProjectStatusActive).Count(&stats.ActiveProjects).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Project{}).
			Where("owner_id = ? AND status = ?", user.ID, models.ProjectStatusCompleted).Count(&stats.CompletedProjects).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetRecentActivity returns the latest audit events visible to the user
func (s *DashboardService) GetRecentActivity(user *models.User, limit int) ([]ActivityItem, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	query := s.DB.Model(&models.AuditLog{}).Order("created_at DESC").Limit(limit)
	switch {
	case user.Role.IsPlatformLevel():
		// unscoped
	case user.Role == models.RoleTenantAdmin && user.TenantID != nil:
		query = query.Where("tenant_id = ?", *user.TenantID)
	default:
		query = query.Where("user_id = ?", user.ID)
	}

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	items := make([]ActivityItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, ActivityItem{
			ID:        l.ID,
			Category:  activityCategory(l.EventType),
			EventType: l.EventType,
			Message:   l.Action,
			Severity:  l.Severity,
			Timestamp: l.CreatedAt,
		})
	}
	return items, nil
}

func activityCategory(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "PROJECT_"):
		return "project"
	case strings.HasPrefix(eventType, "AUTHENTICATION_"), eventType == models.EventSecurityAlert:
		return "security"
	case strings.HasPrefix(eventType, "USER_"):
		return "user"
	default:
		return "system"
	}
}

// GetProjects returns the project list visible to the user
func (s *DashboardService) GetProjects(user *models.User, limit int) ([]ProjectSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := s.DB.Preload("Owner").Order("updated_at DESC").Limit(limit)
	switch {
	case user.Role.IsPlatformLevel():
		// unscoped
	case user.Role == models.RoleTenantAdmin && user.TenantID != nil:
		query = query.Where("tenant_id = ?", *user.TenantID)
	default:
		query = query.Where("owner_id = ?", user.ID)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, err
	}

	out := make([]ProjectSummary, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		out = append(out, ProjectSummary{
			ID:       p.ID,
			Name:     p.Name,
			Status:   p.Status,
			Progress: p.Progress(),
			Owner:    p.Owner.FullName(),
			DueAt:    p.DueAt,
		})
	}
	return out, nil
}

// GetSystemHealth probes the database and reports overall status. An
// unhealthy component degrades the payload instead of failing the request.
func (s *DashboardService) GetSystemHealth(ctx context.Context) *SystemHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	health := &SystemHealth{
		Status: "healthy",
		Memory: MemoryStats{
			AllocMB:    mem.Alloc / 1024 / 1024,
			SysMB:      mem.Sys / 1024 / 1024,
			Goroutines: runtime.NumGoroutine(),
		},
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Timestamp: time.Now(),
	}

	start := time.Now()
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	health.Database.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		health.Database.Status = "unhealthy"
		health.Database.Error = err.Error()
		health.Status = "unhealthy"
		s.Logger.WithError(err).Error("database health check failed")
	} else {
		health.Database.Status = "healthy"
	}

	return health
}

// GetNavigation composes the navigation tree for the user's role. Admin tiers
// extend the tiers below them, so every item an end user sees is also present
// for their tenant admin and for platform admins. Feature-gated items are
// filtered by the tenant's entitlements; platform admins see everything.
func (s *DashboardService) GetNavigation(user *models.User) ([]NavItem, error) {
	nav := navigationForRole(user.Role)

	if user.Role.IsPlatformLevel() {
		return nav, nil
	}
	if user.TenantID == nil {
		return nav, nil
	}

	features, err := s.Entitlements.ResolveTenantFeatures(*user.TenantID)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(features))
	for _, f := range features {
		enabled[f.Key] = f.Enabled
		for _, sub := range f.SubFeatures {
			enabled[sub.Key] = sub.Enabled
		}
	}

	return filterNav(nav, enabled), nil
}

func filterNav(items []NavItem, enabled map[string]bool) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		if item.FeatureKey != "" && !enabled[item.FeatureKey] {
			continue
		}
		item.Children = filterNav(item.Children, enabled)
		out = append(out, item)
	}
	return out
}

var baseNav = []NavItem{
	{Label: "Dashboard", Path: "/dashboard", Icon: "home"},
	{Label: "Projects", Path: "/projects", Icon: "folder"},
	{Label: "Threat Models", Path: "/threat-models", Icon: "shield", FeatureKey: "product-threat-modeling"},
	{Label: "SBOM", Path: "/sbom", Icon: "package", FeatureKey: "sbom-management"},
	{Label: "Code Review", Path: "/code-review", Icon: "code", FeatureKey: "secure-code-review"},
	{Label: "Reports", Path: "/reports", Icon: "bar-chart", FeatureKey: "compliance-reporting"},
	{Label: "Profile", Path: "/profile", Icon: "user"},
}

var tenantAdminNav = append([]NavItem{}, append(baseNav, []NavItem{
	{Label: "User Management", Path: "/admin/users", Icon: "users"},
	{Label: "Feature Management", Path: "/admin/features", Icon: "toggle-left"},
	{Label: "Tenant Settings", Path: "/admin/settings", Icon: "settings"},
	{Label: "Risk Assessment", Path: "/admin/risk", Icon: "alert-triangle", FeatureKey: "risk-assessment"},
}...)...)

var platformAdminNav = append([]NavItem{}, append(tenantAdminNav, []NavItem{
	{Label: "Tenant Administration", Path: "/platform/tenants", Icon: "briefcase"},
	{Label: "Global Users", Path: "/platform/users", Icon: "globe"},
	{Label: "System Health", Path: "/platform/health", Icon: "activity"},
	{Label: "Platform Settings", Path: "/platform/settings", Icon: "sliders"},
}...)...)

func navigationForRole(role models.UserRole) []NavItem {
	var src []NavItem
	switch {
	case role.IsPlatformLevel():
		src = platformAdminNav
	case role == models.RoleTenantAdmin:
		src = tenantAdminNav
	default:
		src = baseNav
	}
	out := make([]NavItem, len(src))
	copy(out, src)
	return out
}

// GetPermissions returns the static capability set for the user's role
func (s *DashboardService) GetPermissions(user *models.User) []string {
	return models.PermissionsForRole(user.Role)
}
