package utils

import "errors"

// Sentinel errors shared between the service layer and controllers. Controllers
// map these onto HTTP statuses; services stay transport-agnostic.
var (
	ErrNotFound                = errors.New("resource not found")
	ErrForbidden               = errors.New("operation not permitted")
	ErrTenantPlanNotConfigured = errors.New("tenant has no subscription plan configured")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrAccountSuspended        = errors.New("account is suspended")
	ErrTenantSuspended         = errors.New("tenant is suspended")
	ErrDuplicateEmail          = errors.New("email is already registered")
	ErrDuplicateSlug           = errors.New("tenant slug is already taken")
)
