// Package apperr defines the service-wide error taxonomy. Every failure that
// crosses the HTTP boundary is an *Error carrying a machine-readable type,
// the status code it maps to, and optional structured details.
package apperr

import (
	"fmt"
	"net/http"
)

// Error type identifiers as they appear in the response envelope.
const (
	TypeValidation        = "validation_error"
	TypeAuthentication    = "authentication_error"
	TypeAuthorization     = "authorization_error"
	TypeNotFound          = "not_found_error"
	TypeConflict          = "conflict_error"
	TypeCostLimitExceeded = "cost_limit_exceeded_error"
	TypeRateLimitExceeded = "rate_limit_exceeded_error"
	TypeExternalService   = "external_service_error"
	TypeCloudProvider     = "cloud_provider_error"
	TypeInfrastructure    = "infrastructure_error"
	TypeTerraform         = "terraform_error"
	TypeConfiguration     = "configuration_error"
	TypeDatabase          = "database_error"
	TypeInternal          = "internal_server_error"
	TypeUnavailable       = "service_unavailable_error"
)

// Error is the single error shape used across the service. Message is the
// developer-facing text; Details carries structured context that is safe to
// return to the caller.
type Error struct {
	Type    string
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail returns e with an extra detail field set.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithCause returns e wrapping the given underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Validation reports a malformed or semantically invalid request.
func Validation(msg string) *Error {
	return &Error{Type: TypeValidation, Status: http.StatusBadRequest, Message: msg}
}

// FieldValidation reports a validation failure tied to a single field.
func FieldValidation(field, msg string) *Error {
	return Validation(msg).WithDetail("field", field)
}

// Authentication reports missing or invalid credentials.
func Authentication(msg string) *Error {
	return &Error{Type: TypeAuthentication, Status: http.StatusUnauthorized, Message: msg}
}

// Authorization reports a permission failure for an authenticated caller.
func Authorization(msg string) *Error {
	return &Error{Type: TypeAuthorization, Status: http.StatusForbidden, Message: msg}
}

// NotFound reports a missing entity.
func NotFound(resource, id string) *Error {
	e := &Error{
		Type:    TypeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
	e.WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// Conflict reports a uniqueness or state conflict.
func Conflict(msg string) *Error {
	return &Error{Type: TypeConflict, Status: http.StatusConflict, Message: msg}
}

// CostLimitExceeded reports an operation rejected by a spend guard.
func CostLimitExceeded(msg string, limit, current float64) *Error {
	e := &Error{Type: TypeCostLimitExceeded, Status: http.StatusPaymentRequired, Message: msg}
	e.WithDetail("limit", limit)
	e.WithDetail("current", current)
	return e
}

// RateLimited reports an exhausted request quota.
func RateLimited(limit int, windowSeconds int) *Error {
	e := &Error{
		Type:    TypeRateLimitExceeded,
		Status:  http.StatusTooManyRequests,
		Message: "rate limit exceeded",
	}
	e.WithDetail("limit", limit)
	e.WithDetail("window", fmt.Sprintf("%ds", windowSeconds))
	e.WithDetail("retry_after", windowSeconds)
	return e
}

// External reports a failure in a third-party dependency.
func External(service, msg string) *Error {
	e := &Error{Type: TypeExternalService, Status: http.StatusBadGateway, Message: msg}
	e.WithDetail("service", service)
	return e
}

// CloudProvider reports a failure from a cloud provider API.
func CloudProvider(provider, msg string) *Error {
	e := &Error{Type: TypeCloudProvider, Status: http.StatusBadGateway, Message: msg}
	e.WithDetail("provider", provider)
	return e
}

// Infrastructure reports a provisioning or orchestration failure.
func Infrastructure(msg string) *Error {
	return &Error{Type: TypeInfrastructure, Status: http.StatusInternalServerError, Message: msg}
}

// Terraform reports a plan/apply failure. Terraform runs as an upstream
// executor, so its failures surface as a bad gateway.
func Terraform(msg string) *Error {
	return &Error{Type: TypeTerraform, Status: http.StatusBadGateway, Message: msg}
}

// Configuration reports a service misconfiguration.
func Configuration(msg string) *Error {
	return &Error{Type: TypeConfiguration, Status: http.StatusInternalServerError, Message: msg}
}

// Unavailable reports an operation whose backing dependency is not wired in
// this deployment.
func Unavailable(msg string) *Error {
	return &Error{Type: TypeUnavailable, Status: http.StatusServiceUnavailable, Message: msg}
}

// Database wraps a storage failure. The cause stays server-side.
func Database(err error) *Error {
	return &Error{
		Type:    TypeDatabase,
		Status:  http.StatusInternalServerError,
		Message: "database operation failed",
		Cause:   err,
	}
}

// Internal is the opaque catch-all for unclassified failures.
func Internal(err error) *Error {
	return &Error{
		Type:    TypeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Cause:   err,
	}
}
