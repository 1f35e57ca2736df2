// Package apperr centralizes the stable error taxonomy shared by every service.
// The HTTP layer is the only place that maps a Kind to a status code; nothing else
// should switch on error strings.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a stable, language-neutral error identifier.
type Kind string

const (
	KindValidationFailed       Kind = "validation_failed"
	KindInvalidCredentials     Kind = "invalid_credentials"
	KindAccountBanned          Kind = "account_banned"
	KindAccountNotVerified     Kind = "account_not_verified"
	KindInvalidToken           Kind = "invalid_token"
	KindTokenExpired           Kind = "token_expired"
	KindTokenReuseDetected     Kind = "token_reuse_detected"
	KindTwoFactorRequired      Kind = "two_factor_required"
	KindTwoFactorInvalid       Kind = "two_factor_invalid"
	KindTwoFactorLocked        Kind = "two_factor_locked"
	KindConflictEmail          Kind = "conflict_email"
	KindConflictSlug           Kind = "conflict_slug"
	KindConflictGroupName      Kind = "conflict_group_name"
	KindPermissionAlreadyGrant Kind = "permission_already_granted"
	KindNotFound               Kind = "not_found"
	KindNotAMember             Kind = "not_a_member"
	KindInsufficientRole       Kind = "insufficient_role"
	KindInsufficientPermission Kind = "insufficient_permission"
	KindRateLimited            Kind = "rate_limited"
	KindServiceUnavailable     Kind = "service_unavailable"
	KindInternal               Kind = "internal_error"
)

// httpStatus maps each Kind to the status code the HTTP layer returns.
var httpStatus = map[Kind]int{
	KindValidationFailed:       http.StatusBadRequest,
	KindInvalidCredentials:     http.StatusUnauthorized,
	KindAccountBanned:          http.StatusForbidden,
	KindAccountNotVerified:     http.StatusForbidden,
	KindInvalidToken:           http.StatusUnauthorized,
	KindTokenExpired:           http.StatusUnauthorized,
	KindTokenReuseDetected:     http.StatusUnauthorized,
	KindTwoFactorRequired:      http.StatusUnauthorized,
	KindTwoFactorInvalid:       http.StatusUnauthorized,
	KindTwoFactorLocked:        http.StatusLocked,
	KindConflictEmail:          http.StatusConflict,
	KindConflictSlug:           http.StatusConflict,
	KindConflictGroupName:      http.StatusConflict,
	KindPermissionAlreadyGrant: http.StatusConflict,
	KindNotFound:               http.StatusNotFound,
	KindNotAMember:             http.StatusForbidden,
	KindInsufficientRole:       http.StatusForbidden,
	KindInsufficientPermission: http.StatusForbidden,
	KindRateLimited:            http.StatusTooManyRequests,
	KindServiceUnavailable:     http.StatusServiceUnavailable,
	KindInternal:               http.StatusInternalServerError,
}

// Error is the typed error every service returns at its public boundary.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// HTTPStatus returns the status code the wire layer should answer with.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds a typed error for the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Withf attaches structured details to an existing kind.
func Withf(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to internal_error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
