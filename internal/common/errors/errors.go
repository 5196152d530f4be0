// Package errors provides standardized error handling for the engagement
// notification pipeline. Every failure class here is degradable: the caller
// falls back to a documented default instead of surfacing the fault.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSettingsFetchFailed ErrorCode = "SETTINGS_FETCH_FAILED"
	ErrCodeTypesFetchFailed    ErrorCode = "TYPES_FETCH_FAILED"
	ErrCodeNamesFetchFailed    ErrorCode = "NAMES_FETCH_FAILED"
	ErrCodePayloadInvalid      ErrorCode = "PAYLOAD_INVALID"

	ErrCodeCatalogQueryFailed ErrorCode = "CATALOG_QUERY_FAILED"

	ErrCodeBudgetQueryFailed  ErrorCode = "BUDGET_QUERY_FAILED"
	ErrCodeBudgetCommitFailed ErrorCode = "BUDGET_COMMIT_FAILED"

	ErrCodeGeoLookupFailed  ErrorCode = "GEO_LOOKUP_FAILED"
	ErrCodeCitySearchFailed ErrorCode = "CITY_SEARCH_FAILED"

	ErrCodeLogAppendFailed ErrorCode = "LOG_APPEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fallback  string                 `json:"fallback,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewSettingsFetchFailedError notes the fallback to configured defaults.
func NewSettingsFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsFetchFailed,
		Message:   "Back-office settings fetch failed",
		Details:   err.Error(),
		Fallback:  "configured default settings",
		Timestamp: time.Now().UTC(),
	}
}

func NewTypesFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTypesFetchFailed,
		Message:   "Notification types fetch failed",
		Details:   err.Error(),
		Fallback:  "scheduler stays idle until types load",
		Timestamp: time.Now().UTC(),
	}
}

func NewNamesFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNamesFetchFailed,
		Message:   "Name list fetch failed",
		Details:   err.Error(),
		Fallback:  "configured default name",
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadInvalidError covers schema-invalid back-office responses.
func NewPayloadInvalidError(endpoint, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   fmt.Sprintf("Response from %s failed schema validation", endpoint),
		Details:   details,
		Fallback:  "payload discarded",
		Timestamp: time.Now().UTC(),
	}
}

func NewCatalogQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogQueryFailed,
		Message:   "Catalog read model query failed",
		Details:   err.Error(),
		Fallback:  "scheduler stays idle until catalog loads",
		Timestamp: time.Now().UTC(),
	}
}

func NewBudgetQueryFailedError(sessionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBudgetQueryFailed,
		Message:   "Remote session budget query failed",
		Details:   err.Error(),
		Fallback:  "local counter used as approximation",
		Metadata:  map[string]interface{}{"sessionId": sessionID},
		Timestamp: time.Now().UTC(),
	}
}

func NewBudgetCommitFailedError(sessionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBudgetCommitFailed,
		Message:   "Remote session budget increment failed",
		Details:   err.Error(),
		Fallback:  "remote counter under-counts this session",
		Metadata:  map[string]interface{}{"sessionId": sessionID},
		Timestamp: time.Now().UTC(),
	}
}

func NewGeoLookupFailedError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeoLookupFailed,
		Message:   fmt.Sprintf("Geolocation service '%s' lookup failed", service),
		Details:   err.Error(),
		Fallback:  "location fields stay null",
		Timestamp: time.Now().UTC(),
	}
}

func NewCitySearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCitySearchFailed,
		Message:   "Radius city search failed",
		Details:   err.Error(),
		Fallback:  "registry/lookup city or default literal",
		Timestamp: time.Now().UTC(),
	}
}

func NewLogAppendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLogAppendFailed,
		Message:   "Notification log append failed",
		Details:   err.Error(),
		Fallback:  "entry dropped, never retried",
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SETTINGS") || strings.Contains(codeStr, "TYPES") ||
		strings.Contains(codeStr, "NAMES") || strings.Contains(codeStr, "PAYLOAD"):
		return "BOOTSTRAP"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "BUDGET"):
		return "BUDGET"
	case strings.Contains(codeStr, "GEO") || strings.Contains(codeStr, "CITY"):
		return "GEO"
	case strings.Contains(codeStr, "LOG"):
		return "LOGGING"
	default:
		return "OTHER"
	}
}
