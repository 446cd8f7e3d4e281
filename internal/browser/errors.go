package browser

import "strings"

// Structured error codes surfaced to the agent so the model can reason about
// recovery instead of parsing Go error strings.
const (
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeSessionExists    = "SESSION_EXISTS"
	ErrCodeTabNotFound      = "TAB_NOT_FOUND"
	ErrCodeElementNotFound  = "ELEMENT_NOT_FOUND"
	ErrCodeTimeout          = "TIMEOUT_ERROR"
	ErrCodeNavigation       = "NAVIGATION_ERROR"
	ErrCodeInvalidAction    = "INVALID_ACTION"
	ErrCodeExecutionFailure = "EXECUTION_FAILURE"
)

// classifyError maps a raw browser error onto one of the structured codes
// with a simple heuristic over the error text.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out"):
		return ErrCodeTimeout
	case strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "waiting for selector") ||
		strings.Contains(msg, "no nodes") ||
		strings.Contains(msg, "not visible"):
		return ErrCodeElementNotFound
	case strings.Contains(msg, "net::") ||
		strings.Contains(msg, "navigation") ||
		strings.Contains(msg, "dns") ||
		strings.Contains(msg, "err_name_not_resolved"):
		return ErrCodeNavigation
	default:
		return ErrCodeExecutionFailure
	}
}
