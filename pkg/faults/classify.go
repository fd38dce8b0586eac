package faults

import (
	"errors"
	"strings"
)

// Classify converts an arbitrary failure into a typed *Error.
//
// An error that already is (or wraps) an *Error passes through with its
// category, severity and code unchanged; only the supplied context is merged
// in. Anything else falls back to substring heuristics over the message.
// Raising typed faults at the point of failure is always preferred; the
// heuristics exist for truly untyped inputs only.
func Classify(err error, context map[string]any) *Error {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.MergeContext(context)
	}

	ferr = classifyMessage(err.Error())
	ferr.Err = err
	ferr.Context = cloneContext(context)

	return ferr
}

func classifyMessage(message string) *Error {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "valid"), strings.Contains(lower, "invalid"):
		return New(CategoryValidation, "VALIDATION_ERROR", message)
	case strings.Contains(lower, "auth"), strings.Contains(lower, "permission"):
		return New(CategoryAuthentication, "AUTHENTICATION_ERROR", message)
	case strings.Contains(lower, "connection"), strings.Contains(lower, "network"):
		return New(CategoryIntegration, "INTEGRATION_ERROR", message)
	case strings.Contains(lower, "database"), strings.Contains(lower, "sql"):
		return New(CategoryDatabase, "DATABASE_ERROR", message)
	default:
		return New(CategorySystem, "SYSTEM_ERROR", message)
	}
}

func cloneContext(context map[string]any) map[string]any {
	if len(context) == 0 {
		return nil
	}

	clone := make(map[string]any, len(context))
	for k, v := range context {
		clone[k] = v
	}

	return clone
}
