package datastore

import (
	"fmt"
	"strings"

	"github.com/tphakala/pokerwatch/internal/errors"
)

var errNotOpen = errors.NewStd("database connection is not initialized")

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	return contextError(err, errors.CategoryDatabase, operation, priority, context...)
}

// writeError marks a failed, rolled back write. The orchestrator retries the
// whole cycle on this category.
func writeError(err error, operation string, context ...any) error {
	return contextError(err, errors.CategoryStoreWrite, operation, errors.PriorityHigh, context...)
}

// stateError creates a state error (missing connection, bad transaction)
func stateError(err error, operation, stateType string) error {
	priority := errors.PriorityMedium
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "deadlock") || strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") {
		priority = errors.PriorityHigh
	}

	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryState).
		Priority(priority).
		Context("operation", operation).
		Context("state_type", stateType).
		Build()
}

// validationError rejects bad input before it reaches the database
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

func contextError(err error, category errors.ErrorCategory, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}
