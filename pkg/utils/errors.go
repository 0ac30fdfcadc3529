// Package utils provides shared helpers (error wrapping, environment
// variable lookups) used across ledgercore's command and config layers.
package utils

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
// Callers that need a typed, matchable error (e.g. a storage fault)
// should use internal/errs instead; Wrap is for plain context messages.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
