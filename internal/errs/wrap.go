// Package errs collects the error wrapping helper and the typed error
// taxonomy of spec §7 that the block-production core uses to distinguish
// recoverable outcomes from conditions that must halt the node.
package errs

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
// Mirrors the teacher's pkg/utils.Wrap helper.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
