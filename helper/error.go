package helper

import "fmt"

// NewError wraps an error with the action that failed. The cause stays
// unwrappable so callers can match error kinds with errors.Is.
func NewError(action string, err error) error {
	return fmt.Errorf("error in %v: %w", action, err)
}
