package entities

import "fmt"

// OutOfRangeError rejects a configuration value before any persistence or
// device call happens.
type OutOfRangeError struct {
	Field  string
	Reason string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
