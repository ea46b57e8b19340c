package abtest

import (
	"errors"
	"fmt"
)

// ErrInvalidOutcome is returned when an outcome holds impossible counts,
// such as more conversions than observations.
var ErrInvalidOutcome = errors.New("invalid outcome")

// ConfigurationError reports an invalid input parameter. Field carries the
// parameter's external (json) name.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// NumericalDegeneracyError is raised when a computation is undefined and no
// statistical convention exists to substitute a value.
type NumericalDegeneracyError struct {
	Op     string
	Reason string
}

func (e *NumericalDegeneracyError) Error() string {
	return fmt.Sprintf("%s: numerical degeneracy: %s", e.Op, e.Reason)
}

// InvalidStateError is returned for operations that the current state does
// not allow, such as advancing a finished sequential test.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid state: %s", e.Op, e.Reason)
}

func configErr(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
