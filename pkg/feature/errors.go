package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrFlagNotFound indicates that the requested feature flag was not found.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrInvalidFlag indicates a malformed flag definition. Validation failures
	// are joined with this error so callers can test for it with errors.Is.
	ErrInvalidFlag = errors.New("invalid feature flag definition")

	// ErrUnknownOperator indicates a rule condition with an operator this package does not implement.
	ErrUnknownOperator = errors.New("unknown rule operator")

	// ErrInvalidCondition indicates a rule condition whose operand does not fit its operator.
	ErrInvalidCondition = errors.New("invalid rule condition")
)
