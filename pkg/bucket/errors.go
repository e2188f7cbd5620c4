package bucket

import "errors"

var (
	// ErrNoVariants is returned by SelectVariant when the variant list is empty.
	ErrNoVariants = errors.New("bucket: no variants to select from")

	// ErrInvalidWeights is returned when no variant carries a positive weight.
	ErrInvalidWeights = errors.New("bucket: variant weights must contain at least one positive value")

	// ErrSaltGeneration is returned when the system random source fails.
	ErrSaltGeneration = errors.New("bucket: failed to generate salt")
)
