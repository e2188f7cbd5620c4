package flagstore

import "errors"

var (
	// ErrFlagExists is returned when creating a flag whose key is taken.
	ErrFlagExists = errors.New("flagstore: flag already exists")

	// ErrSaltImmutable is returned when an update tries to change a flag's salt.
	ErrSaltImmutable = errors.New("flagstore: flag salt cannot change after creation")

	// ErrOverrideNotFound is returned when deleting an override that does not exist.
	ErrOverrideNotFound = errors.New("flagstore: override not found")

	// ErrInvalidOverride is returned for overrides with an unknown scope, no target or a non bool/string value.
	ErrInvalidOverride = errors.New("flagstore: invalid override")

	// ErrMissingSalt is returned when a flag file omits a salt.
	ErrMissingSalt = errors.New("flagstore: flag definition has no salt")

	// ErrDecodeFile is returned when a flag file cannot be decoded.
	ErrDecodeFile = errors.New("flagstore: failed to decode flag file")
)
