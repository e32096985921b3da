package envelope

import "errors"

// Sentinel errors for payload validation. Wrapped errors carry the
// field-level detail; use errors.Is to classify.
var (
	// ErrInvalidJSON indicates the payload is not parseable JSON.
	ErrInvalidJSON = errors.New("envelope: invalid JSON")

	// ErrInvalidShape indicates the payload parsed but matches none of the
	// accepted envelope shapes, or a required field has the wrong type.
	ErrInvalidShape = errors.New("envelope: invalid payload shape")
)
