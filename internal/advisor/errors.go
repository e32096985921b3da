package advisor

import "errors"

var (
	// ErrDisabled indicates the advisor has no API key configured and
	// cannot be consulted.
	ErrDisabled = errors.New("advisor: disabled (no API key configured)")

	// ErrNoContent indicates the model returned an empty response.
	ErrNoContent = errors.New("advisor: model returned no content")
)
