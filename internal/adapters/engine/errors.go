package engine

import "errors"

// Sentinel kinds for engine invocation errors.
var (
	// ErrUnsupportedMode reports an incompatible mode/beatmap pairing.
	ErrUnsupportedMode = errors.New("unsupported mode for beatmap")

	// ErrEngineFailure reports a transport or calculator failure.
	ErrEngineFailure = errors.New("engine invocation failed")
)
