package beatmaps

import "errors"

// Sentinel kinds for beatmap resolution errors.
var (
	// ErrNotFound reports that the beatmap exists neither locally nor at
	// the remote source.
	ErrNotFound = errors.New("beatmap not found")

	// ErrExternalService reports a remote fetch failure other than a
	// plain not-found response.
	ErrExternalService = errors.New("beatmap source unavailable")
)
