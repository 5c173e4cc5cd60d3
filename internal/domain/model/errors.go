package model

import "errors"

// Sentinel kinds for request validation. All of them are ValidationError
// family: surfaced to callers, never retried.
var (
	ErrMissingBeatmapID = errors.New("missing beatmap id")
	ErrInvalidGameMode  = errors.New("invalid game mode")
	ErrInvalidAccuracy  = errors.New("invalid accuracy")
	ErrFormatConflict   = errors.New("conflicting score format")
)

// IsValidationError reports whether err belongs to the validation family.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingBeatmapID) ||
		errors.Is(err, ErrInvalidGameMode) ||
		errors.Is(err, ErrInvalidAccuracy) ||
		errors.Is(err, ErrFormatConflict)
}
