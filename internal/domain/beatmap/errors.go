package beatmap

import "errors"

// Sentinel kinds for beatmap parsing errors.
var (
	ErrMalformed = errors.New("malformed beatmap")
)
