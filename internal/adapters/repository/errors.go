package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("row not found")
)
