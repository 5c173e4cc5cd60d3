package model

import "fmt"

// CalculationRequest is the attribute set for an on-demand performance
// calculation. Optional attributes are pointers; nil means "not supplied"
// and is never forwarded to the engine.
type CalculationRequest struct {
	BeatmapID     int64    `json:"beatmap_id"`
	Mode          int      `json:"mode"`
	Mods          string   `json:"mods,omitempty"`
	Accuracy      float64  `json:"accuracy"`
	MaxCombo      *int     `json:"max_combo,omitempty"`
	Misses        *int     `json:"miss_count,omitempty"`
	PassedObjects *int     `json:"passed_objects,omitempty"`
	LegacyScore   *int64   `json:"legacy_score,omitempty"`
	NewFormat     *bool    `json:"new_format,omitempty"`
}

// Validate rejects malformed requests before any store or engine access.
func (r *CalculationRequest) Validate() error {
	if r.BeatmapID <= 0 {
		return fmt.Errorf("%w: beatmap_id must be provided", ErrMissingBeatmapID)
	}
	if r.Mode < ModeOsu || r.Mode > ModeMania {
		return fmt.Errorf("%w: %d", ErrInvalidGameMode, r.Mode)
	}
	if r.Accuracy < 0.0 || r.Accuracy > 100.0 {
		return fmt.Errorf("%w: %g", ErrInvalidAccuracy, r.Accuracy)
	}
	// A legacy total score only exists under the legacy counting format.
	if r.LegacyScore != nil && r.NewFormat != nil && *r.NewFormat {
		return fmt.Errorf("%w: legacy_score with new_format", ErrFormatConflict)
	}
	return nil
}

// IsNewFormat reports the score-format flag, defaulting to legacy.
func (r *CalculationRequest) IsNewFormat() bool {
	return r.NewFormat != nil && *r.NewFormat
}
