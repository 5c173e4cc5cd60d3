// Package engine defines the contract with the external difficulty and
// performance calculator. The mathematics live outside this repository; the
// service only builds invocations and consumes numeric attributes.
package engine

import (
	"context"

	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/internal/domain/mods"
)

// Spec carries every attribute of one engine invocation. Optional
// attributes are pointers; nil means "let the engine default it".
type Spec struct {
	// Mode is the base game mode (0-3) the chart should be converted to.
	Mode int

	// NewFormat selects the new score-counting format.
	NewFormat bool

	// Mods is the normalized mod representation, or nil for no mods. A
	// Legacy bitmask is forwarded as a bare numeric value when NewFormat
	// is false, matching legacy client semantics.
	Mods mods.GameMods

	Accuracy         *float64
	Combo            *int
	Misses           *int
	PassedObjects    *int
	LegacyTotalScore *int64

	// Exact hit counts, used on the bulk path where the full breakdown
	// is already persisted.
	N300 *int
	N100 *int
	N50  *int
	Geki *int
	Katu *int
}

// Attributes is the engine's numeric output for one invocation.
type Attributes struct {
	PP       float64 `json:"pp"`
	Stars    float64 `json:"stars"`
	MaxCombo int     `json:"max_combo"`
}

// Engine computes performance attributes for a beatmap and play spec.
//
// Calculate fails explicitly with ErrUnsupportedMode when the chart cannot
// be converted to the requested mode, rather than silently falling back to
// the chart's native mode.
type Engine interface {
	Calculate(ctx context.Context, bm *beatmap.Beatmap, spec Spec) (Attributes, error)
}
