// Package model contains domain models passed between layers.
package model

// Base game modes accepted on the calculation path.
const (
	ModeOsu   = 0
	ModeTaiko = 1
	ModeCatch = 2
	ModeMania = 3
)

// PrivUnrestricted marks an account as visible on public leaderboards.
const PrivUnrestricted = 1 << 0

// RecalcModes lists every mode variant the recalculation engine walks, in
// order: the four base modes plus the compound play-style codes used by the
// host server.
var RecalcModes = []int{0, 1, 2, 3, 4, 5, 6, 8, 12, 16, 20}

// BaseMode reduces a stored mode code (which may encode a play-style
// variant) to one of the four base modes for mod resolution.
func BaseMode(mode int) int {
	m := mode % 4
	if m < 0 {
		m += 4
	}
	return m
}

// Score is a persisted play record joined to its beatmap row.
type Score struct {
	ID       uint64
	Mode     int
	Mods     int
	MapMD5   string
	PP       float64
	Acc      float64
	MaxCombo int
	Geki     int
	N300     int
	Katu     int
	N100     int
	N50      int
	Misses   int
	UserID   int64
	MapID    int64

	// TotalScore is the legacy in-game score value.
	TotalScore int64

	// ModsJSON holds the structured mod list for new-format scores.
	ModsJSON string
	// NewFormat reports whether the score was set under the new
	// score-counting format.
	NewFormat bool
}

// BestScore is the slice of a score row needed for weighted aggregation.
type BestScore struct {
	PP  float64
	Acc float64
}

// UserInfo carries the ranking-relevant account fields.
type UserInfo struct {
	Country string
	Privs   int
}

// PerformanceResult is the outcome of one performance calculation.
type PerformanceResult struct {
	PP       float64 `json:"pp"`
	Stars    float64 `json:"stars"`
	MaxCombo int     `json:"max_combo"`

	// PPNoMisses is the rating the same play would have earned with zero
	// misses.
	PPNoMisses float64 `json:"pp_no_misses"`
}
