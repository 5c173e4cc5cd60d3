// Package mods normalizes free-form mod specifications into exactly one of
// three representations: a legacy bitmask, a mode-agnostic acronym set, or a
// structured mod list.
//
// Parse never fails. Unparseable input normalizes to an empty legacy
// bitmask, which callers must treat as "no mods".
package mods

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Legacy mod bits.
const (
	NoFail      = 1 << 0
	Easy        = 1 << 1
	TouchDev    = 1 << 2
	Hidden      = 1 << 3
	HardRock    = 1 << 4
	SuddenDeath = 1 << 5
	DoubleTime  = 1 << 6
	Relax       = 1 << 7
	HalfTime    = 1 << 8
	Nightcore   = 1 << 9
	Flashlight  = 1 << 10
	Autoplay    = 1 << 11
	SpunOut     = 1 << 12
	Autopilot   = 1 << 13
	Perfect     = 1 << 14
)

// GameMods is the normalized mod representation. Exactly one of the three
// concrete types below is produced per Parse call; consumers must switch on
// the concrete type rather than assume a default.
//
// String returns a canonical rendering: equal mod selections render to the
// same string regardless of the input spelling they were parsed from.
type GameMods interface {
	isGameMods()
	String() string
}

// Legacy is the classic client bitmask.
type Legacy int

// Intermode is a mode-agnostic acronym set.
type Intermode []string

// Mod is a single structured mod with optional settings.
type Mod struct {
	Acronym  string         `json:"acronym"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Lazer is a structured mod list as submitted by new-format clients.
type Lazer []Mod

func (Legacy) isGameMods()    {}
func (Intermode) isGameMods() {}
func (Lazer) isGameMods()     {}

// String renders the bitmask in its canonical decimal form.
func (l Legacy) String() string { return strconv.Itoa(int(l)) }

// String renders the set in its canonical comma-joined form.
func (i Intermode) String() string { return strings.Join(i, ",") }

// String renders the list in its canonical JSON form. Settings maps
// serialize with sorted keys, so equal lists render identically.
func (l Lazer) String() string {
	b, err := json.Marshal([]Mod(l))
	if err != nil {
		return ""
	}
	return string(b)
}

// knownAcronyms gates what the acronym path accepts. Unknown tokens are
// dropped rather than failing the caller.
var knownAcronyms = map[string]struct{}{
	"NF": {}, "EZ": {}, "TD": {}, "HD": {}, "HR": {}, "SD": {},
	"DT": {}, "RX": {}, "HT": {}, "NC": {}, "FL": {}, "AT": {},
	"SO": {}, "AP": {}, "PF": {}, "V2": {}, "MR": {},
	"1K": {}, "2K": {}, "3K": {}, "4K": {}, "5K": {},
	"6K": {}, "7K": {}, "8K": {}, "9K": {}, "CP": {},
}

// Parse normalizes a free-form mod specification for the given base mode.
//
// Accepted shapes, in order of precedence:
//   - decimal integer: legacy bitmask
//   - JSON array of {"acronym": ...} objects: structured list
//   - acronym string ("HDDT" or "HD,DT"): mode-agnostic set
//
// Anything else yields Legacy(0). The mode argument is reserved for
// mode-specific acronym filtering and currently unused.
func Parse(s string, _ int) GameMods {
	s = strings.TrimSpace(s)
	if s == "" {
		return Legacy(0)
	}

	if bits, err := strconv.Atoi(s); err == nil {
		return Legacy(bits)
	}

	if strings.HasPrefix(s, "[") {
		var list Lazer
		if err := json.Unmarshal([]byte(s), &list); err != nil || len(list) == 0 {
			return Legacy(0)
		}
		return list
	}

	set := parseAcronyms(s)
	if len(set) == 0 {
		return Legacy(0)
	}
	return set
}

func parseAcronyms(s string) Intermode {
	s = strings.ToUpper(s)

	var tokens []string
	if strings.ContainsAny(s, ", ") {
		tokens = strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' '
		})
	} else {
		for i := 0; i+2 <= len(s); i += 2 {
			tokens = append(tokens, s[i:i+2])
		}
		if len(s)%2 != 0 {
			return nil
		}
	}

	var set Intermode
	seen := map[string]struct{}{}
	for _, tok := range tokens {
		if _, ok := knownAcronyms[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		set = append(set, tok)
	}
	return set
}
