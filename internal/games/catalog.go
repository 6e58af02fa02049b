// Package games is the static registry of mini-games: one bit per game for
// compact subset encoding, plus each game's rule for turning a raw session
// into a single comparable score.
package games

import (
	"sort"
)

// Policy says whether a smaller or a larger reduced score ranks first.
type Policy int

const (
	// LowerIsBetter applies to timing games: finishing faster wins.
	LowerIsBetter Policy = iota
	// HigherIsBetter applies to counting/score games.
	HigherIsBetter
)

// Better reports whether score a beats score b under the policy.
func (p Policy) Better(a, b float64) bool {
	if p == LowerIsBetter {
		return a < b
	}
	return a > b
}

// Mask encodes a subset of the catalog as set bits. It is derived from game
// keys at assignment creation and decoded back on read; it is never the
// source of truth for the catalog itself.
type Mask int64

// Descriptor describes one game in the catalog.
type Descriptor struct {
	Key         string
	Bit         Mask
	DisplayName string
	// Metric is the human label for the reduced score, e.g. shown next to
	// leaderboard values.
	Metric string
	Policy Policy
	Reduce func(Record) float64
}

// The catalog is fixed at deploy time. Bits are pairwise-distinct powers of
// two; Mask is 64 bits wide, so the set can grow well past these five
// without touching call sites.
var catalog = []Descriptor{
	{
		Key:         "dance-doodle",
		Bit:         1 << 0,
		DisplayName: "Dance Doodle",
		Metric:      "Completion Time (seconds)",
		Policy:      LowerIsBetter,
		Reduce: sumFields(
			"cool_arms", "open_wings", "silly_boxer", "happy_stand",
			"crossy_play", "shh_fun", "stretch",
		),
	},
	{
		Key:         "gaze-game",
		Bit:         1 << 1,
		DisplayName: "Gaze Game",
		Metric:      "Balloons Popped",
		Policy:      HigherIsBetter,
		Reduce:      sumFields("round1Count", "round2Count", "round3Count"),
	},
	{
		Key:         "gesture-game",
		Bit:         1 << 2,
		DisplayName: "Gesture Game",
		Metric:      "Completion Time (seconds)",
		Policy:      LowerIsBetter,
		Reduce: sumFields(
			"thumbs_up", "thumbs_down", "victory", "butterfly", "spectacle",
			"heart", "pointing_up", "iloveyou", "dua", "closed_fist",
			"open_palm",
		),
	},
	{
		Key:         "mirror-posture-game",
		Bit:         1 << 3,
		DisplayName: "Mirror Posture Game",
		Metric:      "Completion Time (seconds)",
		Policy:      LowerIsBetter,
		Reduce:      sumFields("lookingSideways", "mouthOpen", "showingTeeth", "kiss"),
	},
	{
		Key:         "repeat-with-me-game",
		Bit:         1 << 4,
		DisplayName: "Repeat With Me Game",
		Metric:      "Similarity Score",
		Policy:      HigherIsBetter,
		Reduce: meanOfNonZero(
			"round1Score", "round2Score", "round3Score", "round4Score",
			"round5Score", "round6Score", "round7Score", "round8Score",
			"round9Score", "round10Score", "round11Score", "round12Score",
		),
	},
}

var byKey = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		m[d.Key] = d
	}
	return m
}()

// All returns the catalog in its fixed order, which is also the order the
// combined leaderboard concatenates per-game rankings in.
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ByKey looks up a game by key.
func ByKey(key string) (Descriptor, bool) {
	d, ok := byKey[key]
	return d, ok
}

// Encode sets one bit per known key. Unknown keys are silently ignored;
// callers that need strictness check the resulting mask instead.
func Encode(keys []string) Mask {
	var m Mask
	for _, key := range keys {
		if d, ok := byKey[key]; ok {
			m |= d.Bit
		}
	}
	return m
}

// Keys decodes the mask back into game keys, in catalog order. Decoding an
// encoded key list therefore yields the sorted, deduplicated list.
func (m Mask) Keys() []string {
	var keys []string
	for _, d := range catalog {
		if m&d.Bit != 0 {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// DisplayNames decodes the mask into display names, in catalog order.
func (m Mask) DisplayNames() []string {
	var names []string
	for _, d := range catalog {
		if m&d.Bit != 0 {
			names = append(names, d.DisplayName)
		}
	}
	return names
}

// Has reports whether the game with the given key is in the mask.
func (m Mask) Has(key string) bool {
	d, ok := byKey[key]
	return ok && m&d.Bit != 0
}

// Descriptors returns the catalog entries selected by the mask.
func (m Mask) Descriptors() []Descriptor {
	var out []Descriptor
	for _, d := range catalog {
		if m&d.Bit != 0 {
			out = append(out, d)
		}
	}
	return out
}

// Valid reports whether every set bit belongs to a cataloged game.
func (m Mask) Valid() bool {
	var known Mask
	for _, d := range catalog {
		known |= d.Bit
	}
	return m&^known == 0
}

// BitMapping exposes key -> bit value, e.g. for clients building masks.
func BitMapping() map[string]int64 {
	m := make(map[string]int64, len(catalog))
	for _, d := range catalog {
		m[d.Key] = int64(d.Bit)
	}
	return m
}

// AvailableKeys returns all known game keys, sorted.
func AvailableKeys() []string {
	keys := make([]string, 0, len(catalog))
	for _, d := range catalog {
		keys = append(keys, d.Key)
	}
	sort.Strings(keys)
	return keys
}

func sumFields(fields ...string) func(Record) float64 {
	return func(r Record) float64 {
		var total float64
		for _, f := range fields {
			total += r.Field(f)
		}
		return total
	}
}

// meanOfNonZero averages the named fields, skipping zero values entirely: a
// zero round counts as "not played" and stays out of the denominator. This
// matches the reports the platform has always produced, even though it
// cannot tell a skipped round from a genuinely zero score.
func meanOfNonZero(fields ...string) func(Record) float64 {
	return func(r Record) float64 {
		var total float64
		var played int
		for _, f := range fields {
			if v := r.Field(f); v > 0 {
				total += v
				played++
			}
		}
		if played == 0 {
			return 0
		}
		return total / float64(played)
	}
}
