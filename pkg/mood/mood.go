// Package mood holds the fixed catalog of dream moods and the display data
// derived from a mood name.
package mood

import (
	"strings"

	"dreamdecode/pkg/domain"
)

type entry struct {
	emoji      string
	gradient   domain.Gradient
	positivity float64
}

var catalog = map[domain.MoodName]entry{
	domain.MoodPeaceful: {"😌", domain.Gradient{"#5B8DEF", "#7C5CFC"}, 0.9},
	domain.MoodAnxious:  {"😰", domain.Gradient{"#EF4444", "#F59E0B"}, 0.15},
	domain.MoodJoyful:   {"😊", domain.Gradient{"#F59E0B", "#F472B6"}, 1.0},
	domain.MoodConfused: {"😕", domain.Gradient{"#8B5CF6", "#EC4899"}, 0.4},
	domain.MoodSad:      {"😢", domain.Gradient{"#3B82F6", "#6366F1"}, 0.2},
	domain.MoodExcited:  {"🤩", domain.Gradient{"#F472B6", "#F59E0B"}, 0.8},
	domain.MoodFearful:  {"😨", domain.Gradient{"#6366F1", "#1E1B4B"}, 0.0},
	domain.MoodNeutral:  {"😐", domain.Gradient{"#6B7280", "#9CA3AF"}, 0.5},
}

// All lists the catalog in a stable order.
var All = []domain.MoodName{
	domain.MoodPeaceful,
	domain.MoodAnxious,
	domain.MoodJoyful,
	domain.MoodConfused,
	domain.MoodSad,
	domain.MoodExcited,
	domain.MoodFearful,
	domain.MoodNeutral,
}

// UnknownPositivity is the score for moods outside the catalog and for dreams without moods.
const UnknownPositivity = 0.5

// Parse normalizes s and reports whether it names a catalog mood.
func Parse(s string) (domain.MoodName, bool) {
	name := domain.MoodName(strings.ToLower(strings.TrimSpace(s)))
	_, ok := catalog[name]
	return name, ok
}

// Valid reports whether m is one of the eight catalog moods.
func Valid(m domain.MoodName) bool {
	_, ok := catalog[m]
	return ok
}

// Emoji returns the canonical glyph, falling back to neutral.
func Emoji(m domain.MoodName) string {
	if e, ok := catalog[m]; ok {
		return e.emoji
	}
	return catalog[domain.MoodNeutral].emoji
}

// GradientFor returns the display gradient, falling back to neutral.
func GradientFor(m domain.MoodName) domain.Gradient {
	if e, ok := catalog[m]; ok {
		return e.gradient
	}
	return catalog[domain.MoodNeutral].gradient
}

// Color is the single accent color for charts: the gradient start.
func Color(m domain.MoodName) string {
	return GradientFor(m)[0]
}

// Positivity is the fixed per-mood score used by the trend calculation.
func Positivity(m domain.MoodName) float64 {
	if e, ok := catalog[m]; ok {
		return e.positivity
	}
	return UnknownPositivity
}

// Tag builds a fully populated tag for m.
func Tag(m domain.MoodName, confidence float64) domain.MoodTag {
	return domain.MoodTag{
		Mood:       m,
		Confidence: confidence,
		Emoji:      Emoji(m),
		Gradient:   GradientFor(m),
	}
}
