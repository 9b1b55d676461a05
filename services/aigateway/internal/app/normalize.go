package app

import (
	"strings"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/insights"
	"dreamdecode/pkg/mood"
)

const (
	maxMoods   = 3
	maxSymbols = 4
	// fallbackConfidence is used for the neutral mood added when none survive.
	fallbackConfidence = 0.5
)

// normalize turns a provider reply into the stored shape: moods restricted to
// the catalog (neutral when none remain), canonical emoji and gradients,
// symbol names normalized and non-pictograph glyphs dropped.
func normalize(raw rawAnalysis) Analysis {
	out := Analysis{
		Transcription:  strings.TrimSpace(raw.Transcription),
		Title:          strings.TrimSpace(raw.Title),
		Summary:        strings.TrimSpace(raw.Summary),
		Interpretation: strings.TrimSpace(raw.Interpretation),
		Moods:          make([]domain.MoodTag, 0, maxMoods),
		Symbols:        make([]AnalyzedSymbol, 0, maxSymbols),
	}

	seenMoods := make(map[domain.MoodName]bool)
	for _, m := range raw.Moods {
		if len(out.Moods) == maxMoods {
			break
		}
		name, ok := mood.Parse(m.Mood)
		if !ok || seenMoods[name] {
			continue
		}
		seenMoods[name] = true
		confidence := fallbackConfidence
		if m.Confidence.set {
			confidence = clamp01(m.Confidence.value)
		}
		tag := mood.Tag(name, confidence)
		tag.Emoji = mood.NormalizeEmoji(m.Emoji, mood.Emoji(name))
		out.Moods = append(out.Moods, tag)
	}
	if len(out.Moods) == 0 {
		out.Moods = append(out.Moods, mood.Tag(domain.MoodNeutral, fallbackConfidence))
	}

	seenSymbols := make(map[string]bool)
	for _, s := range raw.Symbols {
		if len(out.Symbols) == maxSymbols {
			break
		}
		name := insights.NormalizeSymbolName(s.Name)
		if name == "" || seenSymbols[name] {
			continue
		}
		seenSymbols[name] = true
		out.Symbols = append(out.Symbols, AnalyzedSymbol{
			Name:         name,
			Emoji:        mood.NormalizeEmoji(s.Emoji, ""),
			MeaningShort: strings.TrimSpace(s.MeaningShort),
		})
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
