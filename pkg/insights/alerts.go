package insights

import (
	"fmt"
	"time"

	"dreamdecode/pkg/domain"
)

const shiftWindow = 3

// PatternAlerts derives the alerts shown on the insights page: one per
// symbol counted AlertThreshold times or more, plus a mood-shift alert when
// the most frequent mood of the latest three dreams differs from the three
// before. Alerts carry the owner of the newest dream.
func PatternAlerts(dreams []domain.Dream, now time.Time) []domain.PatternAlert {
	return patternAlerts(dreams, SymbolFrequency(dreams), now)
}

func patternAlerts(dreams []domain.Dream, entries []SymbolEntry, now time.Time) []domain.PatternAlert {
	alerts := []domain.PatternAlert{}
	userID := ""
	if len(dreams) > 0 {
		userID = dreams[0].UserID
	}
	for _, e := range entries {
		if e.Count < AlertThreshold {
			continue
		}
		name := e.Symbol.Name
		title := "Recurring: " + name
		if e.Symbol.Emoji != "" {
			title = fmt.Sprintf("Recurring: %s %s", e.Symbol.Emoji, name)
		}
		alerts = append(alerts, domain.PatternAlert{
			ID:     "recurring-" + name,
			UserID: userID,
			Type:   domain.AlertRecurringSymbol,
			Title:  title,
			Description: fmt.Sprintf("%q has appeared in %d of your dreams. "+
				"This symbol may represent something significant in your life right now.", name, e.Count),
			RelatedDreamIDs: append([]string(nil), e.DreamIDs...),
			CreatedAt:       now,
		})
	}
	if shift, ok := MoodShift(dreams); ok {
		alerts = append(alerts, domain.PatternAlert{
			ID:     "mood-shift",
			UserID: userID,
			Type:   domain.AlertMoodShift,
			Title:  "Mood Shift Detected",
			Description: fmt.Sprintf("Your dreams shifted from predominantly %q to %q. "+
				"This could reflect a change in your waking emotional state.", shift.From, shift.To),
			RelatedDreamIDs: dreamIDs(dreams[:shiftWindow]),
			CreatedAt:       now,
		})
	}
	return alerts
}

// Shift describes a change in dominant mood between two windows.
type Shift struct {
	From domain.MoodName
	To   domain.MoodName
}

// MoodShift compares dreams[0:3] with dreams[3:6]. It needs at least six dreams.
func MoodShift(dreams []domain.Dream) (Shift, bool) {
	if len(dreams) < 2*shiftWindow {
		return Shift{}, false
	}
	to, okTo := MostFrequentMood(dreams[:shiftWindow])
	from, okFrom := MostFrequentMood(dreams[shiftWindow : 2*shiftWindow])
	if !okTo || !okFrom || to == from {
		return Shift{}, false
	}
	return Shift{From: from, To: to}, true
}

func dreamIDs(dreams []domain.Dream) []string {
	ids := make([]string, 0, len(dreams))
	for _, d := range dreams {
		ids = append(ids, d.ID)
	}
	return ids
}
