package insights

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"dreamdecode/pkg/domain"
)

func TestRecurringAlertPerSymbolAtThreshold(t *testing.T) {
	dreams := []domain.Dream{
		withSymbols(dreamAt("a", refNow), "Rabbit", "key"),
		withSymbols(dreamAt("b", refNow.Add(-time.Hour)), " rabbit", "key"),
		withSymbols(dreamAt("c", refNow.Add(-2*time.Hour)), "rabbit"),
	}
	alerts := PatternAlerts(dreams, refNow)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %+v", alerts)
	}
	a := alerts[0]
	if a.ID != "recurring-rabbit" || a.Type != domain.AlertRecurringSymbol {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if a.Title != "Recurring: 🐇 rabbit" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if a.Description != `"rabbit" has appeared in 3 of your dreams. This symbol may represent something significant in your life right now.` {
		t.Fatalf("unexpected description %q", a.Description)
	}
	if !reflect.DeepEqual(a.RelatedDreamIDs, []string{"a", "b", "c"}) || a.UserID != "user-1" {
		t.Fatalf("unexpected related ids or owner: %+v", a)
	}
}

func TestNoAlertsBelowThreshold(t *testing.T) {
	dreams := []domain.Dream{
		withSymbols(dreamAt("a", refNow), "rabbit"),
		withSymbols(dreamAt("b", refNow), "rabbit"),
	}
	if alerts := PatternAlerts(dreams, refNow); len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestMoodShiftScenario(t *testing.T) {
	confidences := []struct {
		mood domain.MoodName
		conf float64
	}{
		{domain.MoodJoyful, 0.9},
		{domain.MoodJoyful, 0.8},
		{domain.MoodSad, 0.7},
		{domain.MoodSad, 0.6},
		{domain.MoodSad, 0.9},
		{domain.MoodJoyful, 0.5},
	}
	var dreams []domain.Dream
	for i, c := range confidences {
		dreams = append(dreams, dreamAt(fmt.Sprintf("d%d", i), refNow.Add(-time.Duration(i)*time.Hour), tag(c.mood, c.conf)))
	}

	shift, ok := MoodShift(dreams)
	if !ok || shift.To != domain.MoodJoyful || shift.From != domain.MoodSad {
		t.Fatalf("unexpected shift %+v ok=%v", shift, ok)
	}
	alerts := PatternAlerts(dreams, refNow)
	if len(alerts) != 1 || alerts[0].ID != "mood-shift" {
		t.Fatalf("expected a single mood-shift alert, got %+v", alerts)
	}
	if !reflect.DeepEqual(alerts[0].RelatedDreamIDs, []string{"d0", "d1", "d2"}) {
		t.Fatalf("related ids should be the latest three: %v", alerts[0].RelatedDreamIDs)
	}
}

func TestMoodShiftTieUsesFirstOccurrence(t *testing.T) {
	// Latest window: sad, joyful, fearful -> all tied, sad first.
	dreams := []domain.Dream{
		dreamAt("d0", refNow, tag(domain.MoodSad, 0.9)),
		dreamAt("d1", refNow, tag(domain.MoodJoyful, 0.9)),
		dreamAt("d2", refNow, tag(domain.MoodFearful, 0.9)),
		dreamAt("d3", refNow, tag(domain.MoodSad, 0.9)),
		dreamAt("d4", refNow, tag(domain.MoodSad, 0.9)),
		dreamAt("d5", refNow, tag(domain.MoodJoyful, 0.9)),
	}
	if _, ok := MoodShift(dreams); ok {
		t.Fatalf("sad vs sad is not a shift")
	}
}

func TestMoodShiftNeedsSixDreams(t *testing.T) {
	dreams := append(series(3, tag(domain.MoodJoyful, 0.9)), series(2, tag(domain.MoodSad, 0.9))...)
	if _, ok := MoodShift(dreams); ok {
		t.Fatalf("five dreams must not produce a shift")
	}
	dreams = append(dreams, series(1, tag(domain.MoodSad, 0.9))...)
	if _, ok := MoodShift(dreams); !ok {
		t.Fatalf("six dreams with differing windows should shift")
	}
}

func TestEmptyHistory(t *testing.T) {
	if got := HealthScore(nil, refNow, DefaultWeights()); got != 0 {
		t.Fatalf("health = %d", got)
	}
	if got := RecurringSymbolNames(nil); len(got) != 0 {
		t.Fatalf("recurring = %v", got)
	}
	if got := PatternAlerts(nil, refNow); got == nil || len(got) != 0 {
		t.Fatalf("alerts = %#v", got)
	}
}
