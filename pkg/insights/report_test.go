package insights

import (
	"testing"
	"time"

	"dreamdecode/pkg/domain"
)

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil, refNow, DefaultWeights())
	if r.HealthScore != 0 || r.TotalDreams != 0 || r.Trend != TrendNeutral {
		t.Fatalf("unexpected empty report: %+v", r)
	}
	if len(r.RecurringSymbols) != 0 || len(r.Alerts) != 0 || len(r.Timeline) != 7 {
		t.Fatalf("unexpected empty collections: %+v", r)
	}
}

func TestComputeMatchesIndividualViews(t *testing.T) {
	dreams := []domain.Dream{
		withSymbols(dreamAt("a", refNow.Add(-time.Hour), tag(domain.MoodJoyful, 0.9)), "moon"),
		withSymbols(dreamAt("b", refNow.Add(-26*time.Hour), tag(domain.MoodSad, 0.7)), "Moon", "door"),
		withSymbols(dreamAt("c", refNow.Add(-10*24*time.Hour), tag(domain.MoodSad, 0.7)), "moon "),
	}
	r := Compute(dreams, refNow, DefaultWeights())
	if r.TotalDreams != 3 || r.RecentCount != 2 || r.ActiveDays != 2 {
		t.Fatalf("unexpected counts: %+v", r)
	}
	if r.HealthScore != HealthScore(dreams, refNow, DefaultWeights()) {
		t.Fatalf("health mismatch")
	}
	if len(r.RecurringSymbols) != 1 || r.RecurringSymbols[0] != "moon" {
		t.Fatalf("recurring = %v", r.RecurringSymbols)
	}
	if len(r.Alerts) != 1 || r.Alerts[0].ID != "recurring-moon" {
		t.Fatalf("alerts = %+v", r.Alerts)
	}
	if len(r.TopSymbols) != 2 || r.TopSymbols[0].OccurrenceCount != 3 {
		t.Fatalf("top symbols = %+v", r.TopSymbols)
	}
}

func TestWeekSummary(t *testing.T) {
	dreams := []domain.Dream{
		withSymbols(dreamAt("a", refNow.Add(-time.Hour), tag(domain.MoodAnxious, 0.9)), "exam"),
		withSymbols(dreamAt("b", refNow.Add(-48*time.Hour), tag(domain.MoodAnxious, 0.6), tag(domain.MoodSad, 0.3)), "exam"),
		dreamAt("c", refNow.Add(-20*24*time.Hour), tag(domain.MoodJoyful, 0.9)),
	}
	w := WeekSummary("user-1", dreams, refNow, DefaultWeights())
	if w.DreamCount != 2 || w.DominantMood == nil || w.DominantMood.Mood != domain.MoodAnxious {
		t.Fatalf("unexpected summary: %+v", w)
	}
	if len(w.RecurringSymbols) != 1 || w.RecurringSymbols[0].Name != "exam" {
		t.Fatalf("unexpected recurring symbols: %+v", w.RecurringSymbols)
	}
}
