package insights

import (
	"time"

	"dreamdecode/pkg/domain"
)

const (
	topSymbolLimit  = 8
	connectionLimit = 5
)

// Report bundles every view of the insights page.
type Report struct {
	GeneratedAt      time.Time             `json:"generated_at"`
	TotalDreams      int                   `json:"total_dreams"`
	RecentCount      int                   `json:"recent_count"`
	HealthScore      int                   `json:"health_score"`
	Trend            Trend                 `json:"mood_trend"`
	Timeline         []TimelineDay         `json:"timeline"`
	ActiveDays       int                   `json:"active_days"`
	Distribution     []MoodShare           `json:"mood_distribution"`
	TopSymbols       []domain.DreamSymbol  `json:"top_symbols"`
	RecurringSymbols []string              `json:"recurring_symbols"`
	Connections      []Connection          `json:"connections"`
	Alerts           []domain.PatternAlert `json:"pattern_alerts"`
}

// Compute runs one full aggregation pass over dreams.
func Compute(dreams []domain.Dream, now time.Time, w Weights) Report {
	entries := SymbolFrequency(dreams)
	timeline := Timeline(dreams, now)
	active := 0
	for _, day := range timeline {
		if day.Mood != nil {
			active++
		}
	}
	recurring := []string{}
	for _, e := range entries {
		if e.Count >= RecurringThreshold {
			recurring = append(recurring, e.Symbol.Name)
		}
	}
	connections := Connections(entries, dreams, connectionLimit)
	if connections == nil {
		connections = []Connection{}
	}
	return Report{
		GeneratedAt:      now,
		TotalDreams:      len(dreams),
		RecentCount:      len(RecentDreams(dreams, now, recentWindow)),
		HealthScore:      HealthScore(dreams, now, w),
		Trend:            MoodTrend(dreams),
		Timeline:         timeline,
		ActiveDays:       active,
		Distribution:     MoodDistribution(dreams),
		TopSymbols:       TopSymbols(entries, topSymbolLimit),
		RecurringSymbols: recurring,
		Connections:      connections,
		Alerts:           patternAlerts(dreams, entries, now),
	}
}

// WeekSummary builds the deterministic part of a weekly report; AISummary is
// filled by the caller.
func WeekSummary(userID string, dreams []domain.Dream, now time.Time, w Weights) domain.WeeklyReport {
	recent := RecentDreams(dreams, now, recentWindow)
	report := domain.WeeklyReport{
		UserID:           userID,
		WeekStart:        now.Add(-recentWindow),
		WeekEnd:          now,
		DreamCount:       len(recent),
		RecurringSymbols: TopSymbols(filterRecurring(SymbolFrequency(recent)), topSymbolLimit),
		HealthScore:      HealthScore(dreams, now, w),
	}
	if name, ok := MostFrequentMood(recent); ok {
		for _, d := range recent {
			for _, t := range d.Moods {
				if t.Mood == name {
					tag := t
					report.DominantMood = &tag
					return report
				}
			}
		}
	}
	return report
}

func filterRecurring(entries []SymbolEntry) []SymbolEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Count >= RecurringThreshold {
			out = append(out, e)
		}
	}
	return out
}
