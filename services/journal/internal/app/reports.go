package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dreamdecode/internal/usertoken"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/insights"
)

const reportWindow = 7 * 24 * time.Hour

// WeeklyReport combines the deterministic weekly figures with the
// gateway's narrative.
func (a *App) WeeklyReport(ctx context.Context, id usertoken.Identity) (domain.WeeklyReport, error) {
	dreams := a.Journal(ctx, id).Dreams()
	now := a.localNow()
	report := insights.WeekSummary(id.UserID, dreams, now, a.weights)
	if report.DreamCount == 0 {
		return domain.WeeklyReport{}, ErrNoRecentDreams
	}
	recent := insights.RecentDreams(dreams, now, reportWindow)
	summary, err := a.gateway.GenerateReport(ctx, DreamSummaries(recent, a.location), len(recent))
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	report.AISummary = summary
	return report, nil
}

// DreamSummaries renders one line per dream for the report prompt.
func DreamSummaries(dreams []domain.Dream, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]string, 0, len(dreams))
	for i, d := range dreams {
		moods := make([]string, 0, len(d.Moods))
		for _, m := range d.Moods {
			moods = append(moods, string(m.Mood))
		}
		symbols := make([]string, 0, len(d.Symbols))
		for _, s := range d.Symbols {
			symbols = append(symbols, s.Name)
		}
		lines = append(lines, fmt.Sprintf("Dream %d (%s): \"%s\" - %s [Moods: %s] [Symbols: %s]",
			i+1, d.CreatedAt.In(loc).Format("Mon"), d.Title, d.Summary,
			strings.Join(moods, ", "), strings.Join(symbols, ", ")))
	}
	return strings.Join(lines, "\n")
}
