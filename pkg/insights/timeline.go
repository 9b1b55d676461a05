package insights

import (
	"time"

	"dreamdecode/pkg/domain"
)

const timelineDays = 7

// TimelineDay is one bar of the weekly mood strip. Mood is nil on days
// without dreams.
type TimelineDay struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Mood  *domain.MoodTag `json:"mood"`
}

// Timeline covers the last seven calendar days in now's location, oldest
// first. Each day shows the highest-confidence tag across all of that day's
// dreams.
func Timeline(dreams []domain.Dream, now time.Time) []TimelineDay {
	loc := now.Location()
	byDay := make(map[string][]domain.MoodTag)
	for _, d := range dreams {
		key := d.CreatedAt.In(loc).Format(dayLayout)
		byDay[key] = append(byDay[key], d.Moods...)
	}
	out := make([]TimelineDay, 0, timelineDays)
	for i := timelineDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format(dayLayout)
		entry := TimelineDay{Date: key, Label: day.Weekday().String()[:1]}
		if tag, ok := strongest(byDay[key]); ok {
			entry.Mood = &tag
		}
		out = append(out, entry)
	}
	return out
}
