package insights

import (
	"sort"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/mood"
)

// Trend is the direction of recent mood positivity.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

const (
	trendWindow    = 3
	trendThreshold = 0.08
)

// DominantMood returns the highest-confidence tag of d. Ties keep the
// earlier tag.
func DominantMood(d domain.Dream) (domain.MoodTag, bool) {
	return strongest(d.Moods)
}

func strongest(tags []domain.MoodTag) (domain.MoodTag, bool) {
	if len(tags) == 0 {
		return domain.MoodTag{}, false
	}
	best := tags[0]
	for _, t := range tags[1:] {
		if t.Confidence > best.Confidence {
			best = t
		}
	}
	return best, true
}

func dreamPositivity(d domain.Dream) float64 {
	primary, ok := DominantMood(d)
	if !ok {
		return mood.UnknownPositivity
	}
	return mood.Positivity(primary.Mood)
}

func averagePositivity(dreams []domain.Dream) float64 {
	var sum float64
	for _, d := range dreams {
		sum += dreamPositivity(d)
	}
	return sum / float64(len(dreams))
}

// MoodTrend compares the average positivity of the latest three dreams with
// the three before them.
func MoodTrend(dreams []domain.Dream) Trend {
	if len(dreams) < 2 {
		return TrendNeutral
	}
	split := min(trendWindow, len(dreams))
	recent := dreams[:split]
	prev := dreams[split:min(2*trendWindow, len(dreams))]
	if len(prev) == 0 {
		return TrendNeutral
	}
	r, p := averagePositivity(recent), averagePositivity(prev)
	switch {
	case r > p+trendThreshold:
		return TrendUp
	case r < p-trendThreshold:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// MostFrequentMood counts every tag across dreams. Ties go to the mood that
// appeared first.
func MostFrequentMood(dreams []domain.Dream) (domain.MoodName, bool) {
	counts := make(map[domain.MoodName]int)
	var order []domain.MoodName
	for _, d := range dreams {
		for _, t := range d.Moods {
			if _, seen := counts[t.Mood]; !seen {
				order = append(order, t.Mood)
			}
			counts[t.Mood]++
		}
	}
	if len(order) == 0 {
		return "", false
	}
	best := order[0]
	for _, m := range order[1:] {
		if counts[m] > counts[best] {
			best = m
		}
	}
	return best, true
}

// MoodShare is one slice of the primary-mood distribution.
type MoodShare struct {
	Mood  domain.MoodName `json:"mood"`
	Count int             `json:"count"`
	Emoji string          `json:"emoji"`
	Share float64         `json:"pct"`
	Color string          `json:"color"`
}

// MoodDistribution reports how often each mood is a dream's primary mood,
// most common first.
func MoodDistribution(dreams []domain.Dream) []MoodShare {
	index := make(map[domain.MoodName]int)
	out := []MoodShare{}
	total := 0
	for _, d := range dreams {
		primary, ok := DominantMood(d)
		if !ok {
			continue
		}
		total++
		i, seen := index[primary.Mood]
		if !seen {
			i = len(out)
			index[primary.Mood] = i
			out = append(out, MoodShare{Mood: primary.Mood, Emoji: primary.Emoji, Color: mood.Color(primary.Mood)})
		}
		out[i].Count++
	}
	for i := range out {
		out[i].Share = float64(out[i].Count) / float64(total)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
