package insights

import (
	"math"
	"time"

	"dreamdecode/pkg/domain"
)

// Weights tunes the health score. The split and caps are product choices,
// so they are configurable rather than fixed.
type Weights struct {
	Frequency    float64 `yaml:"frequency"`
	Diversity    float64 `yaml:"diversity"`
	Volume       float64 `yaml:"volume"`
	FrequencyCap int     `yaml:"frequencyCap"`
	DiversityCap int     `yaml:"diversityCap"`
	VolumeCap    int     `yaml:"volumeCap"`
	Floor        float64 `yaml:"floor"`
	Ceiling      float64 `yaml:"ceiling"`
}

// DefaultWeights is 50/30/20 with caps of 7 days, 5 moods and 20 dreams.
func DefaultWeights() Weights {
	return Weights{
		Frequency:    50,
		Diversity:    30,
		Volume:       20,
		FrequencyCap: 7,
		DiversityCap: 5,
		VolumeCap:    20,
		Floor:        5,
		Ceiling:      100,
	}
}

func (w Weights) orDefault() Weights {
	def := DefaultWeights()
	if w.FrequencyCap <= 0 {
		w.FrequencyCap = def.FrequencyCap
	}
	if w.DiversityCap <= 0 {
		w.DiversityCap = def.DiversityCap
	}
	if w.VolumeCap <= 0 {
		w.VolumeCap = def.VolumeCap
	}
	if w.Frequency < 0 || w.Diversity < 0 || w.Volume < 0 ||
		w.Frequency+w.Diversity+w.Volume == 0 {
		w.Frequency, w.Diversity, w.Volume = def.Frequency, def.Diversity, def.Volume
	}
	if w.Ceiling <= 0 || w.Ceiling > 100 {
		w.Ceiling = def.Ceiling
	}
	if w.Floor < 0 || w.Floor > w.Ceiling {
		w.Floor = def.Floor
	}
	return w
}

const (
	recentWindow = 7 * 24 * time.Hour
	dayLayout    = "2006-01-02"
)

// HealthScore is a 0–100 composite of recording frequency over the last
// seven days, mood diversity overall and total volume. Calendar days are
// taken in now's location. An empty history scores 0; anything else is
// clamped to [Floor, Ceiling].
func HealthScore(dreams []domain.Dream, now time.Time, w Weights) int {
	if len(dreams) == 0 {
		return 0
	}
	w = w.orDefault()

	days := make(map[string]struct{})
	for _, d := range RecentDreams(dreams, now, recentWindow) {
		days[d.CreatedAt.In(now.Location()).Format(dayLayout)] = struct{}{}
	}
	moods := make(map[domain.MoodName]struct{})
	for _, d := range dreams {
		for _, t := range d.Moods {
			moods[t.Mood] = struct{}{}
		}
	}

	raw := ratio(len(days), w.FrequencyCap)*w.Frequency +
		ratio(len(moods), w.DiversityCap)*w.Diversity +
		ratio(len(dreams), w.VolumeCap)*w.Volume
	return int(math.Round(math.Min(w.Ceiling, math.Max(w.Floor, raw))))
}

func ratio(n, limit int) float64 {
	return math.Min(float64(n)/float64(limit), 1)
}
