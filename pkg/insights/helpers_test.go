package insights

import (
	"fmt"
	"time"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/mood"
)

var refNow = time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)

func dreamAt(id string, at time.Time, moods ...domain.MoodTag) domain.Dream {
	return domain.Dream{ID: id, UserID: "user-1", Title: "Dream " + id, CreatedAt: at, Moods: moods}
}

func tag(name domain.MoodName, confidence float64) domain.MoodTag {
	return mood.Tag(name, confidence)
}

func withSymbols(d domain.Dream, names ...string) domain.Dream {
	for _, n := range names {
		d.Symbols = append(d.Symbols, domain.DreamSymbol{Name: n, Emoji: "🐇"})
	}
	return d
}

// series returns n dreams, newest first, one hour apart.
func series(n int, moods ...domain.MoodTag) []domain.Dream {
	out := make([]domain.Dream, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dreamAt(fmt.Sprintf("d%d", i), refNow.Add(-time.Duration(i)*time.Hour), moods...))
	}
	return out
}
