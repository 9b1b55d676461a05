package mood

import (
	"testing"

	"dreamdecode/pkg/domain"
)

func TestParseNormalizesAndRejectsUnknown(t *testing.T) {
	if m, ok := Parse("  Joyful "); !ok || m != domain.MoodJoyful {
		t.Fatalf("Parse joyful = %q,%v", m, ok)
	}
	if _, ok := Parse("elated"); ok {
		t.Fatalf("elated should not be a catalog mood")
	}
}

func TestLookupsFallBackToNeutral(t *testing.T) {
	unknown := domain.MoodName("elated")
	if Emoji(unknown) != "😐" {
		t.Fatalf("unexpected fallback emoji %q", Emoji(unknown))
	}
	if GradientFor(unknown) != GradientFor(domain.MoodNeutral) {
		t.Fatalf("unknown mood should use neutral gradient")
	}
	if Positivity(unknown) != UnknownPositivity {
		t.Fatalf("unknown positivity = %v", Positivity(unknown))
	}
	if Color(domain.MoodAnxious) != "#EF4444" {
		t.Fatalf("anxious color = %q", Color(domain.MoodAnxious))
	}
}

func TestPositivityOrdering(t *testing.T) {
	if !(Positivity(domain.MoodJoyful) > Positivity(domain.MoodPeaceful) &&
		Positivity(domain.MoodPeaceful) > Positivity(domain.MoodExcited) &&
		Positivity(domain.MoodExcited) > Positivity(domain.MoodNeutral) &&
		Positivity(domain.MoodNeutral) > Positivity(domain.MoodConfused) &&
		Positivity(domain.MoodConfused) > Positivity(domain.MoodSad) &&
		Positivity(domain.MoodSad) > Positivity(domain.MoodAnxious) &&
		Positivity(domain.MoodAnxious) > Positivity(domain.MoodFearful)) {
		t.Fatalf("positivity constants out of order")
	}
	if len(All) != 8 {
		t.Fatalf("catalog has %d moods", len(All))
	}
	for _, m := range All {
		if !Valid(m) {
			t.Fatalf("%q listed but not valid", m)
		}
	}
}

func TestIsPictograph(t *testing.T) {
	cases := map[string]bool{
		"😊":      true,
		"🐇":      true,
		"☀️":     true,
		"joyful": false,
		"":       false,
		"é":      false,
		"123":    false,
	}
	for in, want := range cases {
		if got := IsPictograph(in); got != want {
			t.Fatalf("IsPictograph(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalizeEmoji(t *testing.T) {
	if got := NormalizeEmoji("rabbit", ""); got != "" {
		t.Fatalf("word should be discarded, got %q", got)
	}
	if got := NormalizeEmoji("rabbit 🐇", ""); got != "🐇" {
		t.Fatalf("expected embedded pictograph, got %q", got)
	}
	if got := NormalizeEmoji("👍🏽👍", ""); got != "👍🏽" {
		t.Fatalf("expected skin-tone cluster kept intact, got %q", got)
	}
	if got := NormalizeEmoji("happy", Emoji(domain.MoodJoyful)); got != "😊" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
