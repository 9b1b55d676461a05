package app

import "testing"

func TestVoiceLanguage(t *testing.T) {
	cases := map[string]string{
		"":           "english",
		"English":    "english",
		"spanish":    "spanish",
		"es":         "spanish",
		"es-MX":      "spanish",
		"pt_BR":      "portuguese",
		"ja":         "japanese",
		"ko":         "korean",
		"zh-Hans":    "chinese",
		" French ":   "french",
		"Klingonese": "klingonese",
	}
	for in, want := range cases {
		if got := VoiceLanguage(in); got != want {
			t.Fatalf("VoiceLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
