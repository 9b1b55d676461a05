package app

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultVoiceLanguage needs no language instruction in prompts.
const DefaultVoiceLanguage = "english"

// VoiceLanguages are the languages offered for dictation.
var VoiceLanguages = []string{"english", "spanish", "french", "german", "portuguese", "japanese", "korean", "chinese"}

var lower = cases.Lower(language.English)

// VoiceLanguage turns a language name or BCP 47 tag into the lowercase
// English name used in prompts ("es-MX" and "Spanish" both become
// "spanish"). Unknown input is passed through lowercased; blank input is
// the default language.
func VoiceLanguage(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return DefaultVoiceLanguage
	}
	if len(input) <= 3 || strings.ContainsAny(input, "-_") {
		if tag, err := language.Parse(strings.ReplaceAll(input, "_", "-")); err == nil {
			base, _ := tag.Base()
			if name := display.English.Languages().Name(language.Make(base.String())); name != "" {
				return lower.String(name)
			}
		}
	}
	return lower.String(input)
}

// needsLanguageInstruction reports whether prompts must ask for a reply in lang.
func needsLanguageInstruction(lang string) bool {
	return lang != "" && lang != DefaultVoiceLanguage
}
