package app

import (
	"fmt"
	"strings"

	"dreamdecode/pkg/domain"
)

const analysisFields = `Return ONLY a JSON object (no markdown, no code fences) with these exact fields:
- "transcription": The full verbatim text of what the person said, or "" if no clear speech was detected
- "title": A short, evocative title for the dream (max 6 words), or "" if no speech
- "summary": A 2-3 sentence summary of what happened in the dream, or "" if no speech
- "moods": Array of 1-3 objects with "mood" (one of: peaceful, anxious, joyful, confused, sad, excited, fearful, neutral), "confidence" (0-1), "emoji" (a single Unicode emoji character, e.g. 😊 not the word "joyful"). Empty array if no speech.
- "symbols": Array of 1-4 objects with "name" (lowercase, singular, e.g. "rabbit" not "Rabbit" or "rabbits"), "emoji" (a single Unicode emoji character representing the symbol, e.g. 🐇 not the word "rabbit"), "meaning_short" (one sentence meaning). Keep meaningful modifiers that change the symbol's meaning: "chocolate rabbit" and "rabbit" are distinct symbols, but "rabbits" and "rabbit" are the same. If recurring symbols are listed below, reuse those exact names when the same concept appears. Empty array if no speech.
- "interpretation": 2-4 sentence interpretation of the dream's deeper meaning, or "" if no speech`

func styleOrDefault(style domain.InterpretationStyle) domain.InterpretationStyle {
	if style.Valid() {
		return style
	}
	return domain.StyleMixed
}

func recurringLine(symbols []string) string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "\nThe user has these recurring symbols from past dreams: " + strings.Join(names, ", ") + "."
}

func processDreamPrompt(style domain.InterpretationStyle, recurring []string, lang string) string {
	langInstruction := ""
	if needsLanguageInstruction(lang) {
		langInstruction = fmt.Sprintf("\nRespond in %s. The audio may be in %s, so transcribe it in the original language.", lang, lang)
	}
	var sb strings.Builder
	sb.WriteString("Listen carefully to this audio recording. It may contain someone describing a dream, or it may be silent, contain only background noise, or be too unclear to understand.")
	sb.WriteString(langInstruction)
	sb.WriteString("\n\nIMPORTANT: Only transcribe speech that you can actually hear. Do NOT invent, guess, or hallucinate content. If the audio is silent, contains no intelligible speech, or you cannot make out what is being said, you MUST set \"transcription\" to an empty string \"\" and all other fields to empty defaults.\n\n")
	fmt.Fprintf(&sb, "If clear speech describing a dream is present, transcribe it verbatim and analyze it using a %s interpretation approach.\n\n", styleOrDefault(style))
	sb.WriteString(analysisFields)
	sb.WriteString(recurringLine(recurring))
	return sb.String()
}

func transcribeDreamPrompt(lang string) string {
	var sb strings.Builder
	sb.WriteString("Transcribe this audio recording of someone describing a dream, verbatim.")
	if needsLanguageInstruction(lang) {
		fmt.Fprintf(&sb, " The speaker is likely using %s; keep the original language.", lang)
	}
	sb.WriteString("\nOnly transcribe speech you can actually hear. If the audio is silent or unintelligible, return an empty transcription.")
	sb.WriteString("\nReturn ONLY a JSON object: {\"transcription\": \"...\"}")
	return sb.String()
}

func analyzeDreamPrompts(transcription string, style domain.InterpretationStyle, recurring []string) (system, user string) {
	system = fmt.Sprintf("You are a dream analyst. Analyze dreams using a %s interpretation approach. Be insightful but concise. Always respond with valid JSON only, with no markdown and no code fences.", styleOrDefault(style))
	symbols := recurringLine(recurring)
	if symbols != "" {
		symbols = "\n" + symbols
	}
	user = `Analyze this dream transcription and return a JSON object with these exact fields:
- "title": A short, evocative title for the dream (max 6 words)
- "summary": A 2-3 sentence summary of what happened in the dream
- "moods": An array of 1-3 mood objects, each with "mood" (one of: peaceful, anxious, joyful, confused, sad, excited, fearful, neutral), "confidence" (0-1), and "emoji" (matching emoji)
- "symbols": An array of 1-4 symbol objects, each with "name" (symbol name), "emoji" (matching emoji), "meaning_short" (one sentence meaning)
- "interpretation": A 2-4 sentence interpretation of the dream's deeper meaning` + symbols + "\n\nDream transcription:\n\"" + transcription + "\""
	return system, user
}

func askDreamPrompt(req AskRequest, lang string) string {
	langNote := ""
	if needsLanguageInstruction(lang) {
		langNote = " Respond in " + lang + "."
	}
	var sb strings.Builder
	if c := req.DreamContext; c != nil {
		interpretation := "Not yet interpreted"
		if c.Interpretation != nil {
			interpretation = *c.Interpretation
		}
		fmt.Fprintf(&sb, "You are a thoughtful dream analyst. Be warm, insightful, and concise (2-4 sentences).%s\n\n", langNote)
		fmt.Fprintf(&sb, "Dream context:\n- Title: %s\n- What happened: %s\n- Summary: %s\n- Interpretation: %s\n\n",
			c.Title, c.Transcription, c.Summary, interpretation)
	} else {
		fmt.Fprintf(&sb, "You are a thoughtful dream analyst. Be warm, insightful, and concise.%s\n\n", langNote)
	}
	if len(req.History) > 0 {
		sb.WriteString("Conversation so far:\n")
		for i, m := range req.History {
			speaker := "Analyst"
			if m.Role == string(domain.RoleUser) {
				speaker = "User"
			}
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(speaker + ": " + m.Content)
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: " + req.Message + "\n\nAnalyst:")
	return sb.String()
}

func weeklyReportPrompt(summaries string, count int) string {
	return fmt.Sprintf("You are a dream analyst. Based on these %d dreams from the past week, "+
		"write a brief (3-5 sentence) weekly dream report. Identify overall themes, emotional patterns, "+
		"and what the dreamer's subconscious might be processing. Be warm and insightful.\n\n%s", count, summaries)
}

func dreamArtPrompt(title, summary string, moods []string) string {
	moodText := ""
	if len(moods) > 0 {
		moodText = " The mood is " + strings.Join(moods, ", ") + "."
	}
	return fmt.Sprintf("Create a dreamy, surreal, artistic illustration for a dream titled \"%s\". %s%s "+
		"Style: ethereal, soft colors, dreamlike atmosphere, digital art. Do not include any text or words in the image.",
		title, summary, moodText)
}
