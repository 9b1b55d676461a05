package app

import (
	"encoding/json"
	"strconv"
	"strings"

	"dreamdecode/pkg/domain"
)

// ProcessRequest is the body of POST /process-dream.
type ProcessRequest struct {
	AudioBase64         string                     `json:"audioBase64"`
	MIMEType            string                     `json:"mimeType"`
	InterpretationStyle domain.InterpretationStyle `json:"interpretationStyle"`
	RecurringSymbols    []string                   `json:"recurringSymbols"`
	VoiceLanguage       string                     `json:"voiceLanguage,omitempty"`
}

// TranscribeRequest is the body of POST /transcribe-dream.
type TranscribeRequest struct {
	AudioBase64   string `json:"audioBase64"`
	MIMEType      string `json:"mimeType"`
	VoiceLanguage string `json:"voiceLanguage,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze-dream.
type AnalyzeRequest struct {
	Transcription       string                     `json:"transcription"`
	InterpretationStyle domain.InterpretationStyle `json:"interpretation_style"`
	RecurringSymbols    []string                   `json:"recurring_symbols"`
}

// HistoryMessage is one earlier turn of an ask conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DreamContext is what the analyst knows about the dream being discussed.
type DreamContext struct {
	Title          string  `json:"title"`
	Transcription  string  `json:"transcription"`
	Summary        string  `json:"summary"`
	Interpretation *string `json:"interpretation"`
}

// AskRequest is the body of POST /ask-dream.
type AskRequest struct {
	Message       string           `json:"message"`
	History       []HistoryMessage `json:"conversation_history"`
	DreamContext  *DreamContext    `json:"dream_context"`
	VoiceLanguage string           `json:"voice_language,omitempty"`
}

// ReportRequest is the body of POST /generate-report.
type ReportRequest struct {
	DreamSummaries string `json:"dreamSummaries"`
	DreamCount     int    `json:"dreamCount"`
}

// ArtRequest is the body of POST /generate-dream-art.
type ArtRequest struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Moods   []string `json:"moods"`
}

// AnalyzedSymbol is a symbol as extracted from one dream.
type AnalyzedSymbol struct {
	Name         string `json:"name"`
	Emoji        string `json:"emoji"`
	MeaningShort string `json:"meaning_short"`
}

// Analysis is a normalized dream analysis.
type Analysis struct {
	Transcription  string           `json:"transcription"`
	Title          string           `json:"title"`
	Summary        string           `json:"summary"`
	Moods          []domain.MoodTag `json:"moods"`
	Symbols        []AnalyzedSymbol `json:"symbols"`
	Interpretation string           `json:"interpretation"`
}

// rawAnalysis is the provider reply before normalization. Models are loose
// about types, so confidence accepts numbers and numeric strings.
type rawAnalysis struct {
	Transcription string `json:"transcription"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Moods         []struct {
		Mood       string     `json:"mood"`
		Confidence looseFloat `json:"confidence"`
		Emoji      string     `json:"emoji"`
	} `json:"moods"`
	Symbols []struct {
		Name         string `json:"name"`
		Emoji        string `json:"emoji"`
		MeaningShort string `json:"meaning_short"`
	} `json:"symbols"`
	Interpretation string `json:"interpretation"`
}

type looseFloat struct {
	value float64
	set   bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable confidence is treated as missing.
		return nil
	}
	f.value, f.set = v, true
	return nil
}

var _ json.Unmarshaler = (*looseFloat)(nil)
