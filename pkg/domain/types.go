package domain

import "time"

// MoodName is one of the eight fixed emotional categories.
type MoodName string

const (
	MoodPeaceful MoodName = "peaceful"
	MoodAnxious  MoodName = "anxious"
	MoodJoyful   MoodName = "joyful"
	MoodConfused MoodName = "confused"
	MoodSad      MoodName = "sad"
	MoodExcited  MoodName = "excited"
	MoodFearful  MoodName = "fearful"
	MoodNeutral  MoodName = "neutral"
)

type InterpretationStyle string

const (
	StyleJungian   InterpretationStyle = "jungian"
	StyleModern    InterpretationStyle = "modern"
	StyleSpiritual InterpretationStyle = "spiritual"
	StyleMixed     InterpretationStyle = "mixed"
)

// Valid reports whether s is a known interpretation style.
func (s InterpretationStyle) Valid() bool {
	switch s {
	case StyleJungian, StyleModern, StyleSpiritual, StyleMixed:
		return true
	}
	return false
}

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// Gradient is a two-color display gradient, start then end.
type Gradient [2]string

// MoodTag is a classified emotion attached to a dream. Emoji and Gradient are
// derived from Mood but persisted so stored dreams render the same later.
type MoodTag struct {
	Mood       MoodName `json:"mood"`
	Confidence float64  `json:"confidence"`
	Emoji      string   `json:"emoji"`
	Gradient   Gradient `json:"gradient"`
}

// DreamSymbol is a concept extracted from a dream. OccurrenceCount is
// computed across the user's history, not per dream.
type DreamSymbol struct {
	Name            string    `json:"name"`
	Emoji           string    `json:"emoji"`
	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen"`
	MeaningShort    string    `json:"meaning_short"`
	MeaningFull     string    `json:"meaning_full"`
}

type Dream struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"user_id"`
	CreatedAt            time.Time     `json:"created_at"`
	Title                string        `json:"title"`
	Transcription        string        `json:"transcription"`
	Summary              string        `json:"summary"`
	AudioURL             string        `json:"audio_url,omitempty"`
	AudioDurationSeconds int           `json:"audio_duration_seconds"`
	Moods                []MoodTag     `json:"moods"`
	Symbols              []DreamSymbol `json:"symbols"`
	Interpretation       *string       `json:"interpretation"`
	ArtURL               *string       `json:"art_url"`
	ArtStyle             *string       `json:"art_style,omitempty"`
	IsPremiumContent     bool          `json:"is_premium_content"`
}

// DreamPatch carries user-initiated edits. Nil fields are left unchanged.
type DreamPatch struct {
	Title          *string `json:"title,omitempty"`
	Summary        *string `json:"summary,omitempty"`
	Interpretation *string `json:"interpretation,omitempty"`
	ArtURL         *string `json:"art_url,omitempty"`
	ArtStyle       *string `json:"art_style,omitempty"`
}

// Apply returns a copy of d with the patch applied.
func (p DreamPatch) Apply(d Dream) Dream {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Summary != nil {
		d.Summary = *p.Summary
	}
	if p.Interpretation != nil {
		v := *p.Interpretation
		d.Interpretation = &v
	}
	if p.ArtURL != nil {
		v := *p.ArtURL
		d.ArtURL = &v
	}
	if p.ArtStyle != nil {
		v := *p.ArtStyle
		d.ArtStyle = &v
	}
	return d
}

type User struct {
	ID                  string              `json:"id"`
	Email               string              `json:"email"`
	Name                string              `json:"name"`
	CreatedAt           time.Time           `json:"created_at"`
	StreakCurrent       int                 `json:"streak_current"`
	StreakLongest       int                 `json:"streak_longest"`
	LastDreamDate       *time.Time          `json:"last_dream_date"`
	SubscriptionTier    SubscriptionTier    `json:"subscription_tier"`
	InterpretationStyle InterpretationStyle `json:"interpretation_style"`
	ReminderTime        string              `json:"reminder_time"`
	OnboardingCompleted bool                `json:"onboarding_completed"`
}

// UserPatch carries profile edits. Nil fields are left unchanged.
type UserPatch struct {
	Name                *string              `json:"name,omitempty"`
	InterpretationStyle *InterpretationStyle `json:"interpretation_style,omitempty"`
	ReminderTime        *string              `json:"reminder_time,omitempty"`
	OnboardingCompleted *bool                `json:"onboarding_completed,omitempty"`
}

// Apply returns a copy of u with the patch applied.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.InterpretationStyle != nil {
		u.InterpretationStyle = *p.InterpretationStyle
	}
	if p.ReminderTime != nil {
		u.ReminderTime = *p.ReminderTime
	}
	if p.OnboardingCompleted != nil {
		u.OnboardingCompleted = *p.OnboardingCompleted
	}
	return u
}

type AlertType string

const (
	AlertRecurringSymbol AlertType = "recurring_symbol"
	AlertMoodShift       AlertType = "mood_shift"
)

// PatternAlert is a derived insight. It is recomputed on demand and never stored.
type PatternAlert struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Type            AlertType `json:"type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	RelatedDreamIDs []string  `json:"related_dream_ids"`
	CreatedAt       time.Time `json:"created_at"`
	IsRead          bool      `json:"is_read"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one turn of an "ask your dream" conversation.
type ConversationMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type WeeklyReport struct {
	UserID           string        `json:"user_id"`
	WeekStart        time.Time     `json:"week_start"`
	WeekEnd          time.Time     `json:"week_end"`
	DreamCount       int           `json:"dream_count"`
	DominantMood     *MoodTag      `json:"dominant_mood"`
	RecurringSymbols []DreamSymbol `json:"recurring_symbols"`
	AISummary        string        `json:"ai_summary"`
	HealthScore      int           `json:"dream_health_score"`
}
