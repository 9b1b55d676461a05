package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                  string `gorm:"primaryKey"`
	Email               string `gorm:"index"`
	Name                string
	StreakCurrent       int `gorm:"not null;default:0"`
	StreakLongest       int `gorm:"not null;default:0"`
	LastDreamDate       *time.Time
	SubscriptionTier    string `gorm:"not null;default:free"`
	InterpretationStyle string `gorm:"not null;default:mixed"`
	ReminderTime        string
	OnboardingCompleted bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time
}

// DreamModel has no art_style column on purpose; see RemoteDream.
type DreamModel struct {
	ID                   string    `gorm:"primaryKey"`
	UserID               string    `gorm:"not null;index:idx_dream_user_created,priority:1"`
	CreatedAt            time.Time `gorm:"not null;index:idx_dream_user_created,priority:2,sort:desc"`
	Title                string    `gorm:"not null"`
	Transcription        string    `gorm:"type:text;not null"`
	Summary              string    `gorm:"type:text"`
	AudioURL             string
	AudioDurationSeconds int            `gorm:"not null;default:0"`
	Moods                datatypes.JSON `gorm:"type:jsonb"`
	Symbols              datatypes.JSON `gorm:"type:jsonb"`
	Interpretation       *string        `gorm:"type:text"`
	ArtURL               *string
	IsPremiumContent     bool `gorm:"not null;default:false"`
	UpdatedAt            time.Time
}

type ConversationMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	DreamID   string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
