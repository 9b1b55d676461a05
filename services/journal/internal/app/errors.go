package app

import "errors"

var (
	ErrDreamNotFound          = errors.New("dream not found")
	ErrRecordingTooShort      = errors.New("recording is too short; record at least 3 seconds")
	ErrRecordingEmpty         = errors.New("audio is empty")
	ErrBusy                   = errors.New("a dream is already being processed")
	ErrMessageRequired        = errors.New("message is required")
	ErrInvalidStyle           = errors.New("interpretation style must be jungian, modern, spiritual or mixed")
	ErrInvalidReminderTime    = errors.New("reminder time must be HH:MM or empty")
	ErrUnknownPreference      = errors.New("unknown preference")
	ErrPreferencesUnavailable = errors.New("preferences store is not configured")
	ErrPreferenceNotSet       = errors.New("preference not set")
	ErrNoRecentDreams         = errors.New("record at least one dream this week to get a report")
	ErrArtJobNotFound         = errors.New("art job not found")
	ErrArtQueueUnavailable    = errors.New("art queue is not configured")
	ErrConversationDisabled   = errors.New("conversation history is not configured")
)
