package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"dreamdecode/pkg/domain"
)

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		StreakCurrent:       u.StreakCurrent,
		StreakLongest:       u.StreakLongest,
		LastDreamDate:       u.LastDreamDate,
		SubscriptionTier:    string(u.SubscriptionTier),
		InterpretationStyle: string(u.InterpretationStyle),
		ReminderTime:        u.ReminderTime,
		OnboardingCompleted: u.OnboardingCompleted,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           time.Now().UTC(),
	}
}

func userFromModel(m UserModel) domain.User {
	tier := domain.SubscriptionTier(m.SubscriptionTier)
	if tier == "" {
		tier = domain.TierFree
	}
	style := domain.InterpretationStyle(m.InterpretationStyle)
	if !style.Valid() {
		style = domain.StyleMixed
	}
	return domain.User{
		ID:                  m.ID,
		Email:               m.Email,
		Name:                m.Name,
		CreatedAt:           m.CreatedAt,
		StreakCurrent:       m.StreakCurrent,
		StreakLongest:       m.StreakLongest,
		LastDreamDate:       m.LastDreamDate,
		SubscriptionTier:    tier,
		InterpretationStyle: style,
		ReminderTime:        m.ReminderTime,
		OnboardingCompleted: m.OnboardingCompleted,
	}
}

func dreamToModel(d domain.Dream) (DreamModel, error) {
	moods, err := json.Marshal(nonNilMoods(d.Moods))
	if err != nil {
		return DreamModel{}, err
	}
	symbols, err := json.Marshal(nonNilSymbols(d.Symbols))
	if err != nil {
		return DreamModel{}, err
	}
	return DreamModel{
		ID:                   d.ID,
		UserID:               d.UserID,
		CreatedAt:            d.CreatedAt,
		Title:                d.Title,
		Transcription:        d.Transcription,
		Summary:              d.Summary,
		AudioURL:             d.AudioURL,
		AudioDurationSeconds: d.AudioDurationSeconds,
		Moods:                datatypes.JSON(moods),
		Symbols:              datatypes.JSON(symbols),
		Interpretation:       d.Interpretation,
		ArtURL:               d.ArtURL,
		IsPremiumContent:     d.IsPremiumContent,
		UpdatedAt:            time.Now().UTC(),
	}, nil
}

func dreamFromModel(m DreamModel) (domain.Dream, error) {
	d := domain.Dream{
		ID:                   m.ID,
		UserID:               m.UserID,
		CreatedAt:            m.CreatedAt,
		Title:                m.Title,
		Transcription:        m.Transcription,
		Summary:              m.Summary,
		AudioURL:             m.AudioURL,
		AudioDurationSeconds: m.AudioDurationSeconds,
		Interpretation:       m.Interpretation,
		ArtURL:               m.ArtURL,
		IsPremiumContent:     m.IsPremiumContent,
		Moods:                []domain.MoodTag{},
		Symbols:              []domain.DreamSymbol{},
	}
	if len(m.Moods) > 0 {
		if err := json.Unmarshal(m.Moods, &d.Moods); err != nil {
			return domain.Dream{}, err
		}
	}
	if len(m.Symbols) > 0 {
		if err := json.Unmarshal(m.Symbols, &d.Symbols); err != nil {
			return domain.Dream{}, err
		}
	}
	return d, nil
}

func messageToModel(id, dreamID string, msg domain.ConversationMessage) ConversationMessageModel {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ConversationMessageModel{
		ID:        id,
		DreamID:   dreamID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: ts,
	}
}

func messageFromModel(m ConversationMessageModel) domain.ConversationMessage {
	return domain.ConversationMessage{
		Role:      domain.MessageRole(m.Role),
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
}

func nonNilMoods(m []domain.MoodTag) []domain.MoodTag {
	if m == nil {
		return []domain.MoodTag{}
	}
	return m
}

func nonNilSymbols(s []domain.DreamSymbol) []domain.DreamSymbol {
	if s == nil {
		return []domain.DreamSymbol{}
	}
	return s
}
