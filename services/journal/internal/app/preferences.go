package app

import (
	"context"
	"errors"
	"strings"

	"dreamdecode/internal/usertoken"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/localstore"
)

var knownPreferences = map[string]bool{
	localstore.PrefVoiceLanguage:       true,
	localstore.PrefInterpretationStyle: true,
	localstore.PrefReminderTime:        true,
	localstore.PrefTheme:               true,
}

// Preferences returns every stored preference of the caller.
func (a *App) Preferences(ctx context.Context, id usertoken.Identity) (map[string]string, error) {
	if a.local == nil {
		return nil, ErrPreferencesUnavailable
	}
	return a.local.LoadAllPreferences(ctx, id.UserID)
}

func (a *App) Preference(ctx context.Context, id usertoken.Identity, key string) (string, error) {
	if a.local == nil {
		return "", ErrPreferencesUnavailable
	}
	if !knownPreferences[key] {
		return "", ErrUnknownPreference
	}
	v, err := a.local.LoadPreference(ctx, id.UserID, key)
	if errors.Is(err, localstore.ErrNoPreference) {
		return "", ErrPreferenceNotSet
	}
	return v, err
}

// SetPreference validates and stores one preference. Style and reminder
// time also update the profile.
func (a *App) SetPreference(ctx context.Context, id usertoken.Identity, key, value string) (string, error) {
	if a.local == nil {
		return "", ErrPreferencesUnavailable
	}
	if !knownPreferences[key] {
		return "", ErrUnknownPreference
	}
	value = strings.TrimSpace(value)
	var patch domain.UserPatch
	switch key {
	case localstore.PrefInterpretationStyle:
		style := domain.InterpretationStyle(strings.ToLower(value))
		if !style.Valid() {
			return "", ErrInvalidStyle
		}
		value = string(style)
		patch.InterpretationStyle = &style
	case localstore.PrefReminderTime:
		t, err := normalizeReminderTime(value)
		if err != nil {
			return "", err
		}
		value = t
		patch.ReminderTime = &t
	}
	if err := a.local.SavePreference(ctx, id.UserID, key, value); err != nil {
		return "", err
	}
	if patch != (domain.UserPatch{}) {
		a.Journal(ctx, id).UpdateUser(ctx, patch)
	}
	return value, nil
}
