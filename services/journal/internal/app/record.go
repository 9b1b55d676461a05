package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"time"

	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/insights"
	"dreamdecode/pkg/journal"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/recording"
	"dreamdecode/pkg/storage"
	"dreamdecode/services/journal/internal/aiclient"
)

// RecordResult is a processed recording.
type RecordResult struct {
	Dream domain.Dream `json:"dream"`
	User  domain.User  `json:"user"`
}

// RecordDream runs one recording through the state machine and, when it is
// long enough, through the gateway into the caller's journal. Only one
// recording per user is processed at a time.
func (a *App) RecordDream(ctx context.Context, id usertoken.Identity, rec recording.AudioRecorder) (RecordResult, error) {
	s := a.Journal(ctx, id)
	session := recording.NewSession(rec)

	s.Dispatch(journal.SetRecording{Active: true})
	err := session.Start(ctx)
	var clip recording.Clip
	if err == nil {
		clip, err = session.Stop(ctx)
	}
	s.Dispatch(journal.SetRecording{Active: false})
	if errors.Is(err, recording.ErrTooShort) {
		return RecordResult{}, ErrRecordingTooShort
	}
	if errors.Is(err, recording.ErrEmpty) {
		return RecordResult{}, ErrRecordingEmpty
	}
	if err != nil {
		return RecordResult{}, fmt.Errorf("capture recording: %w", err)
	}

	release, err := s.BeginProcessing()
	if err != nil {
		return RecordResult{}, ErrBusy
	}
	defer release()

	var result RecordResult
	err = session.Process(ctx, func(ctx context.Context, clip recording.Clip) error {
		dream, err := a.decode(ctx, s, clip)
		if err != nil {
			return err
		}
		user, _ := s.RecordDream(ctx, dream)
		result = RecordResult{Dream: dream, User: user}
		return nil
	})
	if err != nil {
		util.LoggerFromContext(ctx).Warn("dream processing failed", "user_id", id.UserID, "state", session.State(), "err", err)
		return RecordResult{}, err
	}
	if a.observer != nil {
		a.observer.DreamRecorded()
	}
	util.LoggerFromContext(ctx).Info("dream recorded", "user_id", id.UserID, "dream_id", result.Dream.ID, "duration_s", clip.Duration.Seconds())
	return result, nil
}

// decode sends the clip to the gateway and builds the new dream.
func (a *App) decode(ctx context.Context, s *journal.Store, clip recording.Clip) (domain.Dream, error) {
	user := s.User()
	analysis, err := a.gateway.ProcessDream(ctx, aiclient.ProcessRequest{
		AudioBase64:         base64.StdEncoding.EncodeToString(clip.Data),
		MIMEType:            clip.MIMEType,
		InterpretationStyle: user.InterpretationStyle,
		RecurringSymbols:    insights.RecurringSymbolNames(s.Dreams()),
		VoiceLanguage:       a.voiceLanguage(ctx, user.ID),
	})
	if err != nil {
		return domain.Dream{}, err
	}

	now := a.now().UTC()
	dream := domain.Dream{
		ID:                   util.NewID(),
		UserID:               user.ID,
		CreatedAt:            now,
		Title:                analysis.Title,
		Transcription:        analysis.Transcription,
		Summary:              analysis.Summary,
		AudioDurationSeconds: int(math.Round(clip.Duration.Seconds())),
		Moods:                analysis.Moods,
		Symbols:              make([]domain.DreamSymbol, 0, len(analysis.Symbols)),
		IsPremiumContent:     true,
	}
	if analysis.Interpretation != "" {
		interp := analysis.Interpretation
		dream.Interpretation = &interp
	}
	for _, sym := range analysis.Symbols {
		dream.Symbols = append(dream.Symbols, domain.DreamSymbol{
			Name:            sym.Name,
			Emoji:           sym.Emoji,
			OccurrenceCount: 1,
			FirstSeen:       now,
			MeaningShort:    sym.MeaningShort,
		})
	}
	dream.AudioURL = a.storeAudio(ctx, user.ID, dream.ID, clip)
	return dream, nil
}

// storeAudio uploads the recording and returns its URL. Failures only cost
// the playback link.
func (a *App) storeAudio(ctx context.Context, userID, dreamID string, clip recording.Clip) string {
	if a.objects == nil {
		return ""
	}
	key := storage.AudioKey(userID, dreamID, clip.MIMEType)
	url, err := storage.Upload(ctx, a.objects, key, clip.Data, clip.MIMEType, a.presignExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("audio upload failed", "key", key, "err", err)
		return ""
	}
	return url
}

func (a *App) voiceLanguage(ctx context.Context, userID string) string {
	if a.local == nil {
		return ""
	}
	lang, err := a.local.LoadPreference(ctx, userID, localstore.PrefVoiceLanguage)
	if err != nil && !errors.Is(err, localstore.ErrNoPreference) {
		util.LoggerFromContext(ctx).Warn("load voice language failed", "user_id", userID, "err", err)
	}
	return lang
}

// objectKey recovers the key of an object from a URL this service handed
// out, keeping its extension.
func objectKey(kind, userID, dreamID, rawURL string) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" {
		if kind == "audio" {
			return storage.AudioKey(userID, dreamID, "")
		}
		return storage.ArtKey(userID, dreamID, "")
	}
	return path.Join(kind, userID, dreamID+ext)
}

// Duration parses the client-reported length of a recording in seconds.
func Duration(seconds float64) time.Duration {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
