package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/ai"
)

const reportMaxOutputTokens = 512

// Observer receives one call per provider operation.
type Observer interface {
	ObserveAI(operation, outcome string, d time.Duration)
}

// Config wires the providers used by the gateway. Audio and Images may be nil
// when the configured provider cannot serve them.
type Config struct {
	Text       ai.TextGenerator
	Audio      ai.AudioGenerator
	Images     ai.ImageGenerator
	RetryDelay time.Duration
	Observer   Observer
}

// App turns dream requests into provider calls and sanitizes the outcome.
type App struct {
	text       ai.TextGenerator
	audio      ai.AudioGenerator
	images     ai.ImageGenerator
	retryDelay time.Duration
	observer   Observer
}

// New validates config and returns an App.
func New(cfg Config) (*App, error) {
	if cfg.Text == nil {
		return nil, errors.New("text generator required")
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = 0
	}
	return &App{
		text:       cfg.Text,
		audio:      cfg.Audio,
		images:     cfg.Images,
		retryDelay: delay,
		observer:   cfg.Observer,
	}, nil
}

// ProcessDream transcribes and interprets a recording in one provider call.
func (a *App) ProcessDream(ctx context.Context, req ProcessRequest) (Analysis, error) {
	if strings.TrimSpace(req.AudioBase64) == "" {
		return Analysis{}, ErrAudioRequired
	}
	start := time.Now()
	analysis, err := a.processDream(ctx, req)
	a.observe("process_dream", start, err)
	return analysis, err
}

func (a *App) processDream(ctx context.Context, req ProcessRequest) (Analysis, error) {
	logger := util.LoggerFromContext(ctx)
	if a.audio == nil {
		logger.Error("process dream requested but no audio-capable provider is configured")
		return Analysis{}, ErrMisconfigured
	}
	data, mimeType, err := decodeAudio(req.AudioBase64, req.MIMEType)
	if err != nil {
		logger.Warn("undecodable audio payload", "err", err)
		return Analysis{}, ErrUnreadableAudio
	}

	prompt := processDreamPrompt(req.InterpretationStyle, req.RecurringSymbols, VoiceLanguage(req.VoiceLanguage))
	text, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.audio.GenerateFromAudio(ctx, ai.Audio{Data: data, MIMEType: mimeType}, prompt, ai.WithJSONResponse())
	})
	if err != nil {
		return Analysis{}, sanitize(ctx, "process_dream", err, true)
	}
	return parseAnalysis(ctx, text, true)
}

// TranscribeDream returns the verbatim transcription of a recording without
// interpreting it.
func (a *App) TranscribeDream(ctx context.Context, req TranscribeRequest) (string, error) {
	if strings.TrimSpace(req.AudioBase64) == "" {
		return "", ErrAudioRequired
	}
	start := time.Now()
	transcription, err := a.transcribeDream(ctx, req)
	a.observe("transcribe_dream", start, err)
	return transcription, err
}

func (a *App) transcribeDream(ctx context.Context, req TranscribeRequest) (string, error) {
	logger := util.LoggerFromContext(ctx)
	if a.audio == nil {
		logger.Error("transcription requested but no audio-capable provider is configured")
		return "", ErrMisconfigured
	}
	data, mimeType, err := decodeAudio(req.AudioBase64, req.MIMEType)
	if err != nil {
		logger.Warn("undecodable audio payload", "err", err)
		return "", ErrUnreadableAudio
	}
	prompt := transcribeDreamPrompt(VoiceLanguage(req.VoiceLanguage))
	text, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.audio.GenerateFromAudio(ctx, ai.Audio{Data: data, MIMEType: mimeType}, prompt, ai.WithJSONResponse())
	})
	if err != nil {
		return "", sanitize(ctx, "transcribe_dream", err, true)
	}
	var out struct {
		Transcription string `json:"transcription"`
	}
	if err := ai.DecodeJSONObject(text, &out); err != nil {
		logger.Error("provider reply is not a transcription", "err", err, "reply_len", len(text))
		return "", ErrInvalidResponse
	}
	transcription := strings.TrimSpace(out.Transcription)
	if transcription == "" {
		return "", ErrNoSpeech
	}
	return transcription, nil
}

// AnalyzeDream interprets an existing transcription.
func (a *App) AnalyzeDream(ctx context.Context, req AnalyzeRequest) (Analysis, error) {
	transcription := strings.TrimSpace(req.Transcription)
	if transcription == "" {
		return Analysis{}, ErrTranscriptionRequired
	}
	start := time.Now()
	system, user := analyzeDreamPrompts(transcription, req.InterpretationStyle, req.RecurringSymbols)
	text, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.text.GenerateText(ctx, system, user, ai.WithJSONResponse(), ai.WithMaxOutputTokens(1024))
	})
	if err != nil {
		err = sanitize(ctx, "analyze_dream", err, false)
		a.observe("analyze_dream", start, err)
		return Analysis{}, err
	}
	analysis, err := parseAnalysis(ctx, text, false)
	if err == nil {
		analysis.Transcription = transcription
	}
	a.observe("analyze_dream", start, err)
	return analysis, err
}

// AskDream answers a follow-up question about a dream. Every failure other
// than a missing message collapses into ErrAskFailed.
func (a *App) AskDream(ctx context.Context, req AskRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrMessageRequired
	}
	start := time.Now()
	prompt := askDreamPrompt(req, VoiceLanguage(req.VoiceLanguage))
	reply, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.text.GenerateText(ctx, "", prompt)
	})
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = ai.ErrEmptyResponse
	}
	if err != nil {
		util.LoggerFromContext(ctx).Error("ask dream failed", "status", ai.StatusOf(err), "err", err)
		a.observe("ask_dream", start, ErrAskFailed)
		return "", ErrAskFailed
	}
	a.observe("ask_dream", start, nil)
	return reply, nil
}

// GenerateReport writes the weekly narrative from preformatted summaries.
func (a *App) GenerateReport(ctx context.Context, req ReportRequest) (string, error) {
	if strings.TrimSpace(req.DreamSummaries) == "" {
		return "", ErrSummariesRequired
	}
	start := time.Now()
	count := req.DreamCount
	if count <= 0 {
		count = strings.Count(strings.TrimSpace(req.DreamSummaries), "\n") + 1
	}
	report, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.text.GenerateText(ctx, "", weeklyReportPrompt(req.DreamSummaries, count), ai.WithMaxOutputTokens(reportMaxOutputTokens))
	})
	if err != nil {
		err = reportError(sanitize(ctx, "generate_report", err, false))
		a.observe("generate_report", start, err)
		return "", err
	}
	a.observe("generate_report", start, nil)
	return strings.TrimSpace(report), nil
}

// GenerateDreamArt renders an illustration and returns its URL.
func (a *App) GenerateDreamArt(ctx context.Context, req ArtRequest) (string, error) {
	title, summary := strings.TrimSpace(req.Title), strings.TrimSpace(req.Summary)
	if title == "" || summary == "" {
		return "", ErrArtInputRequired
	}
	start := time.Now()
	if a.images == nil {
		util.LoggerFromContext(ctx).Error("dream art requested but no image provider is configured")
		a.observe("generate_dream_art", start, ErrMisconfigured)
		return "", ErrMisconfigured
	}
	url, err := ai.WithRetry(ctx, a.retryDelay, func(ctx context.Context) (string, error) {
		return a.images.GenerateImage(ctx, dreamArtPrompt(title, summary, req.Moods))
	})
	if err != nil {
		err = sanitize(ctx, "generate_dream_art", err, false)
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalidResponse) {
			err = ErrArtUnavailable
		}
		a.observe("generate_dream_art", start, err)
		return "", err
	}
	a.observe("generate_dream_art", start, nil)
	return url, nil
}

func parseAnalysis(ctx context.Context, text string, requireSpeech bool) (Analysis, error) {
	var raw rawAnalysis
	if err := ai.DecodeJSONObject(text, &raw); err != nil {
		util.LoggerFromContext(ctx).Error("provider reply is not a dream analysis", "err", err, "reply_len", len(text))
		return Analysis{}, ErrInvalidResponse
	}
	analysis := normalize(raw)
	if requireSpeech && analysis.Transcription == "" {
		return Analysis{}, ErrNoSpeech
	}
	return analysis, nil
}

// sanitize logs the provider failure and maps it onto a user-safe error.
func sanitize(ctx context.Context, op string, err error, audio bool) error {
	util.LoggerFromContext(ctx).Error("provider call failed", "operation", op, "status", ai.StatusOf(err), "err", err)
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RateLimited():
			return ErrRateLimited
		case apiErr.Unauthorized():
			return ErrMisconfigured
		case apiErr.StatusCode == http.StatusNotFound:
			return ErrMisconfigured
		case audio && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusRequestEntityTooLarge || apiErr.StatusCode == http.StatusUnsupportedMediaType):
			return ErrUnreadableAudio
		}
		return ErrUnavailable
	}
	if errors.Is(err, ai.ErrEmptyResponse) {
		return ErrInvalidResponse
	}
	return ErrUnavailable
}

func reportError(err error) error {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrMisconfigured) {
		return err
	}
	return ErrReportGeneration
}

func (a *App) observe(op string, start time.Time, err error) {
	if a.observer == nil {
		return
	}
	a.observer.ObserveAI(op, outcomeOf(err), time.Since(start))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrNoSpeech):
		return "no_speech"
	case errors.Is(err, ErrUnreadableAudio):
		return "unreadable_audio"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "unavailable"
	}
}

// decodeAudio accepts standard, URL-safe and data-URL base64 payloads.
func decodeAudio(payload, mimeType string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("malformed data url")
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(header, ";")
		}
		payload = body
	}
	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err = enc.DecodeString(payload); err == nil {
			break
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 audio: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("audio payload is empty")
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "audio/webm"
	}
	return data, strings.TrimSpace(mimeType), nil
}
