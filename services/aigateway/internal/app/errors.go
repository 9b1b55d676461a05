package app

import "errors"

// Validation failures. Their text is returned to callers as is.
var (
	ErrAudioRequired         = errors.New("audioBase64 is required")
	ErrMessageRequired       = errors.New("message is required")
	ErrTranscriptionRequired = errors.New("transcription is required")
	ErrSummariesRequired     = errors.New("dreamSummaries is required")
	ErrArtInputRequired      = errors.New("title and summary are required")
)

var validationErrors = []error{ErrAudioRequired, ErrMessageRequired, ErrTranscriptionRequired, ErrSummariesRequired, ErrArtInputRequired}

// Sanitized failures. Provider text never reaches these errors.
var (
	ErrUnreadableAudio  = errors.New("unreadable audio")
	ErrInvalidResponse  = errors.New("invalid analysis response")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrRateLimited      = errors.New("provider rate limited")
	ErrMisconfigured    = errors.New("provider misconfigured")
	ErrUnavailable      = errors.New("provider unavailable")
	ErrAskFailed        = errors.New("ask dream failed")
	ErrArtUnavailable   = errors.New("dream art unavailable")
	ErrReportGeneration = errors.New("report generation failed")
)

// userMessages is what callers see for each sanitized failure.
var userMessages = []struct {
	err error
	msg string
}{
	{ErrUnreadableAudio, "We could not read the recording. Please try recording again."},
	{ErrInvalidResponse, "The dream analysis came back in an unexpected format. Please try again."},
	{ErrNoSpeech, "No speech was detected in the recording. Please try again and speak clearly."},
	{ErrRateLimited, "Too many dreams are being decoded right now. Please wait a moment and try again."},
	{ErrMisconfigured, "The dream service is not configured correctly. Please try again later."},
	{ErrUnavailable, "The dream service is temporarily unavailable. Please try again in a few minutes."},
	{ErrAskFailed, "Sorry, I could not process your question right now."},
	{ErrArtUnavailable, "Dream art could not be generated right now. Please try again later."},
	{ErrReportGeneration, "The weekly report could not be written right now. Please try again later."},
}

// UserMessage returns the text a caller may see for err. Validation errors
// keep their own text; anything unrecognized reads as unavailable.
func UserMessage(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return UserMessage(ErrUnavailable)
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
