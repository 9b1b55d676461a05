package recording

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// UploadedRecorder replays audio captured elsewhere, such as a client upload.
type UploadedRecorder struct {
	clip    Clip
	started bool
}

func NewUploadedRecorder(data []byte, mimeType string, duration time.Duration) *UploadedRecorder {
	return &UploadedRecorder{clip: Clip{Data: data, MIMEType: mimeType, Duration: duration}}
}

func (r *UploadedRecorder) Start(context.Context) error {
	if len(r.clip.Data) == 0 {
		return ErrEmpty
	}
	r.started = true
	return nil
}

func (r *UploadedRecorder) Stop(context.Context) (Clip, error) {
	if !r.started {
		return Clip{}, errors.New("recorder not started")
	}
	return r.clip, nil
}

// FileRecorder reads a recording from disk. The duration is supplied by the
// caller since decoding audio containers is out of scope.
type FileRecorder struct {
	Path     string
	Duration time.Duration
}

func (r FileRecorder) Start(context.Context) error {
	if _, err := os.Stat(r.Path); err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	return nil
}

func (r FileRecorder) Stop(context.Context) (Clip, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return Clip{}, fmt.Errorf("read recording: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(r.Path))
	if mimeType == "" {
		mimeType = "audio/m4a"
	}
	return Clip{Data: data, MIMEType: mimeType, Duration: r.Duration}, nil
}
