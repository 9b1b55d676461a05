// Package storage keeps dream recordings and generated artwork in an
// S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore provides access to object storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// AudioKey is the object key of a dream's recording.
func AudioKey(userID, dreamID, mimeType string) string {
	return path.Join("audio", userID, dreamID+extensionFor(mimeType, ".m4a"))
}

// ArtKey is the object key of a dream's generated artwork.
func ArtKey(userID, dreamID, mimeType string) string {
	return path.Join("art", userID, dreamID+extensionFor(mimeType, ".png"))
}

// DreamPrefix matches every object belonging to a dream owner under kind.
func DreamPrefix(kind, userID string) string {
	return path.Join(kind, userID) + "/"
}

var knownExtensions = map[string]string{
	"audio/mp4":   ".m4a",
	"audio/m4a":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/aac":   ".aac",
	"image/png":   ".png",
	"image/jpeg":  ".jpg",
	"image/webp":  ".webp",
}

func extensionFor(mimeType, fallback string) string {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		return fallback
	}
	if ext, ok := knownExtensions[strings.ToLower(mediaType)]; ok {
		return ext
	}
	return fallback
}

// Upload stores data under key and returns a presigned URL valid for expiry.
func Upload(ctx context.Context, store ObjectStore, key string, data []byte, contentType string, expiry time.Duration) (string, error) {
	if store == nil {
		return "", errors.New("object store not configured")
	}
	if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	url, err := store.PresignGet(ctx, key, expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}
