package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/queue"
	"dreamdecode/pkg/storage"
	"dreamdecode/services/journal/internal/aiclient"
)

// ArtStyle is recorded on dreams whose art was generated here.
const ArtStyle = "ethereal"

const maxArtBytes = 20 << 20

// ArtResult is either a queued job or, without a queue, the updated dream.
type ArtResult struct {
	Job   *queue.ArtJob `json:"job,omitempty"`
	Dream *domain.Dream `json:"dream,omitempty"`
}

// RequestArt starts art generation for a dream: queued when a worker queue
// is configured, inline otherwise.
func (a *App) RequestArt(ctx context.Context, id usertoken.Identity, dreamID string) (ArtResult, error) {
	if _, err := a.Dream(ctx, id, dreamID); err != nil {
		return ArtResult{}, err
	}
	if a.artQueue != nil {
		job, err := a.artQueue.Enqueue(ctx, id.UserID, dreamID)
		if err != nil {
			return ArtResult{}, fmt.Errorf("enqueue art job: %w", err)
		}
		a.observeArt(queue.StatusQueued)
		return ArtResult{Job: &job}, nil
	}
	dream, err := a.renderArt(ctx, id, dreamID)
	if err != nil {
		a.observeArt(queue.StatusFailed)
		return ArtResult{}, err
	}
	a.observeArt(queue.StatusDone)
	return ArtResult{Dream: &dream}, nil
}

// ArtJob returns a queued job, scoped to its owner.
func (a *App) ArtJob(ctx context.Context, id usertoken.Identity, jobID string) (queue.ArtJob, error) {
	if a.artQueue == nil {
		return queue.ArtJob{}, ErrArtQueueUnavailable
	}
	job, ok, err := a.artQueue.GetJob(ctx, jobID)
	if err != nil {
		return queue.ArtJob{}, err
	}
	if !ok || job.UserID != id.UserID {
		return queue.ArtJob{}, ErrArtJobNotFound
	}
	return job, nil
}

// HandleArtJob is the queue worker entry point.
func (a *App) HandleArtJob(ctx context.Context, job queue.ArtJob) (string, error) {
	dream, err := a.renderArt(ctx, usertoken.Identity{UserID: job.UserID}, job.DreamID)
	if err != nil {
		a.observeArt(queue.StatusFailed)
		return "", err
	}
	a.observeArt(queue.StatusDone)
	return *dream.ArtURL, nil
}

func (a *App) renderArt(ctx context.Context, id usertoken.Identity, dreamID string) (domain.Dream, error) {
	s := a.Journal(ctx, id)
	dream, ok := s.Dream(dreamID)
	if !ok {
		return domain.Dream{}, ErrDreamNotFound
	}
	moods := make([]string, 0, len(dream.Moods))
	for _, m := range dream.Moods {
		moods = append(moods, string(m.Mood))
	}
	artURL, err := a.gateway.GenerateDreamArt(ctx, aiclient.ArtRequest{
		Title:   dream.Title,
		Summary: dream.Summary,
		Moods:   moods,
	})
	if err != nil {
		return domain.Dream{}, err
	}
	artURL = a.keepArt(ctx, id.UserID, dreamID, artURL)
	style := ArtStyle
	updated, _, err := s.UpdateDream(ctx, dreamID, domain.DreamPatch{ArtURL: &artURL, ArtStyle: &style})
	if err != nil {
		return domain.Dream{}, err
	}
	return updated, nil
}

// keepArt copies provider-hosted art into object storage, since provider
// links expire. On any failure the provider link is kept.
func (a *App) keepArt(ctx context.Context, userID, dreamID, providerURL string) string {
	if a.objects == nil || !strings.HasPrefix(providerURL, "http") {
		return providerURL
	}
	logger := util.LoggerFromContext(ctx)
	data, contentType, err := a.fetch(ctx, providerURL)
	if err != nil {
		logger.Warn("download dream art failed", "dream_id", dreamID, "err", err)
		return providerURL
	}
	key := storage.ArtKey(userID, dreamID, contentType)
	stored, err := storage.Upload(ctx, a.objects, key, data, contentType, a.presignExpiry)
	if err != nil {
		logger.Warn("store dream art failed", "key", key, "err", err)
		return providerURL
	}
	return stored
}

func (a *App) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxArtBytes {
		return nil, "", errors.New("art image too large")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (a *App) observeArt(status string) {
	if a.observer != nil {
		a.observer.ObserveArtJob(status)
	}
}
