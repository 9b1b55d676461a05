package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/insights"
	"dreamdecode/pkg/journal"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/queue"
	"dreamdecode/pkg/storage"
	"dreamdecode/pkg/store"
	"dreamdecode/services/journal/internal/aiclient"
)

// Gateway is the subset of the AI gateway the journal uses.
type Gateway interface {
	ProcessDream(ctx context.Context, req aiclient.ProcessRequest) (aiclient.Analysis, error)
	AskDream(ctx context.Context, req aiclient.AskRequest) (string, error)
	GenerateReport(ctx context.Context, summaries string, count int) (string, error)
	GenerateDreamArt(ctx context.Context, req aiclient.ArtRequest) (string, error)
}

// Observer receives journal events for metrics.
type Observer interface {
	DreamRecorded()
	ObserveArtJob(status string)
}

// Config wires the journal's dependencies. Everything but Gateway and
// Registry is optional.
type Config struct {
	Gateway  Gateway
	Registry *journal.Registry
	// Remote holds profiles and conversations.
	Remote store.Store
	// Local holds per-user preferences.
	Local         *localstore.Store
	Objects       storage.ObjectStore
	PresignExpiry time.Duration
	ArtQueue      *queue.ArtQueue
	Observer      Observer
	Weights       insights.Weights
	Location      *time.Location
	HTTPClient    *http.Client
	Now           func() time.Time
}

// App implements the journal flows on top of the per-user dream stores.
type App struct {
	gateway       Gateway
	registry      *journal.Registry
	remote        store.Store
	local         *localstore.Store
	objects       storage.ObjectStore
	presignExpiry time.Duration
	artQueue      *queue.ArtQueue
	observer      Observer
	weights       insights.Weights
	location      *time.Location
	httpClient    *http.Client
	now           func() time.Time
}

// New validates config and returns an App.
func New(cfg Config) (*App, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("ai gateway client required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("journal registry required")
	}
	a := &App{
		gateway:       cfg.Gateway,
		registry:      cfg.Registry,
		remote:        cfg.Remote,
		local:         cfg.Local,
		objects:       cfg.Objects,
		presignExpiry: cfg.PresignExpiry,
		artQueue:      cfg.ArtQueue,
		observer:      cfg.Observer,
		weights:       cfg.Weights,
		location:      cfg.Location,
		httpClient:    cfg.HTTPClient,
		now:           cfg.Now,
	}
	if a.presignExpiry <= 0 {
		a.presignExpiry = 7 * 24 * time.Hour
	}
	if a.weights == (insights.Weights{}) {
		a.weights = insights.DefaultWeights()
	}
	if a.location == nil {
		a.location = time.UTC
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Journal returns the caller's dream store, loading the profile from the
// remote store or creating a fresh one on first contact.
func (a *App) Journal(ctx context.Context, id usertoken.Identity) *journal.Store {
	if s, ok := a.registry.Lookup(id.UserID); ok {
		return s
	}
	user, found := a.loadUser(ctx, id)
	s := a.registry.Open(ctx, user)
	if !found && a.remote != nil {
		if err := a.remote.SaveUser(ctx, s.User()); err != nil {
			util.LoggerFromContext(ctx).Warn("save new user failed", "user_id", id.UserID, "err", err)
		}
	}
	return s
}

func (a *App) loadUser(ctx context.Context, id usertoken.Identity) (domain.User, bool) {
	if a.remote != nil {
		u, ok, err := a.remote.GetUser(ctx, id.UserID)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("load user failed", "user_id", id.UserID, "err", err)
		}
		if ok {
			return u, true
		}
	}
	return domain.User{
		ID:                  id.UserID,
		Email:               id.Email,
		CreatedAt:           a.now().UTC(),
		SubscriptionTier:    domain.TierFree,
		InterpretationStyle: domain.StyleMixed,
	}, false
}

// Me returns the caller's profile.
func (a *App) Me(ctx context.Context, id usertoken.Identity) domain.User {
	return a.Journal(ctx, id).User()
}

// UpdateMe applies a profile patch. Style and reminder time are also kept
// as local preferences.
func (a *App) UpdateMe(ctx context.Context, id usertoken.Identity, patch domain.UserPatch) (domain.User, error) {
	if patch.InterpretationStyle != nil && !patch.InterpretationStyle.Valid() {
		return domain.User{}, ErrInvalidStyle
	}
	if patch.ReminderTime != nil {
		t, err := normalizeReminderTime(*patch.ReminderTime)
		if err != nil {
			return domain.User{}, err
		}
		patch.ReminderTime = &t
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	user, _ := a.Journal(ctx, id).UpdateUser(ctx, patch)
	if a.local != nil {
		if patch.InterpretationStyle != nil {
			a.savePreference(ctx, id.UserID, localstore.PrefInterpretationStyle, string(*patch.InterpretationStyle))
		}
		if patch.ReminderTime != nil {
			a.savePreference(ctx, id.UserID, localstore.PrefReminderTime, *patch.ReminderTime)
		}
	}
	return user, nil
}

func (a *App) savePreference(ctx context.Context, userID, key, value string) {
	if err := a.local.SavePreference(ctx, userID, key, value); err != nil {
		util.LoggerFromContext(ctx).Warn("save preference failed", "user_id", userID, "key", key, "err", err)
	}
}

// Dreams lists the caller's dreams newest first.
func (a *App) Dreams(ctx context.Context, id usertoken.Identity) []domain.Dream {
	return a.Journal(ctx, id).Dreams()
}

func (a *App) Dream(ctx context.Context, id usertoken.Identity, dreamID string) (domain.Dream, error) {
	d, ok := a.Journal(ctx, id).Dream(dreamID)
	if !ok {
		return domain.Dream{}, ErrDreamNotFound
	}
	return d, nil
}

// UpdateDream applies user edits to a dream.
func (a *App) UpdateDream(ctx context.Context, id usertoken.Identity, dreamID string, patch domain.DreamPatch) (domain.Dream, error) {
	d, _, err := a.Journal(ctx, id).UpdateDream(ctx, dreamID, patch)
	if errors.Is(err, journal.ErrDreamNotFound) {
		return domain.Dream{}, ErrDreamNotFound
	}
	return d, err
}

// DeleteDream removes a dream and, best effort, its stored objects.
func (a *App) DeleteDream(ctx context.Context, id usertoken.Identity, dreamID string) error {
	s := a.Journal(ctx, id)
	d, ok := s.Dream(dreamID)
	if !ok {
		return ErrDreamNotFound
	}
	if _, err := s.RemoveDream(ctx, dreamID); err != nil {
		if errors.Is(err, journal.ErrDreamNotFound) {
			return ErrDreamNotFound
		}
		return err
	}
	if a.objects != nil {
		var keys []string
		if d.AudioURL != "" {
			keys = append(keys, objectKey("audio", id.UserID, dreamID, d.AudioURL))
		}
		if d.ArtURL != nil {
			keys = append(keys, objectKey("art", id.UserID, dreamID, *d.ArtURL))
		}
		for _, key := range keys {
			if err := a.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				util.LoggerFromContext(ctx).Warn("delete dream object failed", "key", key, "err", err)
			}
		}
	}
	return nil
}

// Insights runs the aggregation engine over the caller's dreams in the
// configured location.
func (a *App) Insights(ctx context.Context, id usertoken.Identity) insights.Report {
	return insights.Compute(a.Journal(ctx, id).Dreams(), a.localNow(), a.weights)
}

func (a *App) localNow() time.Time {
	return a.now().In(a.location)
}

func normalizeReminderTime(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return "", ErrInvalidReminderTime
	}
	return t.Format("15:04"), nil
}
