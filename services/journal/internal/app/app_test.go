package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"dreamdecode/internal/usertoken"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/journal"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/queue"
	"dreamdecode/pkg/recording"
	"dreamdecode/pkg/storage"
	"dreamdecode/pkg/store"
	"dreamdecode/services/journal/internal/aiclient"
)

type fakeGateway struct {
	mu         sync.Mutex
	analysis   aiclient.Analysis
	processErr error
	processed  []aiclient.ProcessRequest
	reply      string
	askErr     error
	asked      []aiclient.AskRequest
	report     string
	summaries  string
	artURL     string
	artErr     error
}

func (g *fakeGateway) ProcessDream(_ context.Context, req aiclient.ProcessRequest) (aiclient.Analysis, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processed = append(g.processed, req)
	return g.analysis, g.processErr
}

func (g *fakeGateway) AskDream(_ context.Context, req aiclient.AskRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asked = append(g.asked, req)
	return g.reply, g.askErr
}

func (g *fakeGateway) GenerateReport(_ context.Context, summaries string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.summaries = summaries
	return g.report, nil
}

func (g *fakeGateway) GenerateDreamArt(context.Context, aiclient.ArtRequest) (string, error) {
	return g.artURL, g.artErr
}

type countingObserver struct {
	mu     sync.Mutex
	dreams int
	art    []string
}

func (o *countingObserver) DreamRecorded() {
	o.mu.Lock()
	o.dreams++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveArtJob(status string) {
	o.mu.Lock()
	o.art = append(o.art, status)
	o.mu.Unlock()
}

type fixture struct {
	app     *App
	gateway *fakeGateway
	remote  *store.MemoryStore
	local   *localstore.Store
	objects *storage.MemoryStore
	obs     *countingObserver
	now     time.Time
}

var caller = usertoken.Identity{UserID: "user-1", Email: "dreamer@example.com"}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	f := &fixture{
		gateway: &fakeGateway{analysis: aiclient.Analysis{
			Transcription:  "I was flying over the sea",
			Title:          "Over the Sea",
			Summary:        "Flight above waves.",
			Moods:          []domain.MoodTag{{Mood: domain.MoodPeaceful, Confidence: 0.8, Emoji: "😌"}},
			Symbols:        []aiclient.Symbol{{Name: "sea", Emoji: "🌊", MeaningShort: "Emotion."}},
			Interpretation: "Calm acceptance.",
		}},
		remote:  store.NewMemoryStore(),
		local:   local,
		objects: storage.NewMemoryStore("https://objects.test"),
		obs:     &countingObserver{},
		now:     time.Date(2026, 3, 12, 7, 30, 0, 0, time.UTC),
	}
	cfg := Config{
		Gateway: f.gateway,
		Registry: journal.NewRegistry(journal.Options{
			Mirrors: []journal.Mirror{journal.LocalMirror{Store: local}, journal.RemoteMirror{Store: f.remote}},
			Now:     func() time.Time { return f.now },
		}, journal.LocalMirror{Store: local}),
		Remote:   f.remote,
		Local:    local,
		Objects:  f.objects,
		Observer: f.obs,
		Now:      func() time.Time { return f.now },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	f.app = a
	return f
}

func upload(seconds int) recording.AudioRecorder {
	return recording.NewUploadedRecorder([]byte("audio-bytes"), "audio/m4a", time.Duration(seconds)*time.Second)
}

func TestRecordDream(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.app.SetPreference(ctx, caller, localstore.PrefVoiceLanguage, "es"); err != nil {
		t.Fatalf("set voice language: %v", err)
	}

	res, err := f.app.RecordDream(ctx, caller, upload(12))
	if err != nil {
		t.Fatalf("record dream: %v", err)
	}
	d := res.Dream
	if d.ID == "" || d.UserID != caller.UserID || !d.CreatedAt.Equal(f.now) {
		t.Fatalf("unexpected dream identity %+v", d)
	}
	if d.AudioDurationSeconds != 12 || d.Interpretation == nil || *d.Interpretation != "Calm acceptance." || !d.IsPremiumContent {
		t.Fatalf("unexpected dream fields %+v", d)
	}
	if len(d.Symbols) != 1 || d.Symbols[0].OccurrenceCount != 1 || !d.Symbols[0].FirstSeen.Equal(f.now) {
		t.Fatalf("unexpected symbols %+v", d.Symbols)
	}
	if !strings.HasPrefix(d.AudioURL, "https://objects.test/audio/user-1/"+d.ID+".m4a") {
		t.Fatalf("unexpected audio url %q", d.AudioURL)
	}
	if res.User.StreakCurrent != 1 || res.User.StreakLongest != 1 {
		t.Fatalf("streak not advanced: %+v", res.User)
	}
	if got := f.app.Dreams(ctx, caller); len(got) != 1 || got[0].ID != d.ID {
		t.Fatalf("dream not in journal: %+v", got)
	}
	req := f.gateway.processed[0]
	if req.AudioBase64 != "YXVkaW8tYnl0ZXM=" || req.MIMEType != "audio/m4a" || req.VoiceLanguage != "es" || req.InterpretationStyle != domain.StyleMixed {
		t.Fatalf("unexpected gateway request %+v", req)
	}
	if f.obs.dreams != 1 {
		t.Fatalf("expected one recorded dream observation, got %d", f.obs.dreams)
	}
	if _, ok, _ := f.remote.GetUser(ctx, caller.UserID); !ok {
		t.Fatalf("new user should be saved remotely")
	}
}

func TestRecordDreamSendsRecurringSymbols(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.app.RecordDream(ctx, caller, upload(5)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if got := f.gateway.processed[0].RecurringSymbols; len(got) != 0 {
		t.Fatalf("first recording has no history, got %v", got)
	}
	if got := f.gateway.processed[1].RecurringSymbols; len(got) != 0 {
		t.Fatalf("one prior occurrence is not recurring, got %v", got)
	}
	if _, err := f.app.RecordDream(ctx, caller, upload(5)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := f.gateway.processed[2].RecurringSymbols; len(got) != 1 || got[0] != "sea" {
		t.Fatalf("expected sea to be recurring, got %v", got)
	}
}

func TestRecordDreamTooShortIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.app.RecordDream(context.Background(), caller, upload(2))
	if !errors.Is(err, ErrRecordingTooShort) {
		t.Fatalf("expected ErrRecordingTooShort, got %v", err)
	}
	if len(f.gateway.processed) != 0 || len(f.app.Dreams(context.Background(), caller)) != 0 {
		t.Fatalf("short recording must not be processed or stored")
	}
}

func TestRecordDreamWithoutAudio(t *testing.T) {
	f := newFixture(t, nil)
	rec := recording.NewUploadedRecorder(nil, "audio/m4a", 5*time.Second)
	if _, err := f.app.RecordDream(context.Background(), caller, rec); !errors.Is(err, ErrRecordingEmpty) {
		t.Fatalf("expected ErrRecordingEmpty, got %v", err)
	}
	if len(f.gateway.processed) != 0 {
		t.Fatalf("empty recording must not reach the gateway")
	}
}

func TestRecordDreamBusy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	release, err := f.app.Journal(ctx, caller).BeginProcessing()
	if err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	if _, err := f.app.RecordDream(ctx, caller, upload(5)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	release()
	if _, err := f.app.RecordDream(ctx, caller, upload(5)); err != nil {
		t.Fatalf("record after release: %v", err)
	}
}

func TestRecordDreamFailureKeepsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.processErr = &aiclient.APIError{Status: http.StatusUnprocessableEntity, Message: "No speech was detected in the recording. Please try again and speak clearly."}
	ctx := context.Background()
	_, err := f.app.RecordDream(ctx, caller, upload(5))
	var apiErr *aiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(f.app.Dreams(ctx, caller)) != 0 || f.objects.Len() != 0 {
		t.Fatalf("failed recording must leave no dream and no audio")
	}
	if f.app.Journal(ctx, caller).Snapshot().Processing {
		t.Fatalf("processing flag must be released after failure")
	}
}

func TestAskDream(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.app.RecordDream(ctx, caller, upload(5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	dreamID := res.Dream.ID

	f.gateway.reply = "The sea reflects your feelings."
	got, err := f.app.AskDream(ctx, caller, dreamID, " What does the sea mean? ")
	if err != nil || got.Fallback || got.Message.Content != "The sea reflects your feelings." {
		t.Fatalf("ask: %+v %v", got, err)
	}
	req := f.gateway.asked[0]
	if req.DreamContext == nil || req.DreamContext.Title != "Over the Sea" || len(req.History) != 1 || req.History[0].Content != "What does the sea mean?" {
		t.Fatalf("unexpected ask request %+v", req)
	}

	f.gateway.askErr = &aiclient.APIError{Status: http.StatusBadGateway, Message: "Sorry"}
	got, err = f.app.AskDream(ctx, caller, dreamID, "And the sky?")
	if err != nil || !got.Fallback || got.Message.Content != FallbackReply {
		t.Fatalf("expected fallback reply, got %+v %v", got, err)
	}
	if len(f.gateway.asked[1].History) != 3 {
		t.Fatalf("second ask should carry prior exchange, got %+v", f.gateway.asked[1].History)
	}

	conv, err := f.app.Conversation(ctx, caller, dreamID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(conv) != 2 || conv[0].Role != domain.RoleUser || conv[1].Role != domain.RoleAssistant {
		t.Fatalf("only the answered exchange is kept, got %+v", conv)
	}

	if _, err := f.app.AskDream(ctx, caller, "missing", "hi"); !errors.Is(err, ErrDreamNotFound) {
		t.Fatalf("expected ErrDreamNotFound, got %v", err)
	}
	if _, err := f.app.AskDream(ctx, caller, dreamID, "  "); !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
}

func TestWeeklyReport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.app.WeeklyReport(ctx, caller); !errors.Is(err, ErrNoRecentDreams) {
		t.Fatalf("expected ErrNoRecentDreams, got %v", err)
	}
	if _, err := f.app.RecordDream(ctx, caller, upload(5)); err != nil {
		t.Fatalf("record: %v", err)
	}
	f.gateway.report = "A peaceful week."
	report, err := f.app.WeeklyReport(ctx, caller)
	if err != nil {
		t.Fatalf("weekly report: %v", err)
	}
	if report.DreamCount != 1 || report.AISummary != "A peaceful week." || report.DominantMood == nil || report.DominantMood.Mood != domain.MoodPeaceful {
		t.Fatalf("unexpected report %+v", report)
	}
	want := `Dream 1 (Thu): "Over the Sea" - Flight above waves. [Moods: peaceful] [Symbols: sea]`
	if f.gateway.summaries != want {
		t.Fatalf("summaries = %q, want %q", f.gateway.summaries, want)
	}
}

func TestPreferencesAndProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.app.Preference(ctx, caller, localstore.PrefTheme); !errors.Is(err, ErrPreferenceNotSet) {
		t.Fatalf("expected ErrPreferenceNotSet, got %v", err)
	}
	if _, err := f.app.SetPreference(ctx, caller, "favorite_color", "blue"); !errors.Is(err, ErrUnknownPreference) {
		t.Fatalf("expected ErrUnknownPreference, got %v", err)
	}
	if _, err := f.app.SetPreference(ctx, caller, localstore.PrefInterpretationStyle, "freudian"); !errors.Is(err, ErrInvalidStyle) {
		t.Fatalf("expected ErrInvalidStyle, got %v", err)
	}
	if v, err := f.app.SetPreference(ctx, caller, localstore.PrefInterpretationStyle, "Jungian"); err != nil || v != "jungian" {
		t.Fatalf("set style: %q %v", v, err)
	}
	if f.app.Me(ctx, caller).InterpretationStyle != domain.StyleJungian {
		t.Fatalf("style preference should update the profile")
	}

	bad := "25:99"
	if _, err := f.app.UpdateMe(ctx, caller, domain.UserPatch{ReminderTime: &bad}); !errors.Is(err, ErrInvalidReminderTime) {
		t.Fatalf("expected ErrInvalidReminderTime, got %v", err)
	}
	good := "7:05"
	name := "  Ada "
	user, err := f.app.UpdateMe(ctx, caller, domain.UserPatch{ReminderTime: &good, Name: &name})
	if err != nil || user.ReminderTime != "07:05" || user.Name != "Ada" {
		t.Fatalf("update me: %+v %v", user, err)
	}
	prefs, err := f.app.Preferences(ctx, caller)
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	if prefs[localstore.PrefReminderTime] != "07:05" || prefs[localstore.PrefInterpretationStyle] != "jungian" {
		t.Fatalf("unexpected preferences %v", prefs)
	}
}

func TestPreferencesUnavailableWithoutLocalStore(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Local = nil })
	if _, err := f.app.Preferences(context.Background(), caller); !errors.Is(err, ErrPreferencesUnavailable) {
		t.Fatalf("expected ErrPreferencesUnavailable, got %v", err)
	}
}

func TestInlineArtIsCopiedToObjectStorage(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	}))
	defer img.Close()

	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.app.RecordDream(ctx, caller, upload(5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	f.gateway.artURL = img.URL + "/generated.png"

	out, err := f.app.RequestArt(ctx, caller, res.Dream.ID)
	if err != nil {
		t.Fatalf("request art: %v", err)
	}
	if out.Job != nil || out.Dream == nil || out.Dream.ArtURL == nil {
		t.Fatalf("expected inline result, got %+v", out)
	}
	if !strings.HasPrefix(*out.Dream.ArtURL, "https://objects.test/art/user-1/"+res.Dream.ID+".png") {
		t.Fatalf("art should be served from object storage, got %q", *out.Dream.ArtURL)
	}
	if out.Dream.ArtStyle == nil || *out.Dream.ArtStyle != ArtStyle {
		t.Fatalf("art style not recorded: %+v", out.Dream)
	}

	if err := f.app.DeleteDream(ctx, caller, res.Dream.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.objects.Len() != 0 {
		t.Fatalf("expected audio and art objects deleted, %d left", f.objects.Len())
	}
	if err := f.app.DeleteDream(ctx, caller, res.Dream.ID); !errors.Is(err, ErrDreamNotFound) {
		t.Fatalf("expected ErrDreamNotFound on second delete, got %v", err)
	}
}

func TestQueuedArt(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := queue.NewArtQueue(queue.Config{Addr: mr.Addr(), Block: 50 * time.Millisecond, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer q.Close()

	f := newFixture(t, func(c *Config) { c.ArtQueue = q; c.Objects = nil })
	ctx := context.Background()
	res, err := f.app.RecordDream(ctx, caller, upload(5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	f.gateway.artURL = "https://provider.test/art.png"

	out, err := f.app.RequestArt(ctx, caller, res.Dream.ID)
	if err != nil || out.Job == nil || out.Job.Status != queue.StatusQueued {
		t.Fatalf("expected queued job, got %+v %v", out, err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	q.Start(workerCtx, 1, f.app.HandleArtJob)
	defer func() {
		cancel()
		q.Wait()
	}()

	deadline := time.Now().Add(5 * time.Second)
	var job queue.ArtJob
	for time.Now().Before(deadline) {
		job, err = f.app.ArtJob(ctx, caller, out.Job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Terminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Status != queue.StatusDone || job.ArtURL != "https://provider.test/art.png" {
		t.Fatalf("unexpected job %+v", job)
	}
	d, _ := f.app.Dream(ctx, caller, res.Dream.ID)
	if d.ArtURL == nil || *d.ArtURL != "https://provider.test/art.png" {
		t.Fatalf("dream art not updated: %+v", d)
	}
	if _, err := f.app.ArtJob(ctx, usertoken.Identity{UserID: "someone-else"}, out.Job.ID); !errors.Is(err, ErrArtJobNotFound) {
		t.Fatalf("jobs must be scoped to their owner, got %v", err)
	}
}

func TestDreamSummariesUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	d := domain.Dream{Title: "Late", Summary: "Night.", CreatedAt: time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC)}
	if got := DreamSummaries([]domain.Dream{d}, loc); got != `Dream 1 (Wed): "Late" - Night. [Moods: ] [Symbols: ]` {
		t.Fatalf("got %q", got)
	}
}
