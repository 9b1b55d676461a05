package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/usertoken"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/journal"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/store"
	"dreamdecode/services/journal/internal/aiclient"
	"dreamdecode/services/journal/internal/app"
)

const testSecret = "journal-test-secret-0123456789abcdef"

type stubGateway struct {
	processErr error
	reply      string

	mu          sync.Mutex
	callerToken string
}

func (g *stubGateway) lastCallerToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callerToken
}

func (g *stubGateway) ProcessDream(ctx context.Context, _ aiclient.ProcessRequest) (aiclient.Analysis, error) {
	g.mu.Lock()
	g.callerToken = aiclient.CallerTokenFromContext(ctx)
	g.mu.Unlock()
	if g.processErr != nil {
		return aiclient.Analysis{}, g.processErr
	}
	return aiclient.Analysis{
		Transcription: "A door in the forest",
		Title:         "The Door",
		Summary:       "A door stood alone.",
		Moods:         []domain.MoodTag{{Mood: domain.MoodConfused, Confidence: 0.7, Emoji: "😕"}},
		Symbols:       []aiclient.Symbol{{Name: "door", Emoji: "🚪", MeaningShort: "Transition."}},
	}, nil
}

func (g *stubGateway) AskDream(context.Context, aiclient.AskRequest) (string, error) {
	return g.reply, nil
}

func (g *stubGateway) GenerateReport(context.Context, string, int) (string, error) {
	return "A week of doors.", nil
}

func (g *stubGateway) GenerateDreamArt(context.Context, aiclient.ArtRequest) (string, error) {
	return "data:image/png;base64,AAAA", nil
}

type harness struct {
	srv   *httptest.Server
	token string
}

func newHarness(t *testing.T, gw *stubGateway, m *metrics.Metrics) harness {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	a, err := app.New(app.Config{
		Gateway:  gw,
		Registry: journal.NewRegistry(journal.Options{}),
		Remote:   store.NewMemoryStore(),
		Local:    local,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	s, err := New(Config{App: a, TokenVerifier: verifier, Metrics: m})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	token, err := verifier.Issue("user-1", "dreamer@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return harness{srv: srv, token: token}
}

func (h harness) do(t *testing.T, method, path, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (h harness) json(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return h.do(t, method, path, "application/json", r)
}

func (h harness) record(t *testing.T, duration string) (*http.Response, []byte) {
	t.Helper()
	return h.recordAudio(t, []byte("fake-audio"), duration)
}

func (h harness) recordAudio(t *testing.T, audio []byte, duration string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="audio"; filename="dream.m4a"`},
		"Content-Type":        {"audio/mp4"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(audio)
	if duration != "" {
		_ = mw.WriteField("duration", duration)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return h.do(t, http.MethodPost, "/api/dreams/record", mw.FormDataContentType(), &buf)
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return payload["error"]
}

func TestRequiresBearerToken(t *testing.T) {
	h := newHarness(t, &stubGateway{}, nil)

	resp, err := http.Get(h.srv.URL + "/api/dreams")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	bad := h
	bad.token = "not-a-jwt"
	if resp, _ := bad.json(t, http.MethodGet, "/api/dreams", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(h.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", resp.StatusCode)
	}
}

func TestDreamLifecycle(t *testing.T) {
	h := newHarness(t, &stubGateway{reply: "Doors mark change."}, nil)

	resp, body := h.record(t, "8.4")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record: %d %s", resp.StatusCode, body)
	}
	var recorded app.RecordResult
	if err := json.Unmarshal(body, &recorded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	d := recorded.Dream
	if d.Title != "The Door" || d.AudioDurationSeconds != 8 || recorded.User.StreakCurrent != 1 {
		t.Fatalf("unexpected record result %+v", recorded)
	}

	resp, body = h.json(t, http.MethodGet, "/api/dreams", "")
	var dreams []domain.Dream
	if err := json.Unmarshal(body, &dreams); err != nil || resp.StatusCode != http.StatusOK || len(dreams) != 1 {
		t.Fatalf("list dreams: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodPatch, "/api/dreams/"+d.ID, `{"title":"The Green Door"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"title":"The Green Door"`) {
		t.Fatalf("patch dream: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodPost, "/api/dreams/"+d.ID+"/ask", `{"message":"Why a door?"}`)
	var asked app.AskResult
	if err := json.Unmarshal(body, &asked); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: %d %s", resp.StatusCode, body)
	}
	if asked.Fallback || asked.Message.Content != "Doors mark change." {
		t.Fatalf("unexpected ask result %+v", asked)
	}

	resp, body = h.json(t, http.MethodGet, "/api/dreams/"+d.ID+"/conversation", "")
	var conv []domain.ConversationMessage
	if err := json.Unmarshal(body, &conv); err != nil || len(conv) != 2 {
		t.Fatalf("conversation: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodPost, "/api/dreams/"+d.ID+"/art", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"art_style":"ethereal"`) {
		t.Fatalf("inline art: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodPost, "/api/reports/weekly", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ai_summary":"A week of doors."`) {
		t.Fatalf("weekly report: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodGet, "/api/insights", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total_dreams":1`) {
		t.Fatalf("insights: %d %s", resp.StatusCode, body)
	}

	if resp, body = h.json(t, http.MethodDelete, "/api/dreams/"+d.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d %s", resp.StatusCode, body)
	}
	resp, body = h.json(t, http.MethodGet, "/api/dreams/"+d.ID, "")
	if resp.StatusCode != http.StatusNotFound || errorMessage(t, body) != app.ErrDreamNotFound.Error() {
		t.Fatalf("expected 404 after delete, got %d %s", resp.StatusCode, body)
	}
}

func TestRecordForwardsCallerToken(t *testing.T) {
	gw := &stubGateway{}
	h := newHarness(t, gw, nil)
	resp, body := h.record(t, "6")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record: %d %s", resp.StatusCode, body)
	}
	if got := gw.lastCallerToken(); got != h.token {
		t.Fatalf("gateway call should carry the caller token, got %q", got)
	}
}

func TestRecordErrors(t *testing.T) {
	gw := &stubGateway{}
	h := newHarness(t, gw, nil)

	resp, body := h.record(t, "1.5")
	if resp.StatusCode != http.StatusBadRequest || errorMessage(t, body) != app.ErrRecordingTooShort.Error() {
		t.Fatalf("short recording: %d %s", resp.StatusCode, body)
	}

	resp, body = h.record(t, "soon")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad duration: %d %s", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodPost, "/api/dreams/record", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing audio: %d %s", resp.StatusCode, body)
	}

	resp, body = h.recordAudio(t, nil, "5")
	if resp.StatusCode != http.StatusBadRequest || errorMessage(t, body) != app.ErrRecordingEmpty.Error() {
		t.Fatalf("empty audio: %d %s", resp.StatusCode, body)
	}

	gw.processErr = fmt.Errorf("%w: dial tcp 127.0.0.1:1: connect: connection refused", aiclient.ErrUnavailable)
	resp, body = h.record(t, "6")
	if resp.StatusCode != http.StatusServiceUnavailable || errorMessage(t, body) != aiclient.UnavailableMessage {
		t.Fatalf("unreachable gateway: %d %s", resp.StatusCode, body)
	}

	const noSpeech = "No speech was detected in the recording. Please try again and speak clearly."
	gw.processErr = &aiclient.APIError{Status: http.StatusUnprocessableEntity, Message: noSpeech}
	resp, body = h.record(t, "6")
	if resp.StatusCode != http.StatusUnprocessableEntity || errorMessage(t, body) != noSpeech {
		t.Fatalf("gateway error should pass through: %d %s", resp.StatusCode, body)
	}
}

func TestWeeklyReportWithoutDreams(t *testing.T) {
	h := newHarness(t, &stubGateway{}, nil)
	resp, body := h.json(t, http.MethodPost, "/api/reports/weekly", "")
	if resp.StatusCode != http.StatusConflict || errorMessage(t, body) != app.ErrNoRecentDreams.Error() {
		t.Fatalf("expected 409, got %d %s", resp.StatusCode, body)
	}
}

func TestPreferences(t *testing.T) {
	h := newHarness(t, &stubGateway{}, nil)

	resp, body := h.json(t, http.MethodPut, "/api/preferences/interpretation_style", `{"value":"tarot"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid style: %d %s", resp.StatusCode, body)
	}
	resp, body = h.json(t, http.MethodPut, "/api/preferences/voice_language", `{"value":"pt-BR"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"value":"pt-BR"`) {
		t.Fatalf("set voice language: %d %s", resp.StatusCode, body)
	}
	resp, body = h.json(t, http.MethodGet, "/api/preferences/voice_language", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"value":"pt-BR"`) {
		t.Fatalf("get voice language: %d %s", resp.StatusCode, body)
	}
	if resp, body = h.json(t, http.MethodGet, "/api/preferences/theme", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unset preference: %d %s", resp.StatusCode, body)
	}
	if resp, body = h.json(t, http.MethodGet, "/api/preferences/shoe_size", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown preference: %d %s", resp.StatusCode, body)
	}

	resp, body = h.json(t, http.MethodPatch, "/api/me", `{"reminder_time":"6:30","onboarding_completed":true}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"reminder_time":"06:30"`) {
		t.Fatalf("patch me: %d %s", resp.StatusCode, body)
	}
	resp, body = h.json(t, http.MethodGet, "/api/preferences", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"reminder_time":"06:30"`) {
		t.Fatalf("profile edit should sync preferences: %d %s", resp.StatusCode, body)
	}
	if resp, body = h.json(t, http.MethodPatch, "/api/me", `{"name":`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid json: %d %s", resp.StatusCode, body)
	}
}

func TestArtJobWithoutQueue(t *testing.T) {
	h := newHarness(t, &stubGateway{}, nil)
	resp, body := h.json(t, http.MethodGet, "/api/art-jobs/some-job", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", resp.StatusCode, body)
	}
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	m := metrics.New("journal")
	h := newHarness(t, &stubGateway{}, m)
	h.json(t, http.MethodGet, "/api/dreams/missing-1", "")
	h.json(t, http.MethodGet, "/api/dreams/missing-2", "")

	resp, err := http.Get(h.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	want := `dreamdecode_journal_http_requests_total{method="GET",route="/api/dreams/{id}",status="404"} 2`
	if !strings.Contains(string(data), want) {
		t.Fatalf("metrics missing %q", want)
	}
}

func TestAudioType(t *testing.T) {
	cases := []struct{ contentType, filename, want string }{
		{"audio/webm; codecs=opus", "x.webm", "audio/webm"},
		{"audio/mp4", "dream.m4a", "audio/mp4"},
		{"application/octet-stream", "dream", defaultAudioType},
		{"", "", defaultAudioType},
	}
	for _, tc := range cases {
		if got := audioType(tc.contentType, tc.filename); got != tc.want {
			t.Errorf("audioType(%q, %q) = %q, want %q", tc.contentType, tc.filename, got, tc.want)
		}
	}
}
