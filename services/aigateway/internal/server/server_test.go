package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/usertoken"
	"dreamdecode/pkg/ai"
	"dreamdecode/services/aigateway/internal/app"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g stubGenerator) GenerateText(context.Context, string, string, ...ai.Option) (string, error) {
	return g.reply, g.err
}

func (g stubGenerator) GenerateFromAudio(context.Context, ai.Audio, string, ...ai.Option) (string, error) {
	return g.reply, g.err
}

func (g stubGenerator) GenerateImage(context.Context, string) (string, error) {
	return g.reply, g.err
}

func newGateway(t *testing.T, gen stubGenerator, cfg Config) *httptest.Server {
	t.Helper()
	a, err := app.New(app.Config{Text: gen, Audio: gen, Images: gen, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg.App = a
	gw, err := New(cfg)
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)
	return resp, payload
}

const processBody = `{"audioBase64":"ZmFrZS1hdWRpbw==","mimeType":"audio/m4a","interpretationStyle":"modern","recurringSymbols":[]}`

func TestProcessDreamReturnsAnalysis(t *testing.T) {
	srv := newGateway(t, stubGenerator{reply: `{"transcription":"I flew","title":"Flight","summary":"Up.","moods":[{"mood":"excited","confidence":0.7,"emoji":"🤩"}],"symbols":[{"name":"Sky","emoji":"☁️"}],"interpretation":"Freedom."}`}, Config{})
	resp, payload := post(t, srv.URL+"/process-dream", processBody, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["title"] != "Flight" || payload["transcription"] != "I flew" {
		t.Fatalf("unexpected payload %v", payload)
	}
	moods, _ := payload["moods"].([]any)
	if len(moods) != 1 {
		t.Fatalf("expected 1 mood, got %v", payload["moods"])
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestTranscribeDream(t *testing.T) {
	srv := newGateway(t, stubGenerator{reply: "```json\n{\"transcription\":\"  I was lost in a library  \"}\n```"}, Config{})
	resp, payload := post(t, srv.URL+"/transcribe-dream", `{"audioBase64":"ZmFrZS1hdWRpbw==","mimeType":"audio/m4a"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["transcription"] != "I was lost in a library" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		gen    stubGenerator
		path   string
		body   string
		status int
		msg    string
	}{
		{"missing audio", stubGenerator{}, "/process-dream", `{}`, http.StatusBadRequest, app.UserMessage(app.ErrAudioRequired)},
		{"bad json", stubGenerator{}, "/process-dream", `{`, http.StatusBadRequest, "invalid JSON body"},
		{"no speech", stubGenerator{reply: `{"transcription":""}`}, "/process-dream", processBody, http.StatusUnprocessableEntity, app.UserMessage(app.ErrNoSpeech)},
		{"provider quota", stubGenerator{err: &ai.APIError{Provider: "gemini", StatusCode: 429, Message: "secret quota text"}}, "/process-dream", processBody, http.StatusTooManyRequests, app.UserMessage(app.ErrRateLimited)},
		{"provider auth", stubGenerator{err: &ai.APIError{Provider: "gemini", StatusCode: 403, Message: "key revoked"}}, "/process-dream", processBody, http.StatusBadGateway, app.UserMessage(app.ErrMisconfigured)},
		{"provider down", stubGenerator{err: &ai.APIError{Provider: "gemini", StatusCode: 502}}, "/process-dream", processBody, http.StatusServiceUnavailable, app.UserMessage(app.ErrUnavailable)},
		{"garbled reply", stubGenerator{reply: "sorry, no"}, "/process-dream", processBody, http.StatusBadGateway, app.UserMessage(app.ErrInvalidResponse)},
		{"ask failure", stubGenerator{err: errors.New("boom")}, "/ask-dream", `{"message":"why?"}`, http.StatusBadGateway, app.UserMessage(app.ErrAskFailed)},
		{"transcribe without audio", stubGenerator{}, "/transcribe-dream", `{}`, http.StatusBadRequest, app.UserMessage(app.ErrAudioRequired)},
		{"transcribe silence", stubGenerator{reply: `{"transcription":" "}`}, "/transcribe-dream", processBody, http.StatusUnprocessableEntity, app.UserMessage(app.ErrNoSpeech)},
		{"report input", stubGenerator{}, "/generate-report", `{"dreamSummaries":""}`, http.StatusBadRequest, app.UserMessage(app.ErrSummariesRequired)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newGateway(t, tc.gen, Config{})
			resp, payload := post(t, srv.URL+tc.path, tc.body, nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d (%v)", tc.status, resp.StatusCode, payload)
			}
			if payload["error"] != tc.msg {
				t.Fatalf("expected error %q, got %v", tc.msg, payload["error"])
			}
		})
	}
}

func TestAskReportAndArtShapes(t *testing.T) {
	srv := newGateway(t, stubGenerator{reply: "https://img.test/a.png"}, Config{})
	resp, payload := post(t, srv.URL+"/ask-dream", `{"message":"hi","conversation_history":[{"role":"user","content":"x"}]}`, nil)
	if resp.StatusCode != http.StatusOK || payload["response"] != "https://img.test/a.png" {
		t.Fatalf("ask: %d %v", resp.StatusCode, payload)
	}
	resp, payload = post(t, srv.URL+"/generate-report", `{"dreamSummaries":"Dream 1","dreamCount":1}`, nil)
	if resp.StatusCode != http.StatusOK || payload["report"] == nil {
		t.Fatalf("report: %d %v", resp.StatusCode, payload)
	}
	resp, payload = post(t, srv.URL+"/generate-dream-art", `{"title":"Sea","summary":"Waves","moods":["peaceful"]}`, nil)
	if resp.StatusCode != http.StatusOK || payload["art_url"] != "https://img.test/a.png" {
		t.Fatalf("art: %d %v", resp.StatusCode, payload)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newGateway(t, stubGenerator{}, Config{})
	resp, err := http.Get(srv.URL + "/process-dream")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestBodyLimit(t *testing.T) {
	srv := newGateway(t, stubGenerator{}, Config{MaxBodyBytes: 64})
	body := `{"audioBase64":"` + strings.Repeat("A", 256) + `"}`
	resp, _ := post(t, srv.URL+"/process-dream", body, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestRedisRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	srv := newGateway(t, stubGenerator{reply: "ok"}, Config{RedisAddr: redis.Addr(), RateLimitPerMinute: 1})

	resp1, _ := post(t, srv.URL+"/ask-dream", `{"message":"one"}`, nil)
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", resp1.StatusCode)
	}
	resp2, payload := post(t, srv.URL+"/ask-dream", `{"message":"two"}`, nil)
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") != "60" || payload["error"] != app.UserMessage(app.ErrRateLimited) {
		t.Fatalf("unexpected rate-limit response %v", payload)
	}
	resp3, _ := post(t, srv.URL+"/generate-report", `{"dreamSummaries":"x"}`, nil)
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("limits are per route, got %d", resp3.StatusCode)
	}
}

func TestLocalRateLimitWithoutRedis(t *testing.T) {
	srv := newGateway(t, stubGenerator{reply: "ok"}, Config{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if resp, _ := post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i, resp.StatusCode)
		}
	}
	if resp, _ := post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, nil); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: strings.Repeat("s", 40)})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	token, err := verifier.Issue("user-1", "u@example.com", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	srv := newGateway(t, stubGenerator{reply: "ok"}, Config{TokenVerifier: verifier})

	if resp, _ := post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	bad := http.Header{"Authorization": {"Bearer not-a-jwt"}}
	if resp, _ := post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, bad); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	good := http.Header{"Authorization": {"Bearer " + token}}
	if resp, _ := post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, good); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should stay public, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("aigateway")
	srv := newGateway(t, stubGenerator{reply: "ok"}, Config{Metrics: m})
	post(t, srv.URL+"/ask-dream", `{"message":"hi"}`, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(raw, []byte(`dreamdecode_aigateway_http_requests_total{method="POST",route="/ask-dream",status="200"} 1`)) {
		t.Fatalf("request counter missing from metrics output:\n%s", raw)
	}
}

func TestNewRequiresApp(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without app")
	}
}
