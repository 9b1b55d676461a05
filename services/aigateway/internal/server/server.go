package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/ratelimit"
	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/services/aigateway/internal/app"
)

const defaultMaxBodyBytes = 25 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  *usertoken.Verifier
	TrustedProxies *util.TrustedProxies
	Metrics        *metrics.Metrics
	RedisAddr      string
	RedisPassword  string
	// RateLimitPerMinute of 0 disables per-client limiting.
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

// Server exposes the AI gateway endpoints.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	trustedProxies *util.TrustedProxies
	metrics        *metrics.Metrics
	limiter        ratelimit.Limiter
	maxBodyBytes   int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	limiter, err := newLimiter(cfg)
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		trustedProxies: cfg.TrustedProxies,
		metrics:        cfg.Metrics,
		limiter:        limiter,
		maxBodyBytes:   maxBody,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// newLimiter prefers the shared Redis window and falls back to an
// in-process token bucket.
func newLimiter(cfg Config) (ratelimit.Limiter, error) {
	if cfg.RateLimitPerMinute <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "dreamdecode:aigateway:ratelimit", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
		return limiter, nil
	}
	slog.Warn("redis not configured; rate limits are per process")
	limiter, err := ratelimit.NewTokenBucketLimiter(cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	return limiter, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = util.WithSecurityHeaders(util.WithCORS(s.mux))
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	return util.WithRequestID(util.WithRequestLog("aigateway", h))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.Handle("POST /process-dream", s.guarded(s.handleProcessDream))
	s.mux.Handle("POST /transcribe-dream", s.guarded(s.handleTranscribeDream))
	s.mux.Handle("POST /analyze-dream", s.guarded(s.handleAnalyzeDream))
	s.mux.Handle("POST /ask-dream", s.guarded(s.handleAskDream))
	s.mux.Handle("POST /generate-report", s.guarded(s.handleGenerateReport))
	s.mux.Handle("POST /generate-dream-art", s.guarded(s.handleGenerateDreamArt))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// guarded applies bearer verification (when configured) and the per-caller
// rate limit before next runs.
func (s *Server) guarded(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := "ip:" + util.ClientIP(r, s.trustedProxies)
		if s.tokenVerifier != nil {
			token, ok := bearerToken(r)
			if !ok {
				s.audit(r, "aigateway.authorize", "fail", "reason", "missing_token")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			identity, err := s.tokenVerifier.Verify(token)
			if err != nil {
				s.audit(r, "aigateway.authorize", "fail", "reason", "invalid_signature_or_claims")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			caller = "user:" + identity.UserID
		}
		if s.limiter != nil && !s.limiter.Allow(r.Context(), r.URL.Path+"|"+caller) {
			s.audit(r, "aigateway.ratelimit", "rate_limited", "caller", caller)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, app.UserMessage(app.ErrRateLimited))
			return
		}
		next(w, r)
	})
}

func (s *Server) handleProcessDream(w http.ResponseWriter, r *http.Request) {
	var req app.ProcessRequest
	if !s.decode(w, r, &req) {
		return
	}
	analysis, err := s.app.ProcessDream(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleTranscribeDream(w http.ResponseWriter, r *http.Request) {
	var req app.TranscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	transcription, err := s.app.TranscribeDream(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcription": transcription})
}

func (s *Server) handleAnalyzeDream(w http.ResponseWriter, r *http.Request) {
	var req app.AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	analysis, err := s.app.AnalyzeDream(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAskDream(w http.ResponseWriter, r *http.Request) {
	var req app.AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.app.AskDream(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req app.ReportRequest
	if !s.decode(w, r, &req) {
		return
	}
	report, err := s.app.GenerateReport(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

func (s *Server) handleGenerateDreamArt(w http.ResponseWriter, r *http.Request) {
	var req app.ArtRequest
	if !s.decode(w, r, &req) {
		return
	}
	url, err := s.app.GenerateDreamArt(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"art_url": url})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

// statusFor maps gateway errors onto HTTP statuses. The body always carries
// app.UserMessage, never the error text itself.
func statusFor(err error) int {
	switch {
	case app.IsValidation(err), errors.Is(err, app.ErrUnreadableAudio):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, app.ErrInvalidResponse), errors.Is(err, app.ErrMisconfigured), errors.Is(err, app.ErrAskFailed):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeError(w, status, app.UserMessage(err))
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	util.LoggerFromContext(r.Context()).Warn("security_event", logAttrs...)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
