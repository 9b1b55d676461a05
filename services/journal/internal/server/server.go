package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/recording"
	"dreamdecode/services/journal/internal/aiclient"
	"dreamdecode/services/journal/internal/app"
)

const (
	defaultMaxUploadBytes = 25 << 20
	maxJSONBytes          = 1 << 20
	defaultAudioType      = "audio/m4a"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  *usertoken.Verifier
	TrustedProxies *util.TrustedProxies
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
}

// Server exposes the journal API.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	trustedProxies *util.TrustedProxies
	metrics        *metrics.Metrics
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier is required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		trustedProxies: cfg.TrustedProxies,
		metrics:        cfg.Metrics,
		maxUploadBytes: maxUpload,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = util.WithSecurityHeaders(util.WithCORS(s.mux))
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	return util.WithRequestID(util.WithRequestLog("journal", h))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.Handle("GET /api/me", s.authenticated(s.handleMe))
	s.mux.Handle("PATCH /api/me", s.authenticated(s.handleUpdateMe))

	s.mux.Handle("GET /api/dreams", s.authenticated(s.handleListDreams))
	s.mux.Handle("POST /api/dreams/record", s.authenticated(s.handleRecord))
	s.mux.Handle("GET /api/dreams/{id}", s.authenticated(s.handleGetDream))
	s.mux.Handle("PATCH /api/dreams/{id}", s.authenticated(s.handleUpdateDream))
	s.mux.Handle("DELETE /api/dreams/{id}", s.authenticated(s.handleDeleteDream))
	s.mux.Handle("POST /api/dreams/{id}/ask", s.authenticated(s.handleAsk))
	s.mux.Handle("GET /api/dreams/{id}/conversation", s.authenticated(s.handleConversation))
	s.mux.Handle("POST /api/dreams/{id}/art", s.authenticated(s.handleRequestArt))
	s.mux.Handle("GET /api/art-jobs/{id}", s.authenticated(s.handleArtJob))

	s.mux.Handle("GET /api/insights", s.authenticated(s.handleInsights))
	s.mux.Handle("POST /api/reports/weekly", s.authenticated(s.handleWeeklyReport))

	s.mux.Handle("GET /api/preferences", s.authenticated(s.handlePreferences))
	s.mux.Handle("GET /api/preferences/{key}", s.authenticated(s.handleGetPreference))
	s.mux.Handle("PUT /api/preferences/{key}", s.authenticated(s.handleSetPreference))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrapper
type authHandler func(http.ResponseWriter, *http.Request, usertoken.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "journal.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.Verify(token)
		if err != nil {
			s.audit(r, "journal.authorize", "fail", "reason", "invalid_signature_or_claims")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		logger := util.LoggerFromContext(r.Context()).With("user_id", identity.UserID)
		ctx := util.ContextWithLogger(r.Context(), logger)
		ctx = aiclient.ContextWithCallerToken(ctx, token)
		next(w, r.WithContext(ctx), identity)
	})
}

// profile handlers
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	writeJSON(w, http.StatusOK, s.app.Me(r.Context(), id))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	var patch domain.UserPatch
	if !decode(w, r, &patch) {
		return
	}
	user, err := s.app.UpdateMe(r.Context(), id, patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// dream handlers
func (s *Server) handleListDreams(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	writeJSON(w, http.StatusOK, s.app.Dreams(r.Context(), id))
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "recording too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio is required (field: audio)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, app.ErrRecordingEmpty.Error())
		return
	}
	seconds := 0.0
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		seconds, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "duration must be a number of seconds")
			return
		}
	}
	mimeType := audioType(header.Header.Get("Content-Type"), header.Filename)
	rec := recording.NewUploadedRecorder(data, mimeType, app.Duration(seconds))

	result, err := s.app.RecordDream(r.Context(), id, rec)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetDream(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	dream, err := s.app.Dream(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dream)
}

// dreamEdit is what a user may change on a dream; art fields are set by
// generation only.
type dreamEdit struct {
	Title          *string `json:"title"`
	Summary        *string `json:"summary"`
	Interpretation *string `json:"interpretation"`
}

func (s *Server) handleUpdateDream(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	var edit dreamEdit
	if !decode(w, r, &edit) {
		return
	}
	dream, err := s.app.UpdateDream(r.Context(), id, r.PathValue("id"), domain.DreamPatch{
		Title:          edit.Title,
		Summary:        edit.Summary,
		Interpretation: edit.Interpretation,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dream)
}

func (s *Server) handleDeleteDream(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	if err := s.app.DeleteDream(r.Context(), id, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := s.app.AskDream(r.Context(), id, r.PathValue("id"), req.Message)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	msgs, err := s.app.Conversation(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleRequestArt(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	result, err := s.app.RequestArt(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if result.Job != nil {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleArtJob(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	job, err := s.app.ArtJob(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// insight handlers
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	writeJSON(w, http.StatusOK, s.app.Insights(r.Context(), id))
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	report, err := s.app.WeeklyReport(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// preference handlers
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	prefs, err := s.app.Preferences(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	key := r.PathValue("key")
	value, err := s.app.Preference(r.Context(), id, key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request, id usertoken.Identity) {
	var req struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	key := r.PathValue("key")
	value, err := s.app.SetPreference(r.Context(), id, key, req.Value)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(dst)
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

func audioType(contentType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "audio/") {
		return mediaType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); strings.HasPrefix(byExt, "audio/") {
		return byExt
	}
	return defaultAudioType
}

// statusFor maps journal errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrDreamNotFound), errors.Is(err, app.ErrArtJobNotFound), errors.Is(err, app.ErrPreferenceNotSet):
		return http.StatusNotFound
	case errors.Is(err, app.ErrRecordingTooShort), errors.Is(err, app.ErrRecordingEmpty), errors.Is(err, app.ErrMessageRequired),
		errors.Is(err, app.ErrInvalidStyle), errors.Is(err, app.ErrInvalidReminderTime),
		errors.Is(err, app.ErrUnknownPreference):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrNoRecentDreams):
		return http.StatusConflict
	case errors.Is(err, app.ErrPreferencesUnavailable), errors.Is(err, app.ErrArtQueueUnavailable),
		errors.Is(err, app.ErrConversationDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError passes gateway errors through with their status and
// sanitized message. Anything unclassified is logged and hidden.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *aiclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	if errors.Is(err, aiclient.ErrUnavailable) {
		util.LoggerFromContext(r.Context()).Error("ai gateway unreachable", "err", err)
		writeError(w, http.StatusServiceUnavailable, aiclient.UnavailableMessage)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("journal request failed", "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
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
