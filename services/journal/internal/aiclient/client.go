// Package aiclient calls the AI gateway over HTTP.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
)

// Client calls the AI gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ErrUnavailable wraps transport failures reaching the gateway.
var ErrUnavailable = errors.New("ai gateway unreachable")

// UnavailableMessage is shown to users when the gateway cannot be reached.
const UnavailableMessage = "The dream service is temporarily unavailable. Please try again in a few minutes."

// APIError is an error reply from the gateway. Message is already sanitized
// by the gateway and may be shown to users.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Option customizes a Client.
type Option func(*Client)

type callerTokenKey struct{}

// ContextWithCallerToken makes calls on ctx authenticate as the end user
// instead of with the service token, so the gateway rate-limits per user.
func ContextWithCallerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, callerTokenKey{}, strings.TrimSpace(token))
}

// CallerTokenFromContext returns the token set by ContextWithCallerToken.
func CallerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(callerTokenKey{}).(string)
	return token
}

// WithBearerToken sends token on calls made without a caller token, such as
// background art jobs.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a gateway client. The default timeout covers one
// provider call plus its retry.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessRequest is the body of /process-dream.
type ProcessRequest struct {
	AudioBase64         string                     `json:"audioBase64"`
	MIMEType            string                     `json:"mimeType"`
	InterpretationStyle domain.InterpretationStyle `json:"interpretationStyle"`
	RecurringSymbols    []string                   `json:"recurringSymbols"`
	VoiceLanguage       string                     `json:"voiceLanguage,omitempty"`
}

// Symbol is a symbol as returned by the gateway.
type Symbol struct {
	Name         string `json:"name"`
	Emoji        string `json:"emoji"`
	MeaningShort string `json:"meaning_short"`
}

// Analysis is the normalized dream analysis.
type Analysis struct {
	Transcription  string           `json:"transcription"`
	Title          string           `json:"title"`
	Summary        string           `json:"summary"`
	Moods          []domain.MoodTag `json:"moods"`
	Symbols        []Symbol         `json:"symbols"`
	Interpretation string           `json:"interpretation"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type DreamContext struct {
	Title          string  `json:"title"`
	Transcription  string  `json:"transcription"`
	Summary        string  `json:"summary"`
	Interpretation *string `json:"interpretation"`
}

// AskRequest is the body of /ask-dream.
type AskRequest struct {
	Message       string           `json:"message"`
	History       []HistoryMessage `json:"conversation_history"`
	DreamContext  *DreamContext    `json:"dream_context,omitempty"`
	VoiceLanguage string           `json:"voice_language,omitempty"`
}

type reportRequest struct {
	DreamSummaries string `json:"dreamSummaries"`
	DreamCount     int    `json:"dreamCount"`
}

// ArtRequest is the body of /generate-dream-art.
type ArtRequest struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Moods   []string `json:"moods"`
}

func (c *Client) ProcessDream(ctx context.Context, req ProcessRequest) (Analysis, error) {
	var out Analysis
	if err := c.post(ctx, "/process-dream", req, &out); err != nil {
		return Analysis{}, err
	}
	return out, nil
}

func (c *Client) AskDream(ctx context.Context, req AskRequest) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/ask-dream", req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) GenerateReport(ctx context.Context, summaries string, count int) (string, error) {
	var out struct {
		Report string `json:"report"`
	}
	if err := c.post(ctx, "/generate-report", reportRequest{DreamSummaries: summaries, DreamCount: count}, &out); err != nil {
		return "", err
	}
	return out.Report, nil
}

func (c *Client) GenerateDreamArt(ctx context.Context, req ArtRequest) (string, error) {
	var out struct {
		ArtURL string `json:"art_url"`
	}
	if err := c.post(ctx, "/generate-dream-art", req, &out); err != nil {
		return "", err
	}
	return out.ArtURL, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := util.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(util.RequestIDHeader, id)
	}
	token := CallerTokenFromContext(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
