package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Backend names accepted by NewBackend
const (
	BackendGoogle    = "google"
	BackendDeepL     = "deepl"
	BackendMicrosoft = "microsoft"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
)

// DefaultTimeout is the per-request timeout for backend HTTP calls
const DefaultTimeout = 60 * time.Second

// Backend translates text through a remote service
type Backend interface {
	// Name returns the backend name
	Name() string

	// Translate translates a single text. An empty or "auto" sourceLang
	// lets the service detect the source language.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// BatchBackend is implemented by backends that accept several texts per
// request. Results are returned in request order.
type BatchBackend interface {
	Backend
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// Config selects and configures a backend
type Config struct {
	Backend string
	APIKey  string
	Region  string // Microsoft resource region
	BaseURL string // overrides the service endpoint
	Model   string // LLM backends only
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// ParseBackend validates a backend name
func ParseBackend(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case BackendGoogle, BackendDeepL, BackendMicrosoft, BackendOpenAI, BackendGemini:
		return n, nil
	default:
		return "", apperr.Newf(apperr.CodeConfig, "unknown translation backend %q (expected google, deepl, microsoft, openai or gemini)", name)
	}
}

// NewBackend creates the backend named by cfg.Backend
func NewBackend(cfg Config) (Backend, error) {
	name, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, apperr.Newf(apperr.CodeConfig, "no API key configured for backend %s", name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	switch name {
	case BackendGoogle:
		return NewGoogleBackend(cfg), nil
	case BackendDeepL:
		return NewDeepLBackend(cfg), nil
	case BackendMicrosoft:
		return NewMicrosoftBackend(cfg), nil
	case BackendOpenAI:
		return NewOpenAIBackend(cfg), nil
	default:
		return NewGeminiBackend(context.Background(), cfg)
	}
}

// StatusError is a non-success HTTP response from a backend
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Backend, e.StatusCode, e.Body)
}

// RateLimited reports whether the response was HTTP 429
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// CountMismatchError is returned when a batch response does not carry one
// translation per requested text
type CountMismatchError struct {
	Backend  string
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s returned %d translations for %d texts", e.Backend, e.Got, e.Expected)
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// server errors, transport failures and an open circuit breaker.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RateLimited() || statusErr.StatusCode >= 500
	}

	var mismatch *CountMismatchError
	if errors.As(err, &mismatch) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isBackendFault reports whether err says something about the backend's
// health. Rate limits and client errors do not trip the breaker.
func isBackendFault(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var mismatch *CountMismatchError
	if errors.As(err, &mismatch) {
		return false
	}
	return IsRetryable(err)
}

const maxErrorBody = 300

// postJSON sends payload as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", backend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", backend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", backend, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			Backend:    backend,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(respBody)), maxErrorBody),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", backend, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// translateEach adapts a single-text backend to batch use
func translateEach(ctx context.Context, b Backend, texts []string, sourceLang, targetLang string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		translated, err := b.Translate(ctx, text, sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		out[i] = translated
	}
	return out, nil
}

// translateOne adapts a batch backend to single-text use
func translateOne(ctx context.Context, b BatchBackend, text, sourceLang, targetLang string) (string, error) {
	out, err := b.TranslateBatch(ctx, []string{text}, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	return out[0], nil
}
