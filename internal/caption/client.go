// Package caption asks a vision-capable chat model to describe the garden.
//
// Requests go to an OpenAI-compatible chat completions endpoint with the
// keepsake image attached inline as a data URL. Analyze never fails: when the
// service is unreachable, misconfigured or silent the caller gets a fixed
// fallback line instead.
package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel          = "google/gemini-2.5-flash"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3

	maxResponseBytes = 1 << 20
)

// Fallback lines returned instead of errors.
const (
	FallbackEmpty = "The garden is mysterious and silent today."
	FallbackError = "The spirits of the garden are resting (API Error)."
)

// ErrNoAPIKey is returned by Describe when the client has no key.
var ErrNoAPIKey = errors.New("caption: api key required")

// Analyzer produces a short poetic description of a garden image.
type Analyzer interface {
	Analyze(ctx context.Context, png []byte, count int, locale string) string
}

// Config captures the runtime settings for the caption service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client talks to the chat completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a caption client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.retryMaxDelay <= 0 {
		client.retryMaxDelay = defaultRetryMaxDelay
	}
	return client
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Analyze describes the garden image. It never returns an empty string.
func (c *Client) Analyze(ctx context.Context, png []byte, count int, locale string) string {
	text, err := c.Describe(ctx, png, count, locale)
	switch {
	case err != nil:
		log.Printf("[Caption] analysis failed: %v", err)
		return FallbackError
	case text == "":
		return FallbackEmpty
	}
	return text
}

// Describe is Analyze without the fallback. An empty reply yields "" and a
// nil error.
func (c *Client) Describe(ctx context.Context, png []byte, count int, locale string) (string, error) {
	if !c.Configured() {
		return "", ErrNoAPIKey
	}
	if len(png) == 0 {
		return "", errors.New("caption: image required")
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt(count, locale)},
				{Type: "image_url", ImageURL: &imageURL{URL: DataURL(png)}},
			},
		}},
		Temperature: 0.9,
	}
	return c.send(ctx, payload)
}

// DataURL inlines a PNG image.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a reply outside the 2xx range.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("caption request: http %d: %s", e.code, e.body)
}

// transient reports whether another attempt might succeed.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusRequestTimeout ||
			se.code == http.StatusTooManyRequests ||
			se.code >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("caption request: encode body: %w", err)
	}

	attempts := max(c.retryMaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		text, err := c.post(ctx, body)
		if err == nil {
			return text, nil
		}
		if attempt >= attempts || ctx.Err() != nil || !transient(err) {
			if attempt > 1 {
				return "", fmt.Errorf("caption: gave up after %d attempts: %w", attempt, err)
			}
			return "", err
		}
		log.Printf("[Caption] attempt %d failed, retrying: %v", attempt, err)
		if err := c.sleep(ctx, c.retryWait(err, attempt)); err != nil {
			return "", err
		}
	}
}

// post makes one request and returns the first non-blank choice.
func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("caption request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("caption request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw)), retryAfter: wait}
	}

	var reply chatCompletionResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("caption request: decode response: %w", err)
	}
	if reply.Error != nil {
		return "", fmt.Errorf("caption request: api error: %s", strings.TrimSpace(reply.Error.Message))
	}
	for _, choice := range reply.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", nil
}

// retryWait honours Retry-After and otherwise backs off exponentially.
func (c *Client) retryWait(err error, attempt int) time.Duration {
	var se *statusError
	if errors.As(err, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, c.retryMaxDelay)
	}
	return c.backoffDelay(attempt)
}

// backoffDelay doubles from the base delay up to the cap: attempt 1 waits
// base, attempt 2 waits 2*base.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	d := c.retryBaseDelay
	for i := 1; i < attempt && d < c.retryMaxDelay; i++ {
		d *= 2
	}
	return min(d, c.retryMaxDelay)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
