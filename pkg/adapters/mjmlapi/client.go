package mjmlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/mjtree/internal/logging"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultEndpoint is the public MJML rendering API.
const DefaultEndpoint = "https://api.mjml.io/v1"

var (
	// ErrUnauthorized is returned when the API rejects the credentials.
	ErrUnauthorized = errors.New("mjml api: unauthorized")
	// ErrMissingCredentials is returned by New when app id or secret are empty.
	ErrMissingCredentials = errors.New("mjml api: app id and secret key are required")
)

// Client implements ports.Renderer over the MJML HTTP API.
type Client struct {
	endpoint string
	appID    string
	secret   string
	http     *retryablehttp.Client
}

// Option configures a Client.
type Option func(*config)

type config struct {
	endpoint  string
	retries   int
	waitMin   time.Duration
	waitMax   time.Duration
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
}

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(url string) Option {
	return func(c *config) {
		c.endpoint = strings.TrimRight(url, "/")
	}
}

// WithRetries sets the retry count and the backoff bounds.
func WithRetries(max int, waitMin, waitMax time.Duration) Option {
	return func(c *config) {
		c.retries = max
		c.waitMin = waitMin
		c.waitMax = waitMax
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client authenticated with appID and secret.
func New(appID, secret string, opts ...Option) (*Client, error) {
	if appID == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	cfg := config{
		endpoint: DefaultEndpoint,
		retries:  3,
		waitMin:  500 * time.Millisecond,
		waitMax:  5 * time.Second,
		timeout:  30 * time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cl := retryablehttp.NewClient()
	cl.RetryMax = cfg.retries
	cl.RetryWaitMin = cfg.waitMin
	cl.RetryWaitMax = cfg.waitMax
	cl.HTTPClient.Timeout = cfg.timeout
	if cfg.transport != nil {
		cl.HTTPClient.Transport = cfg.transport
	}
	cl.Logger = cfg.logger
	// Hand the last response back instead of a generic "giving up" error.
	cl.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint: cfg.endpoint,
		appID:    appID,
		secret:   secret,
		http:     cl,
	}, nil
}

type renderRequest struct {
	MJML string `json:"mjml"`
}

type renderResponse struct {
	HTML    string     `json:"html"`
	Errors  []apiError `json:"errors"`
	Message string     `json:"message"`
}

// apiError accepts either a plain string or the API's error object.
type apiError string

func (e *apiError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = apiError(s)
		return nil
	}
	var obj struct {
		Line             int    `json:"line"`
		Message          string `json:"message"`
		FormattedMessage string `json:"formattedMessage"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.FormattedMessage != "":
		*e = apiError(obj.FormattedMessage)
	case obj.Line > 0:
		*e = apiError(fmt.Sprintf("line %d: %s", obj.Line, obj.Message))
	default:
		*e = apiError(obj.Message)
	}
	return nil
}

// Render posts markup to {endpoint}/render.
// Markup problems reported by the service come back in RenderResult.Errors;
// transport and authentication failures are returned as errors.
func (c *Client) Render(ctx context.Context, markup string) (*domain.RenderResult, error) {
	body, err := json.Marshal(renderRequest{MJML: markup})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.appID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mjml api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}

	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("mjml api: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 && out.HTML == "" && len(out.Errors) == 0 {
		if out.Message != "" {
			return nil, fmt.Errorf("mjml api: status %d: %s", resp.StatusCode, out.Message)
		}
		return nil, fmt.Errorf("mjml api: status %d", resp.StatusCode)
	}

	res := &domain.RenderResult{HTML: out.HTML, Errors: make([]string, 0, len(out.Errors))}
	for _, e := range out.Errors {
		res.Errors = append(res.Errors, string(e))
	}
	return res, nil
}
