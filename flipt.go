// Package flipt is a client for a remote feature-flag evaluation service.
//
// Construct one Client and share it; it holds immutable configuration and a
// reusable HTTP transport, and is safe for concurrent use:
//
//	client, err := flipt.NewClient(flipt.Config{
//	    URL:            "http://localhost:8080",
//	    Authentication: flipt.NewClientTokenAuthentication(token),
//	    Timeout:        60 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Evaluation.Boolean(ctx, &evaluation.EvaluationRequest{
//	    NamespaceKey: "default",
//	    FlagKey:      "flag_boolean",
//	    EntityID:     "entity",
//	    Context:      map[string]string{"fizz": "buzz"},
//	})
package flipt

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/TimurManjosov/goflipt/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

const (
	defaultURL     = "http://localhost:8080"
	defaultTimeout = 60 * time.Second
)

// Config holds the construction inputs of a Client.
type Config struct {
	URL            string                 // Service root, e.g. "http://localhost:8080"
	Authentication AuthenticationStrategy // Credentials attached to every call; nil means none
	Timeout        time.Duration          // Per-call timeout applied to every operation; 0 means none
	Logger         zerolog.Logger         // Per-call debug logging; zero value logs nothing
	Registerer     prometheus.Registerer  // Optional registry for client metrics
	HTTPClient     *http.Client           // Optional base client whose transport is reused
}

// DefaultConfig returns the configuration for a local unauthenticated service.
func DefaultConfig() Config {
	return Config{
		URL:            defaultURL,
		Authentication: NoneAuthentication{},
		Timeout:        defaultTimeout,
		Logger:         zerolog.Nop(),
	}
}

// ConfigError reports an invalid construction input.
type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("flipt: invalid config [%s]: %s", e.Field, e.Message)
}

// Client groups the service APIs.
type Client struct {
	Evaluation *evaluation.Client

	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient validates cfg and builds a Client. Reachability of the service is
// not checked; an unreachable service surfaces as a transport failure on the
// first call.
func NewClient(cfg Config) (*Client, error) {
	baseURL, err := parseBaseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, ConfigError{Field: "Timeout", Message: "must not be negative"}
	}

	metrics, err := telemetry.NewClientMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("flipt: register metrics: %w", err)
	}

	httpClient := newHTTPClient(cfg, baseURL)

	return &Client{
		Evaluation: evaluation.New(httpClient, baseURL,
			evaluation.WithLogger(cfg.Logger),
			evaluation.WithMetrics(metrics),
		),
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ConfigError{Field: "URL", Message: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ConfigError{Field: "URL", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ConfigError{Field: "URL", Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, ConfigError{Field: "URL", Message: "host is required"}
	}
	return u, nil
}

func newHTTPClient(cfg Config, origin *url.URL) *http.Client {
	base := http.DefaultTransport
	var jar http.CookieJar
	if cfg.HTTPClient != nil {
		if cfg.HTTPClient.Transport != nil {
			base = cfg.HTTPClient.Transport
		}
		jar = cfg.HTTPClient.Jar
	}

	auth := cfg.Authentication
	if auth == nil {
		auth = NoneAuthentication{}
	}

	timeout := cfg.Timeout
	if timeout == 0 && cfg.HTTPClient != nil {
		timeout = cfg.HTTPClient.Timeout
	}

	return &http.Client{
		Transport: &headerTransport{
			base:          base,
			origin:        origin,
			authorization: auth.AuthorizationHeader(),
			userAgent:     "goflipt/" + Version,
		},
		Jar:     jar,
		Timeout: timeout,
	}
}
