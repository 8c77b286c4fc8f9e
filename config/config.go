package config

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/tokensource"
)

// Config captures the runtime configuration for the authentication middleware.
type Config struct {
	// Issuer is the base URL of the identity provider and is required.
	Issuer string

	// Audiences restricts accepted audience (aud) claims. When empty all audiences are allowed.
	Audiences []string

	// TokenTypes restricts accepted token type (typ) claims. When empty all token types are allowed.
	TokenTypes []string

	// AuthorizedParties restricts accepted authorized party (azp) claims. When empty all parties are allowed.
	AuthorizedParties []string

	// HTTPClient is used for discovery and JWKS retrieval. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// ClockSkew is the allowed difference between issuer and service clocks.
	ClockSkew time.Duration

	// AllowAnonymousRequests lets requests without any token through without a viewer.
	// Requests carrying an invalid token are still rejected.
	AllowAnonymousRequests           bool
	allowAnonymousRequestsConfigured bool

	// TokenSources are consulted in order. Defaults to the Authorization header.
	TokenSources []tokensource.Source

	// ClaimsValidators run after the built-in checks.
	ClaimsValidators []ClaimsValidator

	// Metrics receives one event per authentication attempt.
	Metrics MetricsRecorder

	// Responder writes rejected requests.
	Responder apierror.Responder

	// Now overrides the clock. Primarily used for testing.
	Now func() time.Time
}

// ClaimsValidator inspects validated claims. Returning an error rejects the request as unauthorized.
type ClaimsValidator func(ctx context.Context, claims map[string]any) error

// MetricsOutcome labels the result of an authentication attempt.
type MetricsOutcome string

const (
	MetricsOutcomeSuccess   MetricsOutcome = "success"
	MetricsOutcomeFailure   MetricsOutcome = "failure"
	MetricsOutcomeAnonymous MetricsOutcome = "anonymous"
)

// MetricsEvent describes one authentication attempt.
type MetricsEvent struct {
	Issuer    string
	Outcome   MetricsOutcome
	ErrorName string
	Duration  time.Duration
}

// MetricsRecorder observes authentication attempts.
type MetricsRecorder interface {
	RecordValidation(ctx context.Context, event MetricsEvent)
}

// SetAllowAnonymousRequests sets AllowAnonymousRequests and marks it as explicitly
// configured so Merge applies a false value too.
func (c *Config) SetAllowAnonymousRequests(allow bool) {
	c.AllowAnonymousRequests = allow
	c.allowAnonymousRequestsConfigured = true
}

// SetDefaults populates unset options.
func (c *Config) SetDefaults() {
	c.Issuer = strings.TrimSpace(c.Issuer)
	if c.ClockSkew == 0 {
		c.ClockSkew = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if len(c.TokenSources) == 0 {
		c.TokenSources = []tokensource.Source{tokensource.AuthorizationHeader()}
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	issuer := strings.TrimSpace(c.Issuer)
	if issuer == "" {
		return errors.New("config: issuer is required")
	}
	u, err := url.Parse(issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: issuer must be an absolute URL")
	}
	if c.ClockSkew < 0 {
		return errors.New("config: clock skew must not be negative")
	}
	return nil
}
