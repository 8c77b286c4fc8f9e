package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/deicod/svcerr/config"
	internaloidc "github.com/deicod/svcerr/internal/oidc"
	"github.com/deicod/svcerr/tokensource"
	"github.com/deicod/svcerr/viewer"
)

// NewMiddleware constructs an HTTP middleware enforcing bearer token validation.
// Failures are written through cfg.Responder:
//
//	missing token             401 UnathorizedError
//	rejected token            401 UnathorizedError
//	signing keys unavailable  500 JWKSFetchError
//	anything else             500 InternalServiceError
func NewMiddleware(cfg config.Config) (func(http.Handler) http.Handler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validator, err := internaloidc.NewValidator(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	sources := append([]tokensource.Source(nil), cfg.TokenSources...)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := now()
			record := func(outcome config.MetricsOutcome, errorName string) {
				if cfg.Metrics == nil {
					return
				}
				cfg.Metrics.RecordValidation(r.Context(), config.MetricsEvent{
					Issuer:    cfg.Issuer,
					Outcome:   outcome,
					ErrorName: errorName,
					Duration:  now().Sub(start),
				})
			}

			rawToken, err := extractToken(r, sources)
			if errors.Is(err, tokensource.ErrNotFound) && cfg.AllowAnonymousRequests {
				record(config.MetricsOutcomeAnonymous, "")
				next.ServeHTTP(w, r)
				return
			}
			if err == nil {
				var validated *internaloidc.ValidatedToken
				validated, err = validator.Validate(r.Context(), rawToken)
				if err == nil {
					record(config.MetricsOutcomeSuccess, "")
					ctx := contextWithClaims(r.Context(), validated.Claims)
					ctx = viewer.WithViewer(ctx, viewer.FromClaims(validated.Claims))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			classified := classify(err)
			record(config.MetricsOutcomeFailure, classified.Name())
			cfg.Responder.Write(w, r, classified)
		})
	}, nil
}

func extractToken(r *http.Request, sources []tokensource.Source) (string, error) {
	for _, source := range sources {
		token, err := source.Extract(r)
		if errors.Is(err, tokensource.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", tokensource.ErrNotFound
}
