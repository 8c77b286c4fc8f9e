package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/deicod/svcerr/config"
)

// Validator verifies tokens issued by an OpenID Connect provider.
type Validator struct {
	verifier           *oidc.IDTokenVerifier
	config             config.Config
	audienceAllowlist  map[string]struct{}
	tokenTypeAllowlist map[string]struct{}
	azpAllowlist       map[string]struct{}
	now                func() time.Time
	claimsValidators   []config.ClaimsValidator
}

// ValidatedToken holds a verified token and its decoded claims.
type ValidatedToken struct {
	Raw       string
	Claims    map[string]any
	Subject   string
	Expiry    time.Time
	IssuedAt  time.Time
	NotBefore *time.Time
}

type discovery struct {
	JWKSURL string `json:"jwks_uri"`
}

// NewValidator discovers the issuer and prepares a verifier backed by its JWKS endpoint.
// Keys are fetched lazily on first use, so a JWKS outage surfaces from Validate.
func NewValidator(ctx context.Context, cfg config.Config) (*Validator, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("oidc: http client is not configured")
	}

	ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc: create provider: %w", err)
	}

	var doc discovery
	if err := provider.Claims(&doc); err != nil {
		return nil, fmt.Errorf("oidc: read discovery document: %w", err)
	}
	if doc.JWKSURL == "" {
		return nil, fmt.Errorf("oidc: discovery document has no jwks_uri")
	}

	keySet := probedKeySet{next: oidc.NewRemoteKeySet(ctx, doc.JWKSURL)}
	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{SkipClientIDCheck: true})

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Validator{
		verifier:           verifier,
		config:             cfg,
		audienceAllowlist:  toSet(cfg.Audiences, false),
		tokenTypeAllowlist: toSet(cfg.TokenTypes, true),
		azpAllowlist:       toSet(cfg.AuthorizedParties, false),
		now:                now,
		claimsValidators:   append([]config.ClaimsValidator(nil), cfg.ClaimsValidators...),
	}, nil
}

// Validate verifies the token signature and claims. Every error is a *ValidationError.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*ValidatedToken, error) {
	ctx, probe := withProbe(ctx)
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		fetchErr := probe.get()
		if fetchErr == nil && strings.Contains(err.Error(), fetchFailurePrefix) {
			fetchErr = err
		}
		if fetchErr != nil {
			return nil, newValidationError(ValidationErrorJWKSUnavailable, "could not fetch signing keys", fetchErr)
		}
		return nil, newValidationError(ValidationErrorInvalidToken, "token verification failed", err)
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, newValidationError(ValidationErrorMalformedToken, "failed to decode token claims", err)
	}

	notBefore, err := parseNotBefore(claims["nbf"])
	if err != nil {
		return nil, newValidationError(ValidationErrorMalformedToken, "invalid not-before claim", err)
	}

	checks := []func() *ValidationError{
		func() *ValidationError { return v.validateTimes(v.now(), idToken, notBefore) },
		func() *ValidationError { return v.validateIssuer(claims) },
		func() *ValidationError { return v.validateAudience(claims) },
		func() *ValidationError { return v.validateType(claims) },
		func() *ValidationError { return v.validateAZP(claims) },
		func() *ValidationError { return v.runCustomValidators(ctx, claims) },
	}
	for _, check := range checks {
		if vErr := check(); vErr != nil {
			return nil, vErr
		}
	}

	subject, _ := claims["sub"].(string)
	return &ValidatedToken{
		Raw:       rawToken,
		Claims:    claims,
		Subject:   subject,
		Expiry:    idToken.Expiry,
		IssuedAt:  idToken.IssuedAt,
		NotBefore: notBefore,
	}, nil
}

func (v *Validator) runCustomValidators(ctx context.Context, claims map[string]any) *ValidationError {
	for _, validate := range v.claimsValidators {
		if validate == nil {
			continue
		}
		if err := validate(ctx, claims); err != nil {
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				return vErr
			}
			return newValidationError(ValidationErrorClaimMismatch, "custom claim validation failed", err)
		}
	}
	return nil
}

func (v *Validator) validateTimes(now time.Time, token *oidc.IDToken, notBefore *time.Time) *ValidationError {
	skew := v.config.ClockSkew
	if !token.Expiry.IsZero() && now.After(token.Expiry.Add(skew)) {
		return newValidationError(ValidationErrorExpired, "token has expired", nil)
	}
	if !token.IssuedAt.IsZero() && token.IssuedAt.After(now.Add(skew)) {
		return newValidationError(ValidationErrorNotYetValid, "token used before issued", nil)
	}
	if notBefore != nil && now.Add(skew).Before(notBefore.UTC()) {
		return newValidationError(ValidationErrorNotYetValid, "token is not yet valid", nil)
	}
	return nil
}

func (v *Validator) validateIssuer(claims map[string]any) *ValidationError {
	claim, _ := claims["iss"].(string)
	if claim == "" {
		return newValidationError(ValidationErrorIssuerMismatch, "issuer claim missing", nil)
	}
	if claim != v.config.Issuer {
		return newValidationError(ValidationErrorIssuerMismatch, "issuer claim mismatch", nil)
	}
	return nil
}

func (v *Validator) validateAudience(claims map[string]any) *ValidationError {
	if len(v.audienceAllowlist) == 0 {
		return nil
	}
	audiences := extractAudiences(claims["aud"])
	if len(audiences) == 0 {
		return newValidationError(ValidationErrorAudienceMismatch, "audience claim missing", nil)
	}
	for _, aud := range audiences {
		if _, ok := v.audienceAllowlist[aud]; ok {
			return nil
		}
	}
	return newValidationError(ValidationErrorAudienceMismatch, "audience claim not allowed", nil)
}

func (v *Validator) validateType(claims map[string]any) *ValidationError {
	if len(v.tokenTypeAllowlist) == 0 {
		return nil
	}
	typ, _ := claims["typ"].(string)
	if typ == "" {
		return newValidationError(ValidationErrorTypeMismatch, "token type claim missing", nil)
	}
	if _, ok := v.tokenTypeAllowlist[strings.ToLower(typ)]; !ok {
		return newValidationError(ValidationErrorTypeMismatch, "token type not allowed", nil)
	}
	return nil
}

func (v *Validator) validateAZP(claims map[string]any) *ValidationError {
	if len(v.azpAllowlist) == 0 {
		return nil
	}
	azp, _ := claims["azp"].(string)
	if azp == "" {
		return newValidationError(ValidationErrorAZPMismatch, "authorized party claim missing", nil)
	}
	if _, ok := v.azpAllowlist[azp]; !ok {
		return newValidationError(ValidationErrorAZPMismatch, "authorized party not allowed", nil)
	}
	return nil
}

func toSet(values []string, lower bool) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if lower {
			value = strings.ToLower(value)
		}
		set[value] = struct{}{}
	}
	return set
}

func extractAudiences(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	audiences := raw[:0:0]
	for _, s := range raw {
		if s != "" {
			audiences = append(audiences, s)
		}
	}
	return audiences
}

func parseNotBefore(value any) (*time.Time, error) {
	var seconds int64
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, err
		}
		seconds = i
	case string:
		if v == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		seconds = i
	default:
		return nil, nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t, nil
}
