package viewer

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
)

type contextKey struct{}

// ErrNoViewer indicates that no viewer was present in a context.
var ErrNoViewer = errors.New("viewer: viewer not found in context")

// Viewer is the authenticated caller derived from validated token claims.
type Viewer struct {
	Subject           string
	Email             string
	EmailVerified     bool
	PreferredUsername string
	Name              string
	Roles             []string
	Scopes            []string

	claims map[string]any
}

// FromClaims builds a Viewer. Roles are read from realm_access.roles and a top-level
// "roles" claim; scopes from "scope" (space separated) or "scp".
func FromClaims(claims map[string]any) *Viewer {
	claims = maps.Clone(claims)
	if claims == nil {
		claims = map[string]any{}
	}

	verified, _ := claims["email_verified"].(bool)
	realm, _ := claims["realm_access"].(map[string]any)

	return &Viewer{
		Subject:           stringClaim(claims, "sub"),
		Email:             strings.ToLower(stringClaim(claims, "email")),
		EmailVerified:     verified,
		PreferredUsername: stringClaim(claims, "preferred_username"),
		Name:              stringClaim(claims, "name"),
		Roles:             normalize(stringList(realm["roles"]), stringList(claims["roles"])),
		Scopes:            normalize(splitScopes(claims["scope"]), splitScopes(claims["scp"])),
		claims:            claims,
	}
}

// Claim returns a raw claim value.
func (v *Viewer) Claim(name string) (any, bool) {
	if v == nil {
		return nil, false
	}
	value, ok := v.claims[name]
	return value, ok
}

// HasRole reports whether the viewer holds role (case-insensitive).
func (v *Viewer) HasRole(role string) bool {
	return v != nil && containsFold(v.Roles, role)
}

// HasScope reports whether the viewer was granted scope (case-insensitive).
func (v *Viewer) HasScope(scope string) bool {
	return v != nil && containsFold(v.Scopes, scope)
}

// WithViewer stores v in ctx.
func WithViewer(ctx context.Context, v *Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext retrieves the viewer stored by WithViewer.
func FromContext(ctx context.Context) (*Viewer, error) {
	if ctx == nil {
		return nil, ErrNoViewer
	}
	v, ok := ctx.Value(contextKey{}).(*Viewer)
	if !ok || v == nil {
		return nil, ErrNoViewer
	}
	return v, nil
}

func stringClaim(claims map[string]any, key string) string {
	raw, _ := claims[key].(string)
	return strings.TrimSpace(raw)
}

func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func splitScopes(value any) []string {
	var out []string
	for _, item := range stringList(value) {
		out = append(out, strings.Fields(item)...)
	}
	return out
}

// normalize trims, drops empties and duplicates, and sorts.
func normalize(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func containsFold(list []string, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, want) })
}
