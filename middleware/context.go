package middleware

import (
	"context"
	"maps"
)

type claimsKey struct{}

func contextWithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns a copy of the claims validated for the current request.
func ClaimsFromContext(ctx context.Context) (map[string]any, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsKey{}).(map[string]any)
	if !ok {
		return nil, false
	}
	return maps.Clone(claims), true
}
