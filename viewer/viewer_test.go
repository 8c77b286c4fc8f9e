package viewer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromClaims(t *testing.T) {
	claims := map[string]any{
		"sub":                "1d2e3000-8eba-4c30-9a09-1ca7c00df751",
		"preferred_username": "dalu",
		"email":              "Info@Example.com",
		"email_verified":     true,
		"name":               "Darko Luketic",
		"realm_access": map[string]any{
			"roles": []any{"offline_access", "default-roles-dev", "offline_access"},
		},
		"roles": []string{"accounts-admin"},
		"scope": "openid email profile",
	}

	v := FromClaims(claims)

	require.Equal(t, "1d2e3000-8eba-4c30-9a09-1ca7c00df751", v.Subject)
	require.Equal(t, "dalu", v.PreferredUsername)
	require.Equal(t, "info@example.com", v.Email)
	require.True(t, v.EmailVerified)
	require.Equal(t, []string{"accounts-admin", "default-roles-dev", "offline_access"}, v.Roles)
	require.Equal(t, []string{"email", "openid", "profile"}, v.Scopes)

	claims["preferred_username"] = "other"
	raw, ok := v.Claim("preferred_username")
	require.True(t, ok)
	require.Equal(t, "dalu", raw)
}

func TestViewerHelpers(t *testing.T) {
	v := FromClaims(map[string]any{
		"roles": []any{"Operators"},
		"scp":   []any{"accounts:read accounts:write"},
	})

	require.True(t, v.HasRole("operators"))
	require.False(t, v.HasRole(""))
	require.True(t, v.HasScope("ACCOUNTS:WRITE"))
	require.False(t, v.HasScope("admin"))

	var missing *Viewer
	require.False(t, missing.HasRole("operators"))
}

func TestContextRoundTrip(t *testing.T) {
	_, err := FromContext(context.Background())
	require.ErrorIs(t, err, ErrNoViewer)

	v := FromClaims(map[string]any{"sub": "alice"})
	got, err := FromContext(WithViewer(context.Background(), v))
	require.NoError(t, err)
	require.Same(t, v, got)
}
