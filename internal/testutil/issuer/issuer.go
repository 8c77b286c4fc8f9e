package issuer

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type option func(*FakeIssuer)

// WithSigningKey configures the fake issuer to use the provided key and key ID.
func WithSigningKey(key *rsa.PrivateKey, keyID string) option {
	return func(fi *FakeIssuer) {
		fi.key = key
		fi.keyID = keyID
	}
}

// FakeIssuer hosts OpenID Connect discovery and a JWKS endpoint backed by an RSA key.
// The JWKS endpoint can be switched into an outage to exercise key retrieval failures.
type FakeIssuer struct {
	key          *rsa.PrivateKey
	keyID        string
	server       *httptest.Server
	issuer       string
	jwks         []byte
	jwksDown     atomic.Bool
	jwksRequests atomic.Int64
}

// New starts a FakeIssuer and registers Close as a test cleanup.
func New(tb testing.TB, opts ...option) *FakeIssuer {
	tb.Helper()

	fi := &FakeIssuer{keyID: "test-key"}
	for _, opt := range opts {
		if opt != nil {
			opt(fi)
		}
	}
	if fi.key == nil {
		fi.key = generateKey(tb)
	}

	jwks, err := buildJWKS(fi.key, fi.keyID)
	if err != nil {
		tb.Fatalf("marshal jwks: %v", err)
	}
	fi.jwks = jwks

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 fi.issuer,
			"jwks_uri":               fi.JWKSURL(),
			"token_endpoint":         fi.issuer + "/token",
			"authorization_endpoint": fi.issuer + "/auth",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		fi.jwksRequests.Add(1)
		if fi.jwksDown.Load() {
			http.Error(w, "upstream connect error", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fi.jwks)
	})

	fi.server = httptest.NewServer(mux)
	fi.issuer = fi.server.URL
	tb.Cleanup(fi.Close)

	return fi
}

// Issuer returns the base issuer URL.
func (fi *FakeIssuer) Issuer() string {
	if fi == nil {
		return ""
	}
	return fi.issuer
}

// JWKSURL returns the JWKS endpoint.
func (fi *FakeIssuer) JWKSURL() string {
	if fi == nil {
		return ""
	}
	return fi.issuer + "/jwks"
}

// SetJWKSDown makes the JWKS endpoint answer 503 until called with false.
func (fi *FakeIssuer) SetJWKSDown(down bool) {
	fi.jwksDown.Store(down)
}

// JWKSRequests returns how many times the JWKS endpoint was hit.
func (fi *FakeIssuer) JWKSRequests() int64 {
	return fi.jwksRequests.Load()
}

// SignToken signs claims with the issuer key.
func (fi *FakeIssuer) SignToken(tb testing.TB, claims map[string]any) string {
	tb.Helper()
	return sign(tb, fi.key, fi.keyID, claims)
}

// Claims returns a valid claim set for subject, issued by fi one minute ago.
func (fi *FakeIssuer) Claims(subject string, extra map[string]any) map[string]any {
	now := time.Now().Add(-time.Minute)
	claims := map[string]any{
		"iss": fi.issuer,
		"sub": subject,
		"aud": "accounts",
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"typ": "Bearer",
	}
	for k, v := range extra {
		claims[k] = v
	}
	return claims
}

// Close shuts down the HTTP server.
func (fi *FakeIssuer) Close() {
	if fi == nil || fi.server == nil {
		return
	}
	fi.server.Close()
}

// SignWithRandomKey produces a JWT signed by a fresh key unrelated to any issuer.
func SignWithRandomKey(tb testing.TB, claims map[string]any) string {
	tb.Helper()
	return sign(tb, generateKey(tb), "other", claims)
}

func sign(tb testing.TB, key *rsa.PrivateKey, keyID string, claims map[string]any) string {
	tb.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	if keyID != "" {
		token.Header["kid"] = keyID
	}
	signed, err := token.SignedString(key)
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return signed
}

func generateKey(tb testing.TB) *rsa.PrivateKey {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func buildJWKS(key *rsa.PrivateKey, keyID string) ([]byte, error) {
	jwk := map[string]any{
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"kid": keyID,
		"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}
	return json.Marshal(map[string]any{"keys": []any{jwk}})
}
