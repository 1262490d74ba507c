package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
)

const testAudience = "https://api.twothumbsup.test"

// testIssuer is an httptest OIDC issuer serving discovery and a JWKS whose
// keys can be rotated during a test.
type testIssuer struct {
	srv       *httptest.Server
	mu        sync.Mutex
	keys      []jose.JSONWebKey
	jwksHits  atomic.Int32
	failJWKS  atomic.Bool
	discovery atomic.Int32
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	ti := &testIssuer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		ti.discovery.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   ti.srv.URL,
			"jwks_uri": ti.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		ti.jwksHits.Add(1)
		if ti.failJWKS.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		ti.mu.Lock()
		set := jose.JSONWebKeySet{Keys: append([]jose.JSONWebKey(nil), ti.keys...)}
		ti.mu.Unlock()
		_ = json.NewEncoder(w).Encode(set)
	})
	ti.srv = httptest.NewServer(mux)
	t.Cleanup(ti.srv.Close)
	return ti
}

func (ti *testIssuer) publish(keys ...jose.JSONWebKey) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.keys = keys
}

type signingKey struct {
	kid     string
	alg     jose.SignatureAlgorithm
	private any
	public  any
}

func newRSAKey(t *testing.T, kid string) signingKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, alg: jose.RS256, private: k, public: &k.PublicKey}
}

func newECKey(t *testing.T, kid string) signingKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return signingKey{kid: kid, alg: jose.ES256, private: k, public: &k.PublicKey}
}

func (k signingKey) jwk() jose.JSONWebKey {
	return jose.JSONWebKey{Key: k.public, KeyID: k.kid, Algorithm: string(k.alg), Use: "sig"}
}

func (k signingKey) sign(t *testing.T, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: k.alg, Key: jose.JSONWebKey{Key: k.private, KeyID: k.kid}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	raw, err := josejwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)
	return raw
}

func (ti *testIssuer) claims(now time.Time) map[string]any {
	return map[string]any{
		"iss":            ti.srv.URL,
		"aud":            []string{testAudience, ti.srv.URL + "/userinfo"},
		"sub":            "auth0|abc123",
		"email":          "ada@example.com",
		"email_verified": true,
		"nickname":       "ada",
		"name":           "Ada Lovelace",
		"picture":        "https://cdn.example.com/ada.png",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newVerifier(t *testing.T, ti *testIssuer, clock *fakeClock, retries int) *ExternalVerifier {
	t.Helper()
	v, err := NewExternalVerifier(&config.ExternalIdPConfig{
		Issuer:       ti.srv.URL,
		Audience:     testAudience,
		JWKSCacheTTL: time.Minute,
		FetchTimeout: time.Second,
		FetchRetries: retries,
	}, WithVerifierClock(clock.Now))
	require.NoError(t, err)
	return v
}

func TestExternalVerifier_ValidToken(t *testing.T) {
	ti := newTestIssuer(t)
	rsaKey := newRSAKey(t, "rsa-1")
	ecKey := newECKey(t, "ec-1")
	ti.publish(rsaKey.jwk(), ecKey.jwk())
	clock := &fakeClock{t: time.Now()}
	v := newVerifier(t, ti, clock, 0)

	for _, key := range []signingKey{rsaKey, ecKey} {
		profile, err := v.VerifyExternal(context.Background(), key.sign(t, ti.claims(clock.Now())))
		require.NoError(t, err, key.kid)
		assert.Equal(t, "auth0|abc123", profile.Subject)
		assert.Equal(t, "ada@example.com", profile.Email)
		assert.True(t, profile.EmailVerified)
		assert.Equal(t, "ada", profile.PreferredUsername())
		assert.Equal(t, "Ada Lovelace", profile.DisplayName())
		assert.Equal(t, "https://cdn.example.com/ada.png", profile.Picture)
	}

	assert.EqualValues(t, 1, ti.jwksHits.Load(), "key set should be cached")
	assert.EqualValues(t, 1, ti.discovery.Load())
}

func TestExternalVerifier_RejectsBadClaims(t *testing.T) {
	ti := newTestIssuer(t)
	key := newRSAKey(t, "rsa-1")
	ti.publish(key.jwk())
	clock := &fakeClock{t: time.Now()}
	v := newVerifier(t, ti, clock, 0)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"wrong audience", func(c map[string]any) { c["aud"] = "https://someone-else" }},
		{"wrong issuer", func(c map[string]any) { c["iss"] = "https://evil.example.com/" }},
		{"expired", func(c map[string]any) { c["exp"] = clock.Now().Add(-time.Minute).Unix() }},
		{"missing exp", func(c map[string]any) { delete(c, "exp") }},
		{"missing sub", func(c map[string]any) { delete(c, "sub") }},
		{"empty sub", func(c map[string]any) { c["sub"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := ti.claims(clock.Now())
			tt.mutate(claims)
			_, err := v.VerifyExternal(context.Background(), key.sign(t, claims))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExternalVerifier_RejectsSymmetricToken(t *testing.T) {
	ti := newTestIssuer(t)
	ti.publish(newRSAKey(t, "rsa-1").jwk())
	clock := &fakeClock{t: time.Now()}
	v := newVerifier(t, ti, clock, 0)

	// A local session token must never be accepted on the external path.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(ti.claims(clock.Now()))).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.VerifyExternal(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExternalVerifier_UnknownKidRefreshesOnce(t *testing.T) {
	ti := newTestIssuer(t)
	oldKey := newRSAKey(t, "old")
	ti.publish(oldKey.jwk())
	clock := &fakeClock{t: time.Now()}
	v := newVerifier(t, ti, clock, 0)

	_, err := v.VerifyExternal(context.Background(), oldKey.sign(t, ti.claims(clock.Now())))
	require.NoError(t, err)
	require.EqualValues(t, 1, ti.jwksHits.Load())

	// Unknown kid right after a fetch does not hammer the provider.
	stranger := newRSAKey(t, "stranger")
	_, err = v.VerifyExternal(context.Background(), stranger.sign(t, ti.claims(clock.Now())))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.EqualValues(t, 1, ti.jwksHits.Load())

	// The issuer rotates keys; a token with the new kid triggers exactly one refresh.
	newKey := newRSAKey(t, "new")
	ti.publish(oldKey.jwk(), newKey.jwk())
	clock.Advance(minForcedRefresh + time.Second)

	profile, err := v.VerifyExternal(context.Background(), newKey.sign(t, ti.claims(clock.Now())))
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc123", profile.Subject)
	assert.EqualValues(t, 2, ti.jwksHits.Load())
}

func TestExternalVerifier_ProviderDownFailsClosed(t *testing.T) {
	ti := newTestIssuer(t)
	key := newRSAKey(t, "rsa-1")
	ti.publish(key.jwk())
	ti.failJWKS.Store(true)
	clock := &fakeClock{t: time.Now()}
	v := newVerifier(t, ti, clock, 2)

	_, err := v.VerifyExternal(context.Background(), key.sign(t, ti.claims(clock.Now())))
	assert.ErrorIs(t, err, ErrInvalidToken)
	// 5xx is retried, but only a bounded number of times.
	hits := ti.jwksHits.Load()
	assert.GreaterOrEqual(t, hits, int32(2))
	assert.LessOrEqual(t, hits, int32(4))
}

func TestExternalVerifier_ExplicitJWKSURLSkipsDiscovery(t *testing.T) {
	ti := newTestIssuer(t)
	key := newECKey(t, "ec-1")
	ti.publish(key.jwk())
	clock := &fakeClock{t: time.Now()}

	v, err := NewExternalVerifier(&config.ExternalIdPConfig{
		Issuer:       ti.srv.URL,
		Audience:     testAudience,
		JWKSURL:      ti.srv.URL + "/jwks",
		FetchTimeout: time.Second,
	}, WithVerifierClock(clock.Now))
	require.NoError(t, err)

	_, err = v.VerifyExternal(context.Background(), key.sign(t, ti.claims(clock.Now())))
	require.NoError(t, err)
	assert.EqualValues(t, 0, ti.discovery.Load())
}

func TestExternalVerifier_DiscoveryIssuerMismatch(t *testing.T) {
	ti := newTestIssuer(t)
	key := newRSAKey(t, "rsa-1")
	ti.publish(key.jwk())
	clock := &fakeClock{t: time.Now()}

	// The discovery document names another issuer but points at a valid key set.
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   "https://evil.example.com/",
			"jwks_uri": ti.srv.URL + "/jwks",
		})
	})
	impostor := httptest.NewServer(mux)
	t.Cleanup(impostor.Close)

	v, err := NewExternalVerifier(&config.ExternalIdPConfig{
		Issuer:       impostor.URL,
		Audience:     testAudience,
		FetchTimeout: time.Second,
	}, WithVerifierClock(clock.Now))
	require.NoError(t, err)

	claims := ti.claims(clock.Now())
	claims["iss"] = impostor.URL
	_, err = v.VerifyExternal(context.Background(), key.sign(t, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.EqualValues(t, 0, ti.jwksHits.Load())
}

func TestNewExternalVerifier_RequiresIssuerAndAudience(t *testing.T) {
	_, err := NewExternalVerifier(nil)
	require.Error(t, err)

	_, err = NewExternalVerifier(&config.ExternalIdPConfig{Issuer: "https://idp.example.com/"})
	require.Error(t, err)
}

func TestDecodeExternalProfile_StringEmailVerified(t *testing.T) {
	profile, err := DecodeExternalProfile(map[string]any{
		"sub":            "kc-1",
		"email":          "grace@example.com",
		"email_verified": "true",
		"roles":          []any{"ignored"},
	})
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "grace", profile.PreferredUsername())
	assert.Equal(t, "grace@example.com", profile.DisplayName())
}
