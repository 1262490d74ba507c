package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lestrrat-go/backoff/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

const (
	discoveryPath = "/.well-known/openid-configuration"
	// minForcedRefresh limits how often an unknown kid may trigger a JWKS fetch.
	minForcedRefresh = 10 * time.Second
	maxJWKSBytes     = 1 << 20
	jwksCacheSize    = 8
)

// externalAlgorithms are the asymmetric algorithms accepted from the external issuer.
var externalAlgorithms = []string{"RS256", "RS384", "RS512", "PS256", "ES256", "ES384"}

// errStatus marks non-retryable HTTP responses from the key provider.
type errStatus struct{ code int }

func (e errStatus) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

// FetchObserver is notified with "ok" or "error" after each key provider round trip.
type FetchObserver func(outcome string)

// ExternalVerifier validates access tokens minted by a third-party OIDC
// issuer against its published JWKS. It never uses the local session secret.
type ExternalVerifier struct {
	issuer       string
	audience     string
	jwksURL      string
	fetchTimeout time.Duration
	retries      int
	client       *http.Client
	now          func() time.Time
	observe      FetchObserver

	keys  *expirable.LRU[string, *jose.JSONWebKeySet]
	group singleflight.Group

	mu            sync.Mutex
	discoveredURL string
	lastFetch     time.Time
}

// ExternalVerifierOption customises an ExternalVerifier.
type ExternalVerifierOption func(*ExternalVerifier)

// WithHTTPClient sets the client used for discovery and JWKS requests.
func WithHTTPClient(client *http.Client) ExternalVerifierOption {
	return func(v *ExternalVerifier) {
		if client != nil {
			v.client = client
		}
	}
}

// WithVerifierClock overrides the time source used for exp/nbf checks.
func WithVerifierClock(now func() time.Time) ExternalVerifierOption {
	return func(v *ExternalVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithFetchObserver registers a callback for key provider fetch outcomes.
func WithFetchObserver(fn FetchObserver) ExternalVerifierOption {
	return func(v *ExternalVerifier) {
		v.observe = fn
	}
}

// NewExternalVerifier builds a verifier for the configured issuer. Keys are
// fetched lazily on the first token.
func NewExternalVerifier(cfg *config.ExternalIdPConfig, opts ...ExternalVerifierOption) (*ExternalVerifier, error) {
	if cfg == nil || cfg.Issuer == "" {
		return nil, errors.New("external issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("external audience is required")
	}

	cacheTTL := cfg.JWKSCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	v := &ExternalVerifier{
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		jwksURL:      cfg.JWKSURL,
		fetchTimeout: timeout,
		retries:      max(cfg.FetchRetries, 0),
		client:       &http.Client{},
		now:          time.Now,
		observe:      func(string) {},
		keys:         expirable.NewLRU[string, *jose.JSONWebKeySet](jwksCacheSize, nil, cacheTTL),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// VerifyExternal checks signature, issuer, audience and expiry of token and
// returns its profile claims. Every failure, including an unreachable key
// provider, is reported as ErrInvalidToken.
func (v *ExternalVerifier) VerifyExternal(ctx context.Context, token string) (*ExternalProfile, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth", "external.verify")
	defer span.End()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.lookupKey(ctx, kid)
	},
		jwt.WithValidMethods(externalAlgorithms),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	profile, err := DecodeExternalProfile(claims)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if profile.Subject == "" {
		err := fmt.Errorf("%w: missing sub", ErrInvalidToken)
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrSubject, profile.Subject))
	return profile, nil
}

// lookupKey returns the public key for kid, refreshing the key set once if
// the kid is not in the cached set.
func (v *ExternalVerifier) lookupKey(ctx context.Context, kid string) (any, error) {
	set, err := v.keySet(ctx, false)
	if err != nil {
		return nil, err
	}
	if key, ok := selectKey(set, kid); ok {
		return key, nil
	}

	set, err = v.keySet(ctx, true)
	if err != nil {
		return nil, err
	}
	if key, ok := selectKey(set, kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no signing key for kid %q", kid)
}

func selectKey(set *jose.JSONWebKeySet, kid string) (any, bool) {
	if set == nil {
		return nil, false
	}
	if kid == "" {
		var signing []jose.JSONWebKey
		for _, k := range set.Keys {
			if k.Use == "" || k.Use == "sig" {
				signing = append(signing, k)
			}
		}
		if len(signing) == 1 {
			return signing[0].Key, true
		}
		return nil, false
	}
	for _, k := range set.Key(kid) {
		if k.IsPublic() && (k.Use == "" || k.Use == "sig") {
			return k.Key, true
		}
	}
	return nil, false
}

func (v *ExternalVerifier) keySet(ctx context.Context, force bool) (*jose.JSONWebKeySet, error) {
	jwksURL, err := v.resolveJWKSURL(ctx)
	if err != nil {
		return nil, err
	}

	if !force {
		if set, ok := v.keys.Get(jwksURL); ok {
			return set, nil
		}
	} else {
		v.mu.Lock()
		recent := v.now().Sub(v.lastFetch) < minForcedRefresh
		v.mu.Unlock()
		if recent {
			if set, ok := v.keys.Get(jwksURL); ok {
				return set, nil
			}
		}
	}

	res := v.group.DoChan(jwksURL, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		set := &jose.JSONWebKeySet{}
		if err := v.fetchJSON(fetchCtx, jwksURL, set); err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		v.keys.Add(jwksURL, set)
		v.mu.Lock()
		v.lastFetch = v.now()
		v.mu.Unlock()
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*jose.JSONWebKeySet), nil
	}
}

func (v *ExternalVerifier) resolveJWKSURL(ctx context.Context) (string, error) {
	if v.jwksURL != "" {
		return v.jwksURL, nil
	}

	v.mu.Lock()
	discovered := v.discoveredURL
	v.mu.Unlock()
	if discovered != "" {
		return discovered, nil
	}

	var doc struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	discoveryURL := strings.TrimSuffix(v.issuer, "/") + discoveryPath
	if err := v.fetchJSON(ctx, discoveryURL, &doc); err != nil {
		return "", fmt.Errorf("oidc discovery: %w", err)
	}
	if strings.TrimSuffix(doc.Issuer, "/") != strings.TrimSuffix(v.issuer, "/") {
		return "", fmt.Errorf("oidc discovery: issuer %q does not match %q", doc.Issuer, v.issuer)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("oidc discovery: jwks_uri missing")
	}

	v.mu.Lock()
	v.discoveredURL = doc.JWKSURI
	v.mu.Unlock()
	return doc.JWKSURI, nil
}

// fetchJSON GETs url into out. Network errors and 5xx responses are retried
// with exponential backoff up to the configured bound; each attempt has its
// own timeout.
func (v *ExternalVerifier) fetchJSON(ctx context.Context, url string, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "auth", "external.fetch",
		attribute.String("http.url", url))
	defer span.End()

	// WithMaxRetries counts attempts, and zero would mean unbounded.
	policy := backoff.Exponential(
		backoff.WithMinInterval(100*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithJitterFactor(0.2),
		backoff.WithMaxRetries(v.retries+1),
	)

	var lastErr error
	b := policy.Start(ctx)
	for backoff.Continue(b) {
		lastErr = v.fetchOnce(ctx, url, out)
		if lastErr == nil {
			v.observe("ok")
			return nil
		}
		v.observe("error")
		telemetry.AddEvent(span, "fetch.retry", attribute.String("error", lastErr.Error()))

		var status errStatus
		if errors.As(lastErr, &status) && status.code < 500 {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	telemetry.RecordError(span, lastErr)
	return lastErr
}

func (v *ExternalVerifier) fetchOnce(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errStatus{code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
