package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
)

// RelyingParty runs the browser authorization code flow against the external
// IdP by wrapping the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty creates a RelyingParty for the configured external IdP.
// Cookie keys for PKCE state are generated per process, so an in-flight login
// does not survive a restart.
func NewRelyingParty(ctx context.Context, cfg *config.ExternalIdPConfig, secure bool) (*RelyingParty, error) {
	if !cfg.SSOEnabled() {
		return nil, fmt.Errorf("sso requires client id, client secret and redirect uri")
	}

	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	cookieOpts := []httphelper.CookieHandlerOpt{}
	if !secure {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// ProfileCallback receives the verified ID token profile after a successful
// code exchange.
type ProfileCallback func(w http.ResponseWriter, r *http.Request, profile *ExternalProfile)

// LoginHandler redirects the browser to the IdP. State and the PKCE verifier
// are kept in cookies by the zitadel cookie handler.
func (r *RelyingParty) LoginHandler() http.Handler {
	return rp.AuthURLHandler(func() string {
		state, err := generateRandomBytes(32)
		if err != nil {
			return ""
		}
		return base64.RawURLEncoding.EncodeToString(state)
	}, r.rp)
}

// CallbackHandler validates state, exchanges the code and hands the ID token
// claims to fn.
func (r *RelyingParty) CallbackHandler(fn ProfileCallback) http.Handler {
	return rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		fn(w, req, profileFromIDToken(tokens.IDTokenClaims))
	}, r.rp)
}

func profileFromIDToken(c *oidc.IDTokenClaims) *ExternalProfile {
	if c == nil {
		return &ExternalProfile{}
	}
	return &ExternalProfile{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: bool(c.EmailVerified),
		Nickname:      c.Nickname,
		Name:          c.Name,
		Picture:       c.Picture,
	}
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
