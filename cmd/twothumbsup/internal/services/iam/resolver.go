package iam

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

// Group selects the credential strategy for a set of routes. Groups never
// fall through to each other: a local token is not tried as an external one.
type Group string

const (
	// GroupLocalSession accepts a local Bearer token, then the session cookie.
	// An explicit Authorization header wins over a cookie the browser still holds.
	GroupLocalSession Group = "local-session"
	// GroupExternal accepts only external IdP Bearer tokens.
	GroupExternal Group = "external"
	// GroupLikeCapable accepts local credentials and downgrades to the
	// anonymous cookie when they are missing or invalid.
	GroupLikeCapable Group = "like-capable"
)

// Resolution outcomes recorded in metrics.
const (
	outcomeUser      = "user"
	outcomeAnonymous = "anonymous"
	outcomeNone      = "none"
	outcomeFailure   = "failure"
	outcomeError     = "error"
)

// Resolver maps a request to at most one principal according to its route group.
type Resolver struct {
	local     []Authenticator
	external  []Authenticator
	anonymous Authenticator
	metrics   *telemetry.Metrics
}

// ResolverDependencies lists the authenticators a Resolver is built from.
// External may be nil when no external IdP is configured; GroupExternal then
// never resolves.
type ResolverDependencies struct {
	SessionCookie Authenticator
	LocalBearer   Authenticator
	External      Authenticator
	Anonymous     Authenticator
	Metrics       *telemetry.Metrics
}

// NewResolver wires the per-group authenticator chains.
func NewResolver(deps ResolverDependencies) *Resolver {
	r := &Resolver{anonymous: deps.Anonymous, metrics: deps.Metrics}
	for _, a := range []Authenticator{deps.LocalBearer, deps.SessionCookie} {
		if a != nil {
			r.local = append(r.local, a)
		}
	}
	if deps.External != nil {
		r.external = []Authenticator{deps.External}
	}
	if r.anonymous == nil {
		r.anonymous = AnonymousCookieAuthenticator{}
	}
	return r
}

// Resolve returns the principal for req under group.
//
// Returns:
//   - (principal, nil): a credential was accepted
//   - (nil, auth.ErrNoCredential): nothing usable was presented
//   - (nil, err): a credential was presented and rejected, or a lookup failed
//
// GroupLikeCapable never returns an authentication failure: a rejected local
// credential falls back to the anonymous cookie, or to ErrNoCredential.
func (r *Resolver) Resolve(ctx context.Context, group Group, req AuthRequest) (*auth.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, "twothumbsup/services/iam", "iam.Resolve",
		attribute.String(telemetry.AttrAuthGroup, string(group)),
	)
	defer span.End()

	var chain []Authenticator
	switch group {
	case GroupLocalSession, GroupLikeCapable:
		chain = r.local
	case GroupExternal:
		chain = r.external
	}

	for i, authenticator := range chain {
		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			if group == GroupLikeCapable && auth.IsAuthenticationFailure(err) {
				telemetry.AddEvent(span, "authentication.downgraded",
					attribute.Int("authenticator_index", i),
					attribute.String("error", err.Error()),
				)
				log.WithField("group", group).Debugf("local credential rejected, falling back: %v", err)
				continue
			}
			telemetry.RecordError(span, err)
			r.observe(group, failureOutcome(err))
			return nil, err
		}
		if principal != nil {
			return r.accept(span, group, principal), nil
		}
	}

	if group == GroupLikeCapable {
		principal, err := r.anonymous.Authenticate(ctx, req)
		if err != nil {
			telemetry.RecordError(span, err)
			r.observe(group, outcomeError)
			return nil, err
		}
		if principal != nil {
			return r.accept(span, group, principal), nil
		}
	}

	r.observe(group, outcomeNone)
	return nil, auth.ErrNoCredential
}

func (r *Resolver) accept(span trace.Span, group Group, principal *auth.Principal) *auth.Principal {
	span.SetAttributes(
		attribute.String(telemetry.AttrPrincipalID, principal.ID),
		attribute.String(telemetry.AttrPrincipalKind, string(principal.Kind)),
		attribute.String(telemetry.AttrPrincipalRole, principal.Role),
	)
	if principal.IsAuthenticated() {
		r.observe(group, outcomeUser)
	} else {
		r.observe(group, outcomeAnonymous)
	}
	return principal
}

func (r *Resolver) observe(group Group, outcome string) {
	r.metrics.ObserveResolution(string(group), outcome)
}

func failureOutcome(err error) string {
	if auth.IsAuthenticationFailure(err) && !errors.Is(err, auth.ErrNoCredential) {
		return outcomeFailure
	}
	return outcomeError
}
