package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/authz"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

// Require rejects requests whose principal does not hold capability.
// Unauthenticated callers get 401, authenticated callers without the role 403.
// Must run after Resolve.
func Require(gate *authz.Gate, capability authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := auth.GetPrincipalFromContext(r.Context())
			decision := gate.Authorize(principal, capability)

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String(telemetry.AttrCapability, string(capability)),
				attribute.Bool(telemetry.AttrAuthzAllowed, decision.Allowed),
				attribute.String(telemetry.AttrAuthzDecision, string(decision.Reason)),
			)

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			fields := log.Fields{"method": r.Method, "path": r.URL.Path, "capability": capability}
			if principal != nil {
				fields["principal_id"] = principal.ID
			}
			log.WithFields(fields).Infof("access denied: %s", decision.Reason)

			if decision.Reason == authz.DenyAuthenticationRequired {
				writeError(w, http.StatusUnauthorized, decision.Message())
				return
			}
			writeError(w, http.StatusForbidden, decision.Message())
		})
	}
}
