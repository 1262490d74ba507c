// Package middleware attaches resolved identities to requests and enforces
// capability checks in front of handlers.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/authz"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
)

// Resolve runs the identity resolver for group and stores the outcome on the
// request context.
//
//   - success: principal stored with auth.SetPrincipalContext
//   - no credential: nothing stored
//   - rejected credential: error stored with auth.SetResolutionError; the
//     request continues so public handlers still work, and Require answers 401
//   - lookup failure: 500
//
// While the gate's dev bypass is active every request carries the synthetic
// admin and the resolver is skipped.
func Resolve(resolver *iam.Resolver, gate *authz.Gate, group iam.Group) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if gate.BypassActive() {
				ctx = auth.SetPrincipalContext(ctx, authz.SyntheticAdmin())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			principal, err := resolver.Resolve(ctx, group, iam.NewAuthRequest(r))
			switch {
			case err == nil:
				ctx = auth.SetPrincipalContext(ctx, principal)
			case errors.Is(err, auth.ErrNoCredential):
			case auth.IsAuthenticationFailure(err):
				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"group":  group,
				}).Warnf("authentication failed: %v", err)
				ctx = auth.SetResolutionError(ctx, err)
			default:
				log.WithError(err).WithField("path", r.URL.Path).Error("identity resolution failed")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
