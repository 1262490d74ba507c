// Package authz decides whether a resolved principal may perform an operation
// that requires a given capability tier.
package authz

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
)

//go:embed model.conf
var casbinModelContent string

// Capability is the minimum tier a route requires.
type Capability string

const (
	CapabilityPublic            Capability = "public"
	CapabilityAuthenticatedUser Capability = "user"
	CapabilityAdmin             Capability = "admin"
)

// DenyReason explains a denied Decision.
type DenyReason string

const (
	DenyAuthenticationRequired DenyReason = "authentication_required"
	DenyInsufficientRole       DenyReason = "insufficient_role"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Required is the capability that was checked, used for role-failure messages.
	Required Capability
}

// Message returns the caller-facing text for a denial. The required role is
// only named when the caller is already authenticated.
func (d Decision) Message() string {
	switch d.Reason {
	case DenyAuthenticationRequired:
		return "Authentication required"
	case DenyInsufficientRole:
		return fmt.Sprintf("%s role required", d.Required)
	default:
		return ""
	}
}

// Options configures a Gate.
type Options struct {
	// DevBypass allows every check with a synthetic admin principal.
	DevBypass bool
	// Production refuses DevBypass.
	Production bool
}

// Gate maps principals to capabilities. Role inheritance lives in a casbin
// policy: admin inherits everything user can do.
type Gate struct {
	enforcer *casbin.SyncedEnforcer
	bypass   bool
}

// NewGate builds the gate and its static role policy.
func NewGate(opts Options) (*Gate, error) {
	if opts.DevBypass {
		if !devBypassCompiled {
			return nil, errors.New("auth dev bypass is not available in release builds")
		}
		if opts.Production {
			return nil, errors.New("auth dev bypass cannot be enabled in production")
		}
	}

	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	policies := [][]string{
		{roleSubject(auth.RoleUser), capabilityObject(CapabilityAuthenticatedUser)},
		{roleSubject(auth.RoleAdmin), capabilityObject(CapabilityAdmin)},
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("add capability policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicy(roleSubject(auth.RoleAdmin), roleSubject(auth.RoleUser)); err != nil {
		return nil, fmt.Errorf("add role inheritance: %w", err)
	}

	return &Gate{enforcer: enforcer, bypass: opts.DevBypass}, nil
}

// BypassActive reports whether every check is forced to Allow.
func (g *Gate) BypassActive() bool {
	return g.bypass
}

// Authorize decides whether p may act at capability c. It has no side
// effects and is defined for every input, including a nil principal and an
// unknown capability.
func (g *Gate) Authorize(p *auth.Principal, c Capability) Decision {
	if c == CapabilityPublic || g.bypass {
		return Decision{Allowed: true, Required: c}
	}
	if !p.IsAuthenticated() {
		return Decision{Reason: DenyAuthenticationRequired, Required: c}
	}

	ok, err := g.enforcer.Enforce(roleSubject(p.Role), capabilityObject(c))
	if err != nil || !ok {
		return Decision{Reason: DenyInsufficientRole, Required: c}
	}
	return Decision{Allowed: true, Required: c}
}

// SyntheticAdmin is the principal attached to requests while the dev bypass is on.
func SyntheticAdmin() *auth.Principal {
	return &auth.Principal{
		Kind:        auth.KindUser,
		ID:          "dev-bypass-admin",
		Role:        auth.RoleAdmin,
		Username:    "dev-admin",
		DisplayName: "Development Admin",
	}
}

func roleSubject(role string) string {
	return "role:" + role
}

func capabilityObject(c Capability) string {
	return "capability:" + string(c)
}
