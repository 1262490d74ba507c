//go:build !release

package authz

// devBypassCompiled reports whether this build can honour auth.dev_bypass.
const devBypassCompiled = true
