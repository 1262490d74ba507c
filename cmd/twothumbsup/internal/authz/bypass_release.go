//go:build release

package authz

// devBypassCompiled is false in release builds: the bypass cannot be enabled
// by any configuration.
const devBypassCompiled = false
