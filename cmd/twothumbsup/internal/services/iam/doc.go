// Package iam resolves request identities and manages the account lifecycle
// around them.
//
// Architecture:
//
//   - Authenticator interface: one credential strategy each (session cookie,
//     local Bearer token, external Bearer token, anonymous cookie)
//   - Resolver: runs the authenticators registered for a route Group
//   - Service: login, logout, external profile sync and admin bootstrap
//
// Request Flow:
//
//	Request → Resolver.Resolve(group) → Authenticator.Authenticate() → *auth.Principal
//	       ↓
//	   Handler → authz.Gate.Authorize(principal, capability)
//
// Roles are read from the stored user record at resolution time. Token claims
// never grant a role on their own.
package iam
