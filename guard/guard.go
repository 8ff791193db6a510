// Package guard maps session state plus a required-role set to an
// allow/redirect routing decision. It is pure: no side effects, no network,
// evaluable from session state alone.
package guard

import "github.com/carefleet/carefleet-client/users"

// Decision is the outcome of an authorization check
type Decision struct {
	Allow      bool
	RedirectTo string // set when Allow is false
}

// Authorize decides whether the current session may enter a route guarded
// by requiredRoles. Rules, in order: no session redirects to login; an
// empty role set admits any authenticated session; a matching role is
// allowed; anything else is redirected to the session role's own dashboard.
func Authorize(user *users.User, requiredRoles []users.Role) Decision {
	if user == nil {
		return Decision{RedirectTo: users.RouteLogin}
	}
	if len(requiredRoles) == 0 {
		return Decision{Allow: true}
	}
	for _, role := range requiredRoles {
		if user.Role == role {
			return Decision{Allow: true}
		}
	}
	return Decision{RedirectTo: user.Role.HomeRoute()}
}
