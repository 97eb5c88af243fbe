package token

import "github.com/pkg/errors"

// Scope is a named permission attached to a token, limiting which operations
// it may authorize.
type Scope = string

// The closed scope enumeration. API token generation rejects anything outside
// this set; interactive login grants the full set.
const (
	ScopeReadRoutes    Scope = "read:routes"
	ScopeWriteRoutes   Scope = "write:routes"
	ScopeReadDashboard Scope = "read:dashboard"
	ScopeReadProfile   Scope = "read:profile"
	ScopeWriteProfile  Scope = "write:profile"
	ScopeReadDevices   Scope = "read:devices"
	ScopeWriteDevices  Scope = "write:devices"
)

// ErrInvalidScope is returned when a requested scope is not in the published
// enumeration.
var ErrInvalidScope = errors.New("invalid or unknown scope")

var knownScopes = map[Scope]struct{}{
	ScopeReadRoutes:    {},
	ScopeWriteRoutes:   {},
	ScopeReadDashboard: {},
	ScopeReadProfile:   {},
	ScopeWriteProfile:  {},
	ScopeReadDevices:   {},
	ScopeWriteDevices:  {},
}

// AllScopes returns the full scope set granted to interactive logins.
func AllScopes() []Scope {
	return []Scope{
		ScopeReadRoutes,
		ScopeWriteRoutes,
		ScopeReadDashboard,
		ScopeReadProfile,
		ScopeWriteProfile,
		ScopeReadDevices,
		ScopeWriteDevices,
	}
}

// ValidateScopes checks every requested scope against the closed enumeration.
func ValidateScopes(scopes []Scope) error {
	if len(scopes) == 0 {
		return errors.Wrap(ErrInvalidScope, "at least one scope is required")
	}
	for _, s := range scopes {
		if _, ok := knownScopes[s]; !ok {
			return errors.Wrapf(ErrInvalidScope, "%q", s)
		}
	}
	return nil
}

// HasScope reports whether the granted set includes the required scope.
func HasScope(granted []Scope, required Scope) bool {
	for _, s := range granted {
		if s == required {
			return true
		}
	}
	return false
}
