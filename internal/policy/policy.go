// Package policy defines the closed role set and the authorization rule.
// Authorization is a pure function of (role, required roles) and is
// independent of transport; endpoints declare the roles they accept and
// never inspect role strings themselves.
package policy

// Role is one of the closed set of capability levels a credential can carry.
type Role string

const (
	// RoleUser can verify and run 1:N search.
	RoleUser Role = "user"
	// RoleAnalyst can additionally read audit events.
	RoleAnalyst Role = "analyst"
	// RoleAdmin can additionally manage lockouts and identity roles.
	RoleAdmin Role = "admin"
)

// DefaultRole is assigned on first enrollment.
const DefaultRole = RoleUser

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAnalyst, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

func (r Role) String() string { return string(r) }

// Allowed reports whether a role satisfies the required set. An empty
// required set means any valid role is acceptable. Unknown roles never
// satisfy anything.
func Allowed(role string, required ...string) bool {
	r, ok := ParseRole(role)
	if !ok {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if string(r) == want {
			return true
		}
	}
	return false
}
