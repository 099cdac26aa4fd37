package domain

import "fmt"

// Principal is a verified caller identity, produced by the authentication
// middleware and passed into every service operation that needs a role check.
type Principal struct {
	UserID string
	Role   Role
}

// Require rejects the principal unless its role is one of the given set.
// Every operation declares its required role(s) through this single guard
// instead of repeating inline role conditionals per handler.
func (p Principal) Require(roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: operation requires role %v", ErrForbidden, roles)
}
