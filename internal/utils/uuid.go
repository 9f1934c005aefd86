package utils

import "github.com/google/uuid"

// IsValidUUIDv4 reports whether s is a canonical UUIDv4 string. Tenant
// identifiers are validated with this before they reach a query.
func IsValidUUIDv4(s string) bool {
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.String() == s
}
