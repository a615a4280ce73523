// Package authz holds the role check shared by every protected operation.
package authz

import (
	"fmt"
	"slices"

	"github.com/edusphere-api/internal/domain"
)

// RequireRole returns a wrapped domain.ErrForbidden unless p holds one of allowed.
func RequireRole(p domain.Principal, allowed ...string) error {
	if slices.Contains(allowed, p.Role) {
		return nil
	}
	return fmt.Errorf("role %q not permitted: %w", p.Role, domain.ErrForbidden)
}

// RequireOwnerOrAdmin passes when p is ownerID or an admin.
func RequireOwnerOrAdmin(p domain.Principal, ownerID string) error {
	if p.IsAdmin() || p.UserID == ownerID {
		return nil
	}
	return fmt.Errorf("not the owner: %w", domain.ErrForbidden)
}
