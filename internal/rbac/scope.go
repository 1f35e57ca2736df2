package rbac

import (
	"context"

	"github.com/google/uuid"
)

// ResourceScopeChecker narrows a group-level grant to a specific resource
// instance, e.g. "editor of project X" rather than "editor of all projects".
// The only implementation shipped here is AllowAllScope: resource-level ACLs
// are left as an unresolved Open Question (see SPEC_FULL.md) and this seam
// exists so a caller-supplied implementation can be wired in without touching
// the PDP. A nil checker passed to New is replaced by AllowAllScope, so every
// grant is org-wide.
type ResourceScopeChecker interface {
	// InScope reports whether groupID's grant of permission applies to
	// resourceID. Called only when resourceID is non-empty.
	InScope(ctx context.Context, groupID uuid.UUID, permission, resourceID string) (bool, error)
}

// AllowAllScope is the zero-cost default: every group grant applies
// org-wide regardless of resourceID.
type AllowAllScope struct{}

func (AllowAllScope) InScope(ctx context.Context, groupID uuid.UUID, permission, resourceID string) (bool, error) {
	return true, nil
}
