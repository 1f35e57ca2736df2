// Package rbac implements the Policy Decision Point: authorize(user, org,
// resource:action) -> allow/deny, backed by a two-tier cache (in-process L1,
// KVS-backed L2) in front of the group-permission resolution query.
package rbac

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// permissionNamePattern matches the canonical "resource:action" form, e.g.
// "events:create" or "billing:refund".
var permissionNamePattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

// ValidatePermissionName reports whether name matches resource:action.
func ValidatePermissionName(name string) error {
	if !permissionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid permission name %q: must match resource:action", name)
	}
	return nil
}

// Decision is the outcome of one authorize() call, carried through to the
// audit logger regardless of whether it was served from cache or DB.
type Decision struct {
	Allowed       bool
	Reason        string
	MatchedGroups []uuid.UUID
	Source        string // "l1", "l2", or "db"
}

// Request is the input to Authorize.
type Request struct {
	UserID        uuid.UUID
	OrgID         uuid.UUID
	Resource      string
	Action        string
	ResourceID    string // optional, for a pluggable ResourceScopeChecker
	CorrelationID string
	IPAddress     string
}

func (r Request) permissionName() string {
	return r.Resource + ":" + r.Action
}
