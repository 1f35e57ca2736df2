package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// denyScope refuses every resource, used to exercise the out-of-scope branch
// of evaluate() without a real ResourceScopeChecker implementation.
type denyScope struct{}

func (denyScope) InScope(ctx context.Context, groupID uuid.UUID, permission, resourceID string) (bool, error) {
	return false, nil
}

func TestPDP_Evaluate_GrantedViaGroupMembership(t *testing.T) {
	p := &PDP{scope: AllowAllScope{}}
	groupID := uuid.New()
	req := Request{UserID: uuid.New(), OrgID: uuid.New(), Resource: "events", Action: "create"}
	ps := permissionSet{
		names:    map[string][]uuid.UUID{"events:create": {groupID}},
		version:  1,
		cachedAt: time.Now(),
	}

	dec, err := p.evaluate(context.Background(), req, ps, "l1")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	require.Equal(t, []uuid.UUID{groupID}, dec.MatchedGroups)
	require.Equal(t, "l1", dec.Source)
}

func TestPDP_Evaluate_DeniedWhenNoGroupGrantsPermission(t *testing.T) {
	p := &PDP{scope: AllowAllScope{}}
	req := Request{UserID: uuid.New(), OrgID: uuid.New(), Resource: "billing", Action: "refund"}
	ps := permissionSet{
		names:    map[string][]uuid.UUID{"events:create": {uuid.New()}},
		version:  1,
		cachedAt: time.Now(),
	}

	dec, err := p.evaluate(context.Background(), req, ps, "db")
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, "no group grants this permission", dec.Reason)
}

// TestPDP_Evaluate_NoRoleShortCircuit pins the invariant a maintainer review
// once found broken: a permission set with zero matching groups is always
// denied, regardless of what org role the caller holds - role only gates
// group/permission management (see internal/api/middleware.RequireOrgRole),
// never this decision. There is deliberately no "role" field anywhere on
// Request or permissionSet for evaluate() to branch on.
func TestPDP_Evaluate_NoRoleShortCircuit(t *testing.T) {
	p := &PDP{scope: AllowAllScope{}}
	req := Request{UserID: uuid.New(), OrgID: uuid.New(), Resource: "org", Action: "delete"}
	ps := permissionSet{names: map[string][]uuid.UUID{}, version: 1, cachedAt: time.Now()}

	dec, err := p.evaluate(context.Background(), req, ps, "db")
	require.NoError(t, err)
	require.False(t, dec.Allowed, "an empty permission set must deny even the org's own owner/admin")
}

func TestPDP_Evaluate_ResourceInScope(t *testing.T) {
	p := &PDP{scope: AllowAllScope{}}
	groupID := uuid.New()
	req := Request{UserID: uuid.New(), OrgID: uuid.New(), Resource: "projects", Action: "edit", ResourceID: "proj-1"}
	ps := permissionSet{names: map[string][]uuid.UUID{"projects:edit": {groupID}}, version: 1, cachedAt: time.Now()}

	dec, err := p.evaluate(context.Background(), req, ps, "db")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	require.Equal(t, []uuid.UUID{groupID}, dec.MatchedGroups)
}

func TestPDP_Evaluate_ResourceOutOfScope(t *testing.T) {
	p := &PDP{scope: denyScope{}}
	groupID := uuid.New()
	req := Request{UserID: uuid.New(), OrgID: uuid.New(), Resource: "projects", Action: "edit", ResourceID: "proj-1"}
	ps := permissionSet{names: map[string][]uuid.UUID{"projects:edit": {groupID}}, version: 1, cachedAt: time.Now()}

	dec, err := p.evaluate(context.Background(), req, ps, "db")
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, "permission granted but resource out of scope", dec.Reason)
}

func TestL2Key_DeterministicPerUserOrgPair(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	require.Equal(t, l2Key(userID, orgID), l2Key(userID, orgID))
	require.NotEqual(t, l2Key(userID, orgID), l2Key(uuid.New(), orgID))
}
