package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/storage/db"
)

// AuditSink is the narrow slice of the audit service the PDP needs; it avoids
// an import cycle with internal/audit, which itself never needs to authorize
// anything.
type AuditSink interface {
	RecordAuthorization(ctx context.Context, req Request, dec Decision) error
}

var decisionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "authcore",
	Subsystem: "rbac",
	Name:      "authorize_duration_seconds",
	Help:      "Latency of PDP authorize() calls by cache source.",
	Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
}, []string{"source"})

func init() {
	prometheus.MustRegister(decisionLatency)
}

const l2TTL = 5 * time.Minute

// PDP is the Policy Decision Point: authorize(user, org, resource:action).
type PDP struct {
	db     *db.Queries
	kv     kvs.Store
	scope  ResourceScopeChecker
	audit  AuditSink
	l1     *l1Cache
	logger *slog.Logger
}

// New builds a PDP. scope may be nil, which defaults to AllowAllScope.
func New(queries *db.Queries, kv kvs.Store, scope ResourceScopeChecker, audit AuditSink, logger *slog.Logger) *PDP {
	if scope == nil {
		scope = AllowAllScope{}
	}
	return &PDP{db: queries, kv: kv, scope: scope, audit: audit, l1: newL1Cache(), logger: logger}
}

// Authorize is the single entry point every protected route and service
// method calls through. It never returns an error for "denied" - only for
// infrastructure failure, in which case the caller must fail closed.
func (p *PDP) Authorize(ctx context.Context, req Request) (Decision, error) {
	start := time.Now()
	dec, err := p.authorize(ctx, req)
	decisionLatency.WithLabelValues(dec.Source).Observe(time.Since(start).Seconds())

	if p.audit != nil {
		if auditErr := p.audit.RecordAuthorization(ctx, req, dec); auditErr != nil {
			p.logger.Error("authorization audit write failed", "error", auditErr)
		}
	}
	return dec, err
}

func (p *PDP) authorize(ctx context.Context, req Request) (Decision, error) {
	if err := ValidatePermissionName(req.permissionName()); err != nil {
		return Decision{Allowed: false, Reason: "invalid permission name", Source: "db"}, nil
	}

	// Membership gate: no membership, no decision - never reaches cache or DB
	// resolution for a non-member. Org role (member/admin/owner) governs
	// group/permission *management* only (see internal/api/middleware's
	// RequireOrgRole) and never short-circuits this decision - permissions
	// are granted exclusively via group membership, per the UserGroup ⋈
	// GroupPermission ⋈ Permission join below.
	if _, err := p.db.GetOrgMemberRole(ctx, req.UserID, req.OrgID); err == db.ErrNoRows {
		return Decision{Allowed: false, Reason: "not a member of organization", Source: "db"}, nil
	} else if err != nil {
		return Decision{Source: "db"}, fmt.Errorf("resolve membership: %w", err)
	}

	version, err := p.currentVersion(ctx, req.OrgID)
	if err != nil {
		return Decision{Source: "db"}, fmt.Errorf("resolve permission version: %w", err)
	}

	if ps, ok := p.l1.Get(req.UserID, req.OrgID); ok && ps.version == version {
		return p.evaluate(ctx, req, ps, "l1")
	}

	if ps, ok, err := p.getL2(ctx, req.UserID, req.OrgID, version); err != nil {
		p.logger.Warn("l2 permission cache read failed, falling back to db", "error", err)
	} else if ok {
		p.l1.Put(req.UserID, req.OrgID, ps)
		return p.evaluate(ctx, req, ps, "l2")
	}

	ps, err := p.resolveFromDB(ctx, req.UserID, req.OrgID, version)
	if err != nil {
		return Decision{Source: "db"}, fmt.Errorf("resolve permissions: %w", err)
	}
	p.l1.Put(req.UserID, req.OrgID, ps)
	if err := p.putL2(ctx, req.UserID, req.OrgID, ps); err != nil {
		p.logger.Warn("l2 permission cache write failed", "error", err)
	}
	return p.evaluate(ctx, req, ps, "db")
}

func (p *PDP) evaluate(ctx context.Context, req Request, ps permissionSet, source string) (Decision, error) {
	groups, ok := ps.names[req.permissionName()]
	if !ok {
		return Decision{Allowed: false, Reason: "no group grants this permission", Source: source}, nil
	}

	if req.ResourceID == "" {
		return Decision{Allowed: true, Reason: "granted via group membership", MatchedGroups: groups, Source: source}, nil
	}

	for _, g := range groups {
		inScope, err := p.scope.InScope(ctx, g, req.permissionName(), req.ResourceID)
		if err != nil {
			return Decision{Source: source}, fmt.Errorf("resource scope check: %w", err)
		}
		if inScope {
			return Decision{Allowed: true, Reason: "granted via group membership, resource in scope", MatchedGroups: []uuid.UUID{g}, Source: source}, nil
		}
	}
	return Decision{Allowed: false, Reason: "permission granted but resource out of scope", MatchedGroups: groups, Source: source}, nil
}

func (p *PDP) resolveFromDB(ctx context.Context, userID, orgID uuid.UUID, version int64) (permissionSet, error) {
	resolved, err := p.db.ResolveUserPermissions(ctx, userID, orgID)
	if err != nil {
		return permissionSet{}, err
	}

	names := make(map[string][]uuid.UUID)
	for _, r := range resolved {
		names[r.PermissionName] = append(names[r.PermissionName], r.GroupID)
	}
	return permissionSet{names: names, version: version, cachedAt: time.Now()}, nil
}

func (p *PDP) currentVersion(ctx context.Context, orgID uuid.UUID) (int64, error) {
	raw, err := p.kv.Get(ctx, kvs.PrefixAuthzVersion+orgID.String())
	if err == kvs.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// BumpVersion invalidates every cached permission set for orgID by advancing
// its version counter. Called after any grant, revoke, or group-membership
// change. L1 entries are not actively evicted across the fleet - they simply
// stop matching on next read and expire via their own TTL or version check.
// L2 entries carry the version they were resolved at and are treated as a
// miss when it differs from the current one.
func (p *PDP) BumpVersion(ctx context.Context, orgID uuid.UUID) error {
	_, err := p.kv.IncrTTL(ctx, kvs.PrefixAuthzVersion+orgID.String(), 24*time.Hour)
	return err
}

type l2Payload struct {
	Names   map[string][]string `json:"names"`
	Version int64               `json:"version"`
}

func (p *PDP) getL2(ctx context.Context, userID, orgID uuid.UUID, version int64) (permissionSet, bool, error) {
	key := l2Key(userID, orgID)
	raw, err := p.kv.Get(ctx, key)
	if err == kvs.ErrNotFound {
		return permissionSet{}, false, nil
	}
	if err != nil {
		return permissionSet{}, false, err
	}

	var payload l2Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return permissionSet{}, false, err
	}
	if payload.Version != version {
		return permissionSet{}, false, nil
	}

	names := make(map[string][]uuid.UUID, len(payload.Names))
	for perm, groupStrs := range payload.Names {
		ids := make([]uuid.UUID, 0, len(groupStrs))
		for _, s := range groupStrs {
			id, err := uuid.Parse(s)
			if err != nil {
				return permissionSet{}, false, err
			}
			ids = append(ids, id)
		}
		names[perm] = ids
	}

	return permissionSet{names: names, version: version, cachedAt: time.Now()}, true, nil
}

func (p *PDP) putL2(ctx context.Context, userID, orgID uuid.UUID, ps permissionSet) error {
	payload := l2Payload{Names: make(map[string][]string, len(ps.names)), Version: ps.version}
	for perm, groups := range ps.names {
		strs := make([]string, len(groups))
		for i, g := range groups {
			strs[i] = g.String()
		}
		payload.Names[perm] = strs
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.kv.SetTTL(ctx, l2Key(userID, orgID), string(raw), l2TTL)
}

func l2Key(userID, orgID uuid.UUID) string {
	return kvs.PrefixAuthzL2 + strings.Join([]string{userID.String(), orgID.String()}, ":")
}
