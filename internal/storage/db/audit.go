package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// GetLastDecisionHash returns the row_hash of the most recently inserted
// authorization_decisions row, or "" if the chain is empty (genesis row).
// Callers must run this in the same transaction as the subsequent
// InsertAuthorizationDecision, after taking the chain's advisory lock (see
// audit.DBLogger.RecordAuthorization), to avoid a race between two
// concurrent writers.
func (q *Queries) GetLastDecisionHash(ctx context.Context) (string, error) {
	var hash pgtype.Text
	err := q.db.QueryRow(ctx, `
		SELECT row_hash FROM authorization_decisions ORDER BY id DESC LIMIT 1
	`).Scan(&hash)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

type InsertDecisionParams struct {
	UserID        uuid.UUID
	OrgID         uuid.UUID
	Resource      string
	Action        string
	ResourceID    string
	Granted       bool
	Reason        string
	MatchedGroups []uuid.UUID
	CacheSource   string
	CorrelationID string
	IPAddress     string
	PriorHash     string
	RowHash       string
}

// InsertAuthorizationDecision appends one row to the hash chain. Callers
// compute PriorHash/RowHash themselves (see internal/audit/chain.go) so this
// layer stays a dumb append; it never recomputes or validates the hash.
func (q *Queries) InsertAuthorizationDecision(ctx context.Context, arg InsertDecisionParams) (AuthorizationDecision, error) {
	var resourceID pgtype.Text
	if arg.ResourceID != "" {
		resourceID = pgtype.Text{String: arg.ResourceID, Valid: true}
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO authorization_decisions
			(user_id, org_id, resource, action, resource_id, granted, reason,
			 matched_groups, cache_source, correlation_id, ip_address, prior_hash, row_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`, arg.UserID, arg.OrgID, arg.Resource, arg.Action, resourceID, arg.Granted, arg.Reason,
		arg.MatchedGroups, arg.CacheSource, arg.CorrelationID, arg.IPAddress, arg.PriorHash, arg.RowHash)

	d := AuthorizationDecision{
		UserID: arg.UserID, OrgID: arg.OrgID, Resource: arg.Resource, Action: arg.Action,
		ResourceID: resourceID, Granted: arg.Granted, Reason: arg.Reason,
		MatchedGroups: arg.MatchedGroups, CacheSource: arg.CacheSource,
		CorrelationID: arg.CorrelationID, IPAddress: arg.IPAddress,
		PriorHash: arg.PriorHash, RowHash: arg.RowHash,
	}
	err := row.Scan(&d.ID, &d.CreatedAt)
	return d, err
}

// GetDecisionRange returns rows [fromID, toID] ordered by id, the unit the
// chain verifier walks over.
func (q *Queries) GetDecisionRange(ctx context.Context, fromID, toID int64) ([]AuthorizationDecision, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, created_at, user_id, org_id, resource, action, resource_id, granted,
		       reason, matched_groups, cache_source, correlation_id, ip_address, prior_hash, row_hash
		FROM authorization_decisions
		WHERE id BETWEEN $1 AND $2
		ORDER BY id ASC
	`, fromID, toID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

type QueryDecisionsParams struct {
	UserID     uuid.UUID // zero value = any
	OrgID      uuid.UUID // zero value = any
	Resource   string
	Action     string
	Granted    *bool
	Since      time.Time
	Until      time.Time
	ResourceID string
	Limit      int32
}

// QueryDecisions supports the filtered lookups operators need (by user, org,
// permission, result, time range, resource id); it never includes
// correlation id in the WHERE clause itself since that's an exact-match
// convenience best done client-side against a narrower window.
func (q *Queries) QueryDecisions(ctx context.Context, arg QueryDecisionsParams) ([]AuthorizationDecision, error) {
	sql := `
		SELECT id, created_at, user_id, org_id, resource, action, resource_id, granted,
		       reason, matched_groups, cache_source, correlation_id, ip_address, prior_hash, row_hash
		FROM authorization_decisions
		WHERE ($1 = '00000000-0000-0000-0000-000000000000' OR user_id = $1)
		  AND ($2 = '00000000-0000-0000-0000-000000000000' OR org_id = $2)
		  AND ($3 = '' OR resource = $3)
		  AND ($4 = '' OR action = $4)
		  AND ($5::boolean IS NULL OR granted = $5)
		  AND ($6::timestamptz IS NULL OR created_at >= $6)
		  AND ($7::timestamptz IS NULL OR created_at <= $7)
		  AND ($8 = '' OR resource_id = $8)
		ORDER BY id DESC
		LIMIT $9
	`
	limit := arg.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var since, until pgtype.Timestamptz
	if !arg.Since.IsZero() {
		since = pgtype.Timestamptz{Time: arg.Since, Valid: true}
	}
	if !arg.Until.IsZero() {
		until = pgtype.Timestamptz{Time: arg.Until, Valid: true}
	}

	rows, err := q.db.Query(ctx, sql, arg.UserID, arg.OrgID, arg.Resource, arg.Action,
		arg.Granted, since, until, arg.ResourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecisions(rows pgx.Rows) ([]AuthorizationDecision, error) {
	var out []AuthorizationDecision
	for rows.Next() {
		var d AuthorizationDecision
		err := rows.Scan(&d.ID, &d.CreatedAt, &d.UserID, &d.OrgID, &d.Resource, &d.Action,
			&d.ResourceID, &d.Granted, &d.Reason, &d.MatchedGroups, &d.CacheSource,
			&d.CorrelationID, &d.IPAddress, &d.PriorHash, &d.RowHash)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MaxDecisionID reports the current chain head id, 0 if the chain is empty.
func (q *Queries) MaxDecisionID(ctx context.Context) (int64, error) {
	var id pgtype.Int8
	err := q.db.QueryRow(ctx, `SELECT max(id) FROM authorization_decisions`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// PruneDecisionsBefore deletes rows older than cutoff, but only below
// anchorID: the retained chain must still start from a row whose prior_hash
// is independently recorded (see internal/audit's snapshot), so pruning never
// walks past the last verified anchor.
func (q *Queries) PruneDecisionsBefore(ctx context.Context, cutoff time.Time, anchorID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM authorization_decisions WHERE created_at < $1 AND id < $2
	`, cutoff, anchorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
