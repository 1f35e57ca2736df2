package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage/db"
)

// Service is the interface the rest of the application depends on; DBLogger
// is its only production implementation.
type Service interface {
	rbac.AuditSink
	Query(ctx context.Context, params db.QueryDecisionsParams) ([]db.AuthorizationDecision, error)
	Verify(ctx context.Context, fromID, toID int64) (VerifyResult, error)
}

// DBLogger appends authorization decisions to the hash chain, falling back to
// structured stdout logging if the database write itself fails - losing an
// audit row must never block the request whose decision it describes.
type DBLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDBLogger(pool *pgxpool.Pool, logger *slog.Logger) *DBLogger {
	return &DBLogger{pool: pool, logger: logger}
}

// RecordAuthorization appends one row to the chain. The prior-hash lookup and
// the insert run in the same transaction so two concurrent decisions can
// never both read the same prior hash and race to extend the chain from it.
func (l *DBLogger) RecordAuthorization(ctx context.Context, req rbac.Request, dec rbac.Decision) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := db.New(tx)

	// The transaction-scoped advisory lock serializes chain writers: the next
	// writer cannot read the head until this transaction ends.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('authorization_decisions_chain'))`); err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("lock chain head: %w", err)
	}

	priorHash, err := q.GetLastDecisionHash(ctx)
	if err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("read chain head: %w", err)
	}

	fields := toFields(req.UserID, req.OrgID, req.Resource, req.Action, req.ResourceID,
		dec.Allowed, dec.Reason, dec.MatchedGroups, dec.Source, req.CorrelationID, req.IPAddress)

	rowHash, err := computeRowHash(priorHash, fields)
	if err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("compute row hash: %w", err)
	}

	_, err = q.InsertAuthorizationDecision(ctx, db.InsertDecisionParams{
		UserID: req.UserID, OrgID: req.OrgID, Resource: req.Resource, Action: req.Action,
		ResourceID: req.ResourceID, Granted: dec.Allowed, Reason: dec.Reason,
		MatchedGroups: dec.MatchedGroups, CacheSource: dec.Source,
		CorrelationID: req.CorrelationID, IPAddress: req.IPAddress,
		PriorHash: priorHash, RowHash: rowHash,
	})
	if err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("insert decision: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.fallbackLog(req, dec, err)
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func (l *DBLogger) fallbackLog(req rbac.Request, dec rbac.Decision, cause error) {
	l.logger.Error("audit log write failed, falling back to stdout",
		"error", cause,
		"user_id", req.UserID,
		"org_id", req.OrgID,
		"resource", req.Resource,
		"action", req.Action,
		"granted", dec.Allowed,
		"reason", dec.Reason,
		"correlation_id", req.CorrelationID,
	)
}

func (l *DBLogger) Query(ctx context.Context, params db.QueryDecisionsParams) ([]db.AuthorizationDecision, error) {
	return db.New(l.pool).QueryDecisions(ctx, params)
}

// Verify recomputes the chain over [fromID, toID] and reports the first
// broken link, if any.
func (l *DBLogger) Verify(ctx context.Context, fromID, toID int64) (VerifyResult, error) {
	rows, err := db.New(l.pool).GetDecisionRange(ctx, fromID, toID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load decision range: %w", err)
	}
	return VerifyRange(rows), nil
}

// Anchor is an out-of-band record of a chain-head hash at a point in time,
// used to bound retention pruning: rows may only be deleted below an anchor
// that was itself verified and persisted outside the table being pruned.
type Anchor struct {
	AnchorID  int64
	RowHash   string
	VerifiedAt time.Time
}

// Snapshot returns the current chain head as an Anchor suitable for storing
// externally (e.g. logged at Info level, or written to a separate
// write-once store) before a prune runs.
func (l *DBLogger) Snapshot(ctx context.Context) (Anchor, error) {
	q := db.New(l.pool)
	maxID, err := q.MaxDecisionID(ctx)
	if err != nil {
		return Anchor{}, err
	}
	if maxID == 0 {
		return Anchor{}, nil
	}
	hash, err := q.GetLastDecisionHash(ctx)
	if err != nil {
		return Anchor{}, err
	}
	return Anchor{AnchorID: maxID, RowHash: hash, VerifiedAt: time.Now()}, nil
}

// Prune deletes rows older than cutoff, never past anchorID, per Snapshot's
// contract above.
func (l *DBLogger) Prune(ctx context.Context, cutoff time.Time, anchorID int64) (int64, error) {
	return db.New(l.pool).PruneDecisionsBefore(ctx, cutoff, anchorID)
}
