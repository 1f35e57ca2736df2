package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/laventecare/authcore/internal/audit"
	"github.com/laventecare/authcore/internal/config"
	"github.com/laventecare/authcore/internal/storage"
	"github.com/laventecare/authcore/internal/storage/db"
	"github.com/laventecare/authcore/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.AppEnv)

	pool, err := storage.NewPostgres(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := storage.New(pool)
	auditLogger := audit.NewDBLogger(pool, log)
	log.Info("janitor_started", "interval", "1h")

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	runJanitor(context.Background(), queries, auditLogger, cfg, log)

	for {
		select {
		case <-ticker.C:
			runJanitor(context.Background(), queries, auditLogger, cfg, log)
		case <-quit:
			log.Info("janitor_shutting_down")
			return
		}
	}
}

func runJanitor(ctx context.Context, q *db.Queries, auditLogger *audit.DBLogger, cfg config.Config, log *slog.Logger) {
	log.Info("janitor_cycle_start")

	if count, err := q.CleanExpiredRefreshTokens(ctx); err != nil {
		log.Error("janitor_refresh_tokens_failed", "error", err)
	} else if count > 0 {
		log.Info("janitor_refresh_tokens_cleaned", "deleted", count)
	}

	if count, err := q.CleanExpiredInvitations(ctx); err != nil {
		log.Error("janitor_invitations_failed", "error", err)
	} else if count > 0 {
		log.Info("janitor_invitations_cleaned", "deleted", count)
	}

	if count, err := q.CleanExpiredVerificationTokens(ctx); err != nil {
		log.Error("janitor_verification_tokens_failed", "error", err)
	} else if count > 0 {
		log.Info("janitor_verification_tokens_cleaned", "deleted", count)
	}

	if count, err := q.CleanExpiredUnverifiedUsers(ctx, cfg.UnverifiedAccountTTLDays); err != nil {
		log.Error("janitor_unverified_users_failed", "error", err)
	} else if count > 0 {
		log.Info("janitor_unverified_users_cleaned", "deleted", count)
	}

	// Snapshot the chain head, then verify the chain up to it before pruning -
	// a broken link here means tampering happened before the anchor was
	// taken, not as a result of the prune itself, and the prune is skipped.
	anchor, err := auditLogger.Snapshot(ctx)
	if err != nil {
		log.Error("janitor_audit_snapshot_failed", "error", err)
		return
	}
	if anchor.AnchorID == 0 {
		return
	}
	if res, err := auditLogger.Verify(ctx, 0, anchor.AnchorID); err != nil {
		log.Error("janitor_audit_verify_failed", "error", err)
		return
	} else if !res.Valid {
		log.Error("janitor_audit_chain_broken", "broken_at_id", res.BrokenAtID, "anchor_id", anchor.AnchorID)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.AuditRetentionDays)
	if pruned, err := auditLogger.Prune(ctx, cutoff, anchor.AnchorID); err != nil {
		log.Error("janitor_audit_prune_failed", "error", err)
	} else if pruned > 0 {
		log.Info("janitor_audit_pruned", "deleted", pruned, "anchor_id", anchor.AnchorID)
	}
}
