// Package authsvc implements the credential, session, two-factor, recovery,
// and invitation lifecycle: everything upstream of the RBAC PDP.
package authsvc

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/notify"
	"github.com/laventecare/authcore/internal/storage/db"
)

// Config holds the tunables the service reads once at construction, mirroring
// the shape of config.Config without importing the whole app config package.
type Config struct {
	AllowPublicRegistration bool
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	UnverifiedAccountTTLDays int

	BackupCodeCount    int
	TwoFactorCodeTTL   time.Duration
	TwoFactorMaxTries  int64
	TwoFactorLockout   time.Duration
	PasswordResetTTL   time.Duration
	EmailVerifyTTL     time.Duration
	InvitationTTL      time.Duration
	MaxLoginFailures   int32
	LoginLockoutPeriod time.Duration
}

// DefaultConfig returns sane defaults for every tunable not sourced from
// config.Config directly.
func DefaultConfig() Config {
	return Config{
		AllowPublicRegistration: true,
		AccessTokenTTL:          15 * time.Minute,
		RefreshTokenTTL:         30 * 24 * time.Hour,
		UnverifiedAccountTTLDays: 7,
		BackupCodeCount:          10,
		TwoFactorCodeTTL:         5 * time.Minute,
		TwoFactorMaxTries:        3,
		TwoFactorLockout:         15 * time.Minute,
		PasswordResetTTL:         1 * time.Hour,
		EmailVerifyTTL:           24 * time.Hour,
		InvitationTTL:            7 * 24 * time.Hour,
		MaxLoginFailures:         10,
		LoginLockoutPeriod:       15 * time.Minute,
	}
}

// Service wires every dependency the credential lifecycle needs. Handlers in
// internal/api call through it; it never touches net/http itself.
type Service struct {
	pool     *pgxpool.Pool
	kv       kvs.Store
	hasher   crypto.PasswordHasher
	hashPool *crypto.HashPool
	tokens   crypto.TokenProvider
	totpBox  *crypto.TOTPSecretBox
	mailer   notify.EmailSender
	logger   *slog.Logger
	cfg      Config
}

func New(pool *pgxpool.Pool, kv kvs.Store, hasher crypto.PasswordHasher, hashPool *crypto.HashPool,
	tokens crypto.TokenProvider, totpBox *crypto.TOTPSecretBox, mailer notify.EmailSender,
	logger *slog.Logger, cfg Config) *Service {
	return &Service{
		pool: pool, kv: kv, hasher: hasher, hashPool: hashPool, tokens: tokens,
		totpBox: totpBox, mailer: mailer, logger: logger, cfg: cfg,
	}
}

func (s *Service) queries() *db.Queries {
	return db.New(s.pool)
}

// pgtypeFuture builds a valid Timestamptz set d in the future, used for ban
// expiries computed at write time rather than in SQL.
func pgtypeFuture(d time.Duration) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now().Add(d), Valid: true}
}
