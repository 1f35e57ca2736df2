// Package db holds the relational schema's Go-side row types and the
// parameterized-query layer (Queries) that executes against them. It is
// hand-written in the shape sqlc would generate, since the stored-procedure
// layer is an implementation choice (spec.md §9), not a contract.
package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UserStatus enumerates account lifecycle states.
type UserStatus string

const (
	UserStatusActive           UserStatus = "active"
	UserStatusTemporarilyBanned UserStatus = "temporarily_banned"
	UserStatusPermanentlyBanned UserStatus = "permanently_banned"
	UserStatusDeleted          UserStatus = "deleted"
)

// OrgRole enumerates the membership ladder: member -> admin -> owner.
type OrgRole string

const (
	RoleMember OrgRole = "member"
	RoleAdmin  OrgRole = "admin"
	RoleOwner  OrgRole = "owner"
)

// User is the identity row.
type User struct {
	ID                uuid.UUID
	Email             string
	Username          string
	PasswordHash      string
	Verified          bool
	Status            UserStatus
	BanExpiresAt      pgtype.Timestamptz
	TwoFactorEnabled  bool
	TwoFactorSecret   pgtype.Text // AES-GCM sealed, "vN:..."
	FailedLoginCount  int32
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BackupCode is a single hashed, single-use 2FA recovery code.
type BackupCode struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Hash   string
	UsedAt pgtype.Timestamptz
}

// Organization is the tenant boundary.
type Organization struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Status    string
	DeletedAt pgtype.Timestamptz
	CreatedAt time.Time
}

// OrgMember is a user<->organization membership with a ladder role.
type OrgMember struct {
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Role      OrgRole
	CreatedAt time.Time
}

// Permission is a system-wide (resource, action) pair.
type Permission struct {
	ID          uuid.UUID
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// Name returns the canonical "resource:action" identifier.
func (p Permission) Name() string {
	return p.Resource + ":" + p.Action
}

// Group is a named, org-scoped collection of users.
type Group struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// UserGroup is a user<->group membership.
type UserGroup struct {
	UserID  uuid.UUID
	GroupID uuid.UUID
}

// GroupPermission is a grant of a permission to a group.
type GroupPermission struct {
	GroupID      uuid.UUID
	PermissionID uuid.UUID
	GrantedBy    uuid.UUID
	GrantedAt    time.Time
}

// PermissionAuditAction enumerates the grant/revoke audit verbs.
type PermissionAuditAction string

const (
	PermissionAuditGrant  PermissionAuditAction = "grant"
	PermissionAuditRevoke PermissionAuditAction = "revoke"
)

// PermissionAuditEntry records a grant/revoke of a permission to a group.
type PermissionAuditEntry struct {
	ID           uuid.UUID
	Action       PermissionAuditAction
	GroupID      uuid.UUID
	PermissionID uuid.UUID
	ActorID      uuid.UUID
	Details      []byte // JSON
	CreatedAt    time.Time
}

// RefreshToken is server-side refresh-token metadata. The raw token value is
// never stored; TokenHash is its SHA-256 hex digest.
type RefreshToken struct {
	ID        uuid.UUID
	JTI       string
	UserID    uuid.UUID
	TokenHash string
	FamilyID  uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt pgtype.Timestamptz
	Revoked   bool
}

// VerificationTokenType enumerates the single-use KVS-independent tokens kept
// in the relational store for durability across restarts.
type VerificationTokenType string

const (
	VerificationTypeEmailVerify   VerificationTokenType = "email_verify"
	VerificationTypePasswordReset VerificationTokenType = "password_reset"
)

// VerificationToken is a single-use hashed token (email verify / password reset).
type VerificationToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	Type      VerificationTokenType
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthorizationDecision is one row of the append-only, hash-chained audit log.
type AuthorizationDecision struct {
	ID            int64
	CreatedAt     time.Time
	UserID        uuid.UUID
	OrgID         uuid.UUID
	Resource      string
	Action        string
	ResourceID    pgtype.Text
	Granted       bool
	Reason        string
	MatchedGroups []uuid.UUID
	CacheSource   string // "l1" | "l2" | "db"
	CorrelationID string
	IPAddress     string
	PriorHash     string
	RowHash       string
}

// Invitation is a pending org invitation by email.
type Invitation struct {
	ID        uuid.UUID
	Email     string
	TokenHash string
	OrgID     uuid.UUID
	Role      OrgRole
	ExpiresAt time.Time
	CreatedAt time.Time
}
