package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/storage/db"
)

// CreateInvitation invites email to join orgID with role. The caller (an
// existing org admin/owner) is checked by the RBAC middleware before this is
// reached, not here.
func (s *Service) CreateInvitation(ctx context.Context, orgID uuid.UUID, email string, role db.OrgRole, orgName string) error {
	raw, err := crypto.GenerateOpaqueToken(24)
	if err != nil {
		return err
	}

	q := s.queries()
	_, err = q.CreateInvitation(ctx, db.CreateInvitationParams{
		Email: email, TokenHash: crypto.HashToken(raw), OrgID: orgID, Role: role,
		ExpiresAt: time.Now().Add(s.cfg.InvitationTTL),
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendInvitation(ctx, email, orgName, raw); err != nil {
		s.logger.Error("failed to send invitation email", "error", err, "org_id", orgID)
	}
	return nil
}

// ValidateInvitation reports whether rawToken corresponds to an unexpired
// invitation, without consuming it.
func (s *Service) ValidateInvitation(ctx context.Context, rawToken string) (db.Invitation, error) {
	inv, err := s.queries().GetInvitationByTokenHash(ctx, crypto.HashToken(rawToken))
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Invitation{}, apperr.New(apperr.KindInvalidToken, "invitation is invalid or expired")
	}
	return inv, err
}

type RegisterWithInviteInput struct {
	Token    string
	Username string
	Password string
}

// RegisterWithInvite creates a new account directly into the inviting
// organization, pre-verified (the invitation itself proves control of the
// invited email address) and consumes the invitation.
func (s *Service) RegisterWithInvite(ctx context.Context, in RegisterWithInviteInput) (db.User, error) {
	inv, err := s.ValidateInvitation(ctx, in.Token)
	if err != nil {
		return db.User{}, err
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return db.User{}, err
	}

	q := s.queries()
	if _, err := q.GetUserByEmail(ctx, inv.Email); err == nil {
		return db.User{}, apperr.New(apperr.KindConflictEmail, "an account with this email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return db.User{}, err
	}

	hash, err := s.hashPool.Do(ctx, func() (string, error) { return s.hasher.Hash(in.Password) })
	if err != nil {
		return db.User{}, err
	}

	user, err := q.CreateUser(ctx, db.CreateUserParams{Email: inv.Email, Username: in.Username, PasswordHash: hash})
	if err != nil {
		return db.User{}, err
	}
	if err := q.VerifyUserEmail(ctx, user.ID); err != nil {
		return db.User{}, err
	}
	if err := q.AddOrgMember(ctx, user.ID, inv.OrgID, inv.Role); err != nil {
		return db.User{}, err
	}
	if err := q.DeleteInvitation(ctx, inv.ID); err != nil {
		s.logger.Warn("failed to delete consumed invitation", "error", err, "invitation_id", inv.ID)
	}

	user.Verified = true
	return user, nil
}
