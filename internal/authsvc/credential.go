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

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates an unverified account and sends a verification email.
// An email that is already registered yields a conflict_email error, so unlike
// the enumeration-safe reset/verify flows, registration does reveal that an
// email is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (db.User, error) {
	if !s.cfg.AllowPublicRegistration {
		return db.User{}, apperr.New(apperr.KindValidationFailed, "public registration is disabled")
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return db.User{}, err
	}

	q := s.queries()
	if _, err := q.GetUserByEmail(ctx, in.Email); err == nil {
		return db.User{}, apperr.New(apperr.KindConflictEmail, "an account with this email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return db.User{}, err
	}

	hash, err := s.hashPool.Do(ctx, func() (string, error) { return s.hasher.Hash(in.Password) })
	if err != nil {
		return db.User{}, err
	}

	user, err := q.CreateUser(ctx, db.CreateUserParams{Email: in.Email, Username: in.Username, PasswordHash: hash})
	if err != nil {
		return db.User{}, err
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.logger.Error("failed to send verification email", "error", err, "user_id", user.ID)
	}
	return user, nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, user db.User) error {
	raw, err := crypto.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}

	q := s.queries()
	if err := q.DeleteVerificationTokensForUser(ctx, user.ID, db.VerificationTypeEmailVerify); err != nil {
		return err
	}
	_, err = q.CreateVerificationToken(ctx, db.CreateVerificationTokenParams{
		UserID: user.ID, TokenHash: crypto.HashToken(raw), Type: db.VerificationTypeEmailVerify,
		ExpiresAt: time.Now().Add(s.cfg.EmailVerifyTTL),
	})
	if err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, user.Email, raw)
}

// VerifyEmail redeems a verification token sent by Register.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	q := s.queries()
	vt, err := q.GetVerificationToken(ctx, crypto.HashToken(rawToken), db.VerificationTypeEmailVerify)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindInvalidToken, "verification token is invalid or expired")
	}
	if err != nil {
		return err
	}

	if err := q.VerifyUserEmail(ctx, vt.UserID); err != nil {
		return err
	}
	return q.DeleteVerificationToken(ctx, vt.ID)
}

type LoginInput struct {
	Email      string
	Password   string
	OrgID      uuid.UUID // zero value: caller must pick from Memberships in the result
	IPAddress  string
	UserAgent  string
}

type LoginResult struct {
	RequiresTwoFactor bool
	PreAuthToken      string // opaque, redeemed via CompleteTwoFactorLogin
	AccessToken       string
	RefreshToken      string
	Memberships       []db.Organization // populated when OrgID was not given and user does not belong to exactly one org
	User              db.User
}

// Login verifies credentials and either completes the session directly,
// returns a pre-auth token pending a second factor, or - when no OrgID was
// given and the user does not belong to exactly one org - returns the user's
// Memberships without issuing a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	q := s.queries()

	user, err := q.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, "invalid email or password")
	}
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.checkAccountStatus(user); err != nil {
		return LoginResult{}, err
	}

	compareErr := s.hasher.Compare(user.PasswordHash, in.Password)
	if compareErr != nil {
		count, recErr := q.RecordLoginFailure(ctx, user.ID)
		if recErr == nil && count >= s.cfg.MaxLoginFailures {
			_ = q.SetUserStatus(ctx, user.ID, db.UserStatusTemporarilyBanned, pgtypeFuture(s.cfg.LoginLockoutPeriod))
		}
		return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, "invalid email or password")
	}

	if !user.Verified {
		return LoginResult{}, apperr.New(apperr.KindAccountNotVerified, "please verify your email before logging in")
	}

	if err := q.ResetLoginFailures(ctx, user.ID); err != nil {
		s.logger.Warn("failed to reset login failure counter", "error", err, "user_id", user.ID)
	}

	orgID := in.OrgID
	if orgID == uuid.Nil {
		orgs, err := q.ListUserOrganizations(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if len(orgs) != 1 {
			return LoginResult{User: user, Memberships: orgs}, nil
		}
		orgID = orgs[0].ID
	}

	if _, err := q.GetOrgMemberRole(ctx, user.ID, orgID); err != nil {
		return LoginResult{}, apperr.New(apperr.KindNotAMember, "not a member of this organization")
	}

	if user.TwoFactorEnabled {
		preAuth, err := s.issuePreAuthToken(ctx, user.ID, orgID, user.Email)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{RequiresTwoFactor: true, PreAuthToken: preAuth, User: user}, nil
	}

	access, refresh, err := s.issueSession(ctx, user.ID, orgID, in.IPAddress, in.UserAgent)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

func (s *Service) checkAccountStatus(user db.User) error {
	switch user.Status {
	case db.UserStatusPermanentlyBanned:
		return apperr.New(apperr.KindAccountBanned, "this account has been permanently banned")
	case db.UserStatusTemporarilyBanned:
		if user.BanExpiresAt.Valid && time.Now().Before(user.BanExpiresAt.Time) {
			return apperr.New(apperr.KindAccountBanned, "this account is temporarily locked")
		}
	case db.UserStatusDeleted:
		return apperr.New(apperr.KindInvalidCredentials, "invalid email or password")
	}
	return nil
}

// ChangePassword requires the current password and invalidates every
// outstanding refresh token except currentRefreshToken, the session making
// this very request - the caller shouldn't have to log back in immediately
// after changing their own password.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, currentRefreshToken string) error {
	q := s.queries()
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		return apperr.New(apperr.KindInvalidCredentials, "current password is incorrect")
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := s.hashPool.Do(ctx, func() (string, error) { return s.hasher.Hash(newPassword) })
	if err != nil {
		return err
	}
	if err := q.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}

	tokens, err := q.ListUserSessions(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list sessions for revocation after password change", "error", err, "user_id", userID)
		return nil
	}
	currentHash := crypto.HashToken(currentRefreshToken)
	for _, t := range tokens {
		if t.TokenHash == currentHash {
			continue
		}
		if err := q.RevokeRefreshToken(ctx, t.ID); err != nil {
			s.logger.Warn("failed to revoke session after password change", "error", err, "token_id", t.ID)
		}
	}
	return nil
}
