package authsvc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/storage/db"
)

const totpIssuer = "AuthCore"

// preAuthSession is what's stashed in the KVS between "password verified,
// 2FA pending" and "2FA verified, session issued".
type preAuthSession struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
}

func (s *Service) issuePreAuthToken(ctx context.Context, userID, orgID uuid.UUID, email string) (string, error) {
	token, err := crypto.GenerateOpaqueToken(24)
	if err != nil {
		return "", err
	}
	value := fmt.Sprintf("%s:%s", userID, orgID)
	if err := s.kv.SetTTL(ctx, kvs.PrefixTwoFactorSess+token, value, 5*time.Minute); err != nil {
		return "", err
	}

	if err := s.sendEmailedTwoFactorCode(ctx, userID, email); err != nil {
		s.logger.Error("failed to send emailed two-factor code", "error", err, "user_id", userID)
	}
	return token, nil
}

// twoFactorEmailCodeKey is the "2fa:{user}:{purpose}" KVS family: a fallback
// one-time code for holders who can't reach their authenticator app.
func twoFactorEmailCodeKey(userID uuid.UUID) string {
	return kvs.PrefixTwoFactorCode + userID.String() + ":login"
}

func (s *Service) sendEmailedTwoFactorCode(ctx context.Context, userID uuid.UUID, email string) error {
	code, err := crypto.GenerateNumericCode(6)
	if err != nil {
		return err
	}
	if err := s.kv.SetTTL(ctx, twoFactorEmailCodeKey(userID), code, s.cfg.TwoFactorCodeTTL); err != nil {
		return err
	}
	return s.mailer.SendMFACode(ctx, email, code)
}

func (s *Service) loadPreAuthSession(ctx context.Context, token string) (preAuthSession, error) {
	raw, err := s.kv.Get(ctx, kvs.PrefixTwoFactorSess+token)
	if err == kvs.ErrNotFound {
		return preAuthSession{}, apperr.New(apperr.KindInvalidToken, "two-factor session has expired, please log in again")
	}
	if err != nil {
		return preAuthSession{}, err
	}

	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return preAuthSession{}, apperr.New(apperr.KindInvalidToken, "corrupt two-factor session")
	}
	userID, err := uuid.Parse(raw[:idx])
	if err != nil {
		return preAuthSession{}, apperr.New(apperr.KindInvalidToken, "corrupt two-factor session")
	}
	orgID, err := uuid.Parse(raw[idx+1:])
	if err != nil {
		return preAuthSession{}, apperr.New(apperr.KindInvalidToken, "corrupt two-factor session")
	}
	return preAuthSession{UserID: userID, OrgID: orgID}, nil
}

// EnableTwoFactor generates a new TOTP secret for userID and returns the
// otpauth:// URL for QR rendering. The secret is not yet active - the caller
// must confirm with ConfirmTwoFactor before it takes effect.
func (s *Service) EnableTwoFactor(ctx context.Context, userID uuid.UUID, accountName string) (otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
		Period:      30,
	})
	if err != nil {
		return "", err
	}

	sealed, err := s.totpBox.Encrypt(key.Secret())
	if err != nil {
		return "", err
	}

	if err := s.queries().SetTwoFactorSecret(ctx, userID, sealed); err != nil {
		return "", err
	}
	return key.URL(), nil
}

// ConfirmTwoFactor validates the first code from the authenticator app,
// activates 2FA, and returns a fresh set of backup codes (shown to the user
// exactly once).
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	q := s.queries()
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorSecret.Valid {
		return nil, apperr.New(apperr.KindValidationFailed, "no pending two-factor setup for this account")
	}

	secret, err := s.totpBox.Decrypt(user.TwoFactorSecret.String)
	if err != nil {
		return nil, err
	}
	if ok, _ := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1}); !ok {
		return nil, apperr.New(apperr.KindTwoFactorInvalid, "invalid verification code")
	}

	if err := q.EnableTwoFactor(ctx, userID); err != nil {
		return nil, err
	}

	codes, err := crypto.GenerateBackupCodes(s.cfg.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = crypto.HashBackupCode(c)
	}
	if err := q.CreateBackupCodes(ctx, userID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// DisableTwoFactor requires the current password plus a valid second-factor
// code (TOTP, emailed code, or backup code) as a step-up check before turning
// 2FA off - the password alone proves "something you know", not possession
// of the second factor being removed.
func (s *Service) DisableTwoFactor(ctx context.Context, userID uuid.UUID, password, code string) error {
	q := s.queries()
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return apperr.New(apperr.KindInvalidCredentials, "current password is incorrect")
	}

	valid, err := s.verifyTwoFactorCode(ctx, user, code)
	if err != nil {
		return err
	}
	if !valid {
		return apperr.New(apperr.KindTwoFactorInvalid, "invalid verification code")
	}

	return q.DisableTwoFactor(ctx, userID)
}

// CompleteTwoFactorLogin redeems a pre-auth token plus a TOTP, emailed, or
// backup code, issuing a full session on success. Three consecutive failed
// verifications within TwoFactorLockout of the first one lock the user out of
// two-factor login until that window ends and end the pre-auth session; a
// successful verification resets the counter.
func (s *Service) CompleteTwoFactorLogin(ctx context.Context, preAuthToken, code, ip, userAgent string) (LoginResult, error) {
	sess, err := s.loadPreAuthSession(ctx, preAuthToken)
	if err != nil {
		return LoginResult{}, err
	}

	q := s.queries()
	user, err := q.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return LoginResult{}, err
	}

	attemptsKey := kvs.PrefixAttempts + sess.UserID.String() + ":login"
	if raw, err := s.kv.Get(ctx, attemptsKey); err == nil {
		if n, _ := strconv.ParseInt(raw, 10, 64); n >= s.cfg.TwoFactorMaxTries {
			return LoginResult{}, apperr.New(apperr.KindTwoFactorLocked, "too many failed attempts, please try again later")
		}
	}

	valid, err := s.verifyTwoFactorCode(ctx, user, code)
	if err != nil {
		return LoginResult{}, err
	}

	if !valid {
		attempts, err := s.kv.IncrTTL(ctx, attemptsKey, s.cfg.TwoFactorLockout)
		if err != nil {
			return LoginResult{}, err
		}
		if attempts >= s.cfg.TwoFactorMaxTries {
			_ = s.kv.Del(ctx, kvs.PrefixTwoFactorSess+preAuthToken)
			return LoginResult{}, apperr.New(apperr.KindTwoFactorLocked, "too many failed attempts, please try again later")
		}
		return LoginResult{}, apperr.New(apperr.KindTwoFactorInvalid, "invalid verification code")
	}

	_ = s.kv.Del(ctx, kvs.PrefixTwoFactorSess+preAuthToken)
	_ = s.kv.Del(ctx, attemptsKey)

	access, refresh, err := s.issueSession(ctx, sess.UserID, sess.OrgID, ip, userAgent)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// verifyTwoFactorCode tries code as a TOTP code, then the emailed one-time
// code, then a backup code - the three verification methods spec'd for 2FA.
func (s *Service) verifyTwoFactorCode(ctx context.Context, user db.User, code string) (bool, error) {
	if user.TwoFactorSecret.Valid {
		secret, err := s.totpBox.Decrypt(user.TwoFactorSecret.String)
		if err != nil {
			return false, err
		}
		ok, _ := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
			Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
		})
		if ok {
			if s.totpBox.NeedsReencryption(user.TwoFactorSecret.String) {
				if resealed, err := s.totpBox.Reencrypt(user.TwoFactorSecret.String); err == nil {
					_ = s.queries().SetTwoFactorSecret(ctx, user.ID, resealed)
				}
			}
			return true, nil
		}
	}

	if ok, err := s.tryConsumeEmailedCode(ctx, user.ID, code); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	return s.tryConsumeBackupCode(ctx, user.ID, code)
}

func (s *Service) tryConsumeEmailedCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	key := twoFactorEmailCodeKey(userID)
	stored, err := s.kv.Get(ctx, key)
	if err == kvs.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !crypto.ConstantTimeEqual(code, stored) {
		return false, nil
	}
	_ = s.kv.Del(ctx, key)
	return true, nil
}

func (s *Service) tryConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	q := s.queries()
	codes, err := q.ListUnusedBackupCodes(ctx, userID)
	if err != nil {
		return false, err
	}
	hash := crypto.HashBackupCode(code)
	for _, c := range codes {
		if crypto.ConstantTimeEqual(c.Hash, hash) {
			return true, q.ConsumeBackupCode(ctx, c.ID)
		}
	}
	return false, nil
}
