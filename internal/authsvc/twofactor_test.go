package authsvc

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/storage/db"
)

func newTOTPSecretBox(t *testing.T) *crypto.TOTPSecretBox {
	t.Helper()
	key, err := crypto.GenerateTOTPSecretKey()
	require.NoError(t, err)
	box, err := crypto.NewTOTPSecretBox(map[int]string{1: key}, 1)
	require.NoError(t, err)
	return box
}

func TestTwoFactorEmailCodeKey_ScopedPerUser(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	require.Equal(t, kvs.PrefixTwoFactorCode+a.String()+":login", twoFactorEmailCodeKey(a))
	require.NotEqual(t, twoFactorEmailCodeKey(a), twoFactorEmailCodeKey(b))
}

// TestVerifyTwoFactorCode_TOTP covers the first of the three verification
// methods spec'd for 2FA login: a code generated from the user's own sealed
// TOTP secret must validate.
func TestVerifyTwoFactorCode_TOTP(t *testing.T) {
	box := newTOTPSecretBox(t)
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: "test@example.com",
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
		Period:      30,
	})
	require.NoError(t, err)
	secret := key.Secret()
	sealed, err := box.Encrypt(secret)
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	s := &Service{
		kv:      kvs.NewInMemoryStore(),
		totpBox: box,
		logger:  slog.Default(),
		cfg:     DefaultConfig(),
	}
	user := db.User{ID: uuid.New(), TwoFactorSecret: pgtype.Text{String: sealed, Valid: true}}

	valid, err := s.verifyTwoFactorCode(context.Background(), user, code)
	require.NoError(t, err)
	require.True(t, valid)
}

// TestVerifyTwoFactorCode_EmailedCode covers the second verification method:
// a code delivered out of band and held in the KVS, tried when TOTP is not
// configured for the account.
func TestVerifyTwoFactorCode_EmailedCode(t *testing.T) {
	store := kvs.NewInMemoryStore()
	s := &Service{
		kv:     store,
		logger: slog.Default(),
		cfg:    DefaultConfig(),
	}
	user := db.User{ID: uuid.New()} // TwoFactorSecret left invalid: TOTP is skipped

	require.NoError(t, store.SetTTL(context.Background(), twoFactorEmailCodeKey(user.ID), "482913", 5*time.Minute))

	valid, err := s.verifyTwoFactorCode(context.Background(), user, "482913")
	require.NoError(t, err)
	require.True(t, valid)

	// Single use: consuming it once must invalidate it for a second attempt.
	_, err = store.Get(context.Background(), twoFactorEmailCodeKey(user.ID))
	require.ErrorIs(t, err, kvs.ErrNotFound)
}

func TestSendEmailedTwoFactorCode_StoresRetrievableCode(t *testing.T) {
	store := kvs.NewInMemoryStore()
	s := &Service{
		kv:     store,
		mailer: noopMailer{},
		cfg:    DefaultConfig(),
	}
	userID := uuid.New()

	require.NoError(t, s.sendEmailedTwoFactorCode(context.Background(), userID, "user@example.com"))

	stored, err := store.Get(context.Background(), twoFactorEmailCodeKey(userID))
	require.NoError(t, err)
	require.Len(t, stored, 6)
}

type noopMailer struct{}

func (noopMailer) SendInvitation(ctx context.Context, toEmail, orgName, token string) error { return nil }
func (noopMailer) SendPasswordReset(ctx context.Context, toEmail, token string) error        { return nil }
func (noopMailer) SendVerification(ctx context.Context, toEmail, token string) error         { return nil }
func (noopMailer) SendMFACode(ctx context.Context, toEmail, code string) error               { return nil }
