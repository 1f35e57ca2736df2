package authsvc

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/storage/db"
)

func TestCheckAccountStatus_Active(t *testing.T) {
	s := &Service{}
	require.NoError(t, s.checkAccountStatus(db.User{Status: db.UserStatusActive}))
}

func TestCheckAccountStatus_PermanentlyBanned(t *testing.T) {
	s := &Service{}
	err := s.checkAccountStatus(db.User{Status: db.UserStatusPermanentlyBanned})
	require.Error(t, err)
	require.Equal(t, apperr.KindAccountBanned, apperr.KindOf(err))
}

func TestCheckAccountStatus_TemporarilyBanned_StillLocked(t *testing.T) {
	s := &Service{}
	user := db.User{
		Status:       db.UserStatusTemporarilyBanned,
		BanExpiresAt: pgtype.Timestamptz{Time: time.Now().Add(time.Hour), Valid: true},
	}
	err := s.checkAccountStatus(user)
	require.Error(t, err)
	require.Equal(t, apperr.KindAccountBanned, apperr.KindOf(err))
}

// TestCheckAccountStatus_TemporarilyBanned_Expired confirms a lockout period
// that has already elapsed no longer blocks login - SetUserStatus never
// flips the row back to active on its own, so this check is what actually
// lifts an expired lockout.
func TestCheckAccountStatus_TemporarilyBanned_Expired(t *testing.T) {
	s := &Service{}
	user := db.User{
		Status:       db.UserStatusTemporarilyBanned,
		BanExpiresAt: pgtype.Timestamptz{Time: time.Now().Add(-time.Hour), Valid: true},
	}
	require.NoError(t, s.checkAccountStatus(user))
}

func TestCheckAccountStatus_Deleted(t *testing.T) {
	s := &Service{}
	err := s.checkAccountStatus(db.User{Status: db.UserStatusDeleted})
	require.Error(t, err)
	// Deleted accounts report the same generic error as a bad password, so a
	// caller can't distinguish "deleted" from "wrong password" by probing.
	require.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
}
