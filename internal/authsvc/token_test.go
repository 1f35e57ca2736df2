package authsvc

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/laventecare/authcore/internal/crypto"
)

func TestValidateAccessToken_Valid(t *testing.T) {
	provider := crypto.NewHS256Provider("test-secret", "authcore-test", "authcore-test-aud", time.Minute)
	s := &Service{tokens: provider}

	userID, orgID := uuid.New(), uuid.New()
	token, err := provider.GenerateAccessToken(userID, orgID, nil)
	require.NoError(t, err)

	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, orgID, claims.OrgID)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	provider := crypto.NewHS256Provider("test-secret", "authcore-test", "authcore-test-aud", -time.Minute)
	s := &Service{tokens: provider}

	token, err := provider.GenerateAccessToken(uuid.New(), uuid.New(), nil)
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(token)
	require.Error(t, err)
	require.Equal(t, apperr.KindTokenExpired, apperr.KindOf(err))
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	provider := crypto.NewHS256Provider("test-secret", "authcore-test", "authcore-test-aud", time.Minute)
	s := &Service{tokens: provider}

	_, err := s.ValidateAccessToken("not-a-jwt")
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidToken, apperr.KindOf(err))
}

// TestValidateAccessToken_WrongSigningSecret pins that a token signed by a
// different provider (e.g. a stolen/forged token) is rejected rather than
// silently accepted - the same signature check RefreshSession's rotated
// access token and every protected route rely on.
func TestValidateAccessToken_WrongSigningSecret(t *testing.T) {
	signer := crypto.NewHS256Provider("secret-a", "authcore-test", "authcore-test-aud", time.Minute)
	verifier := crypto.NewHS256Provider("secret-b", "authcore-test", "authcore-test-aud", time.Minute)
	s := &Service{tokens: verifier}

	token, err := signer.GenerateAccessToken(uuid.New(), uuid.New(), nil)
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(token)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidToken, apperr.KindOf(err))
}
