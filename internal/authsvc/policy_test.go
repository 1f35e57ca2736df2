package authsvc

import (
	"testing"

	"github.com/laventecare/authcore/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, ValidatePasswordStrength("Correct-Horse-9"))

	err := ValidatePasswordStrength("short1A")
	require.Error(t, err)
	require.Equal(t, apperr.KindValidationFailed, apperr.KindOf(err))

	err = ValidatePasswordStrength("alllowercaseletters")
	require.Error(t, err)
}
