package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/laventecare/authcore/internal/storage/db"
)

func makeRow(id int64, priorHash string, granted bool) db.AuthorizationDecision {
	fields := toFields(uuid.New(), uuid.New(), "events", "create", "", granted, "test", nil, "db", "corr-1", "127.0.0.1")
	hash, err := computeRowHash(priorHash, fields)
	if err != nil {
		panic(err)
	}
	return db.AuthorizationDecision{
		ID: id, UserID: uuid.MustParse(fields.UserID), OrgID: uuid.MustParse(fields.OrgID),
		Resource: fields.Resource, Action: fields.Action, ResourceID: pgtype.Text{},
		Granted: granted, Reason: fields.Reason, CacheSource: fields.CacheSource,
		CorrelationID: fields.CorrelationID, IPAddress: fields.IPAddress,
		PriorHash: priorHash, RowHash: hash,
	}
}

func TestVerifyRange_ValidChain(t *testing.T) {
	row1 := makeRow(1, "", true)
	row2 := makeRow(2, row1.RowHash, false)
	row3 := makeRow(3, row2.RowHash, true)

	result := VerifyRange([]db.AuthorizationDecision{row1, row2, row3})
	require.True(t, result.Valid)
	require.Equal(t, int64(3), result.Checked)
	require.Equal(t, int64(0), result.BrokenAtID)
}

func TestVerifyRange_DetectsTamperedRow(t *testing.T) {
	row1 := makeRow(1, "", true)
	row2 := makeRow(2, row1.RowHash, false)
	row2.Granted = true // tamper after hashing

	result := VerifyRange([]db.AuthorizationDecision{row1, row2})
	require.False(t, result.Valid)
	require.Equal(t, int64(2), result.BrokenAtID)
}

func TestVerifyRange_DetectsBrokenLink(t *testing.T) {
	row1 := makeRow(1, "", true)
	row2 := makeRow(2, "not-the-real-prior-hash", false)

	result := VerifyRange([]db.AuthorizationDecision{row1, row2})
	require.False(t, result.Valid)
	require.Equal(t, int64(2), result.BrokenAtID)
}
