package dao

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-ledger-api/internal/models"
)

var auditColumns = []string{
	"STATUS_AUDIT_ID", "CONSENT_ID", "CURRENT_STATUS", "ACTION_TIME",
	"REASON", "ACTION_BY", "PREVIOUS_STATUS",
}

func TestStatusAuditDAO_CreateWithTx(t *testing.T) {
	db, mock := newMockDB(t)
	dao := NewStatusAuditDAO(db)
	ctx := context.Background()

	audit := &models.ConsentStatusAudit{
		StatusAuditID:  "AUDIT-1",
		ConsentID:      "CONSENT-1",
		CurrentStatus:  "revoked",
		PreviousStatus: strPtr("granted"),
		ActionTime:     2000,
		ActionBy:       strPtr("admin-1"),
		Reason:         strPtr("requested by support"),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO CONSENT_STATUS_AUDIT")).
		WithArgs("AUDIT-1", "CONSENT-1", "revoked", 2000, "requested by support", "admin-1", "granted").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, dao.CreateWithTx(ctx, tx, audit))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusAuditDAO_CreateWithTx_Error(t *testing.T) {
	db, mock := newMockDB(t)
	dao := NewStatusAuditDAO(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO CONSENT_STATUS_AUDIT")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)

	err = dao.CreateWithTx(ctx, tx, &models.ConsentStatusAudit{StatusAuditID: "AUDIT-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create status audit")
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusAuditDAO_GetByConsentID(t *testing.T) {
	db, mock := newMockDB(t)
	dao := NewStatusAuditDAO(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM CONSENT_STATUS_AUDIT WHERE CONSENT_ID = ? ORDER BY ACTION_TIME DESC, SEQ_ID DESC")).
		WithArgs("CONSENT-1").
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow("AUDIT-2", "CONSENT-1", "revoked", int64(2000), nil, "u1", "granted").
			AddRow("AUDIT-1", "CONSENT-1", "granted", int64(1000), nil, "u1", nil))

	audits, err := dao.GetByConsentID(context.Background(), "CONSENT-1")

	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "revoked", audits[0].CurrentStatus)
	require.NotNil(t, audits[0].PreviousStatus)
	assert.Equal(t, "granted", *audits[0].PreviousStatus)
	assert.Nil(t, audits[1].PreviousStatus)
	assert.Nil(t, audits[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
