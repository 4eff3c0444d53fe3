package dao

import (
	"context"
	"fmt"

	"github.com/wso2/consent-ledger-api/internal/database"
	"github.com/wso2/consent-ledger-api/internal/models"
)

var (
	queryInsertStatusAudit = database.DBQuery{
		ID: "INSERT_STATUS_AUDIT",
		Query: `
		INSERT INTO CONSENT_STATUS_AUDIT (
			STATUS_AUDIT_ID, CONSENT_ID, CURRENT_STATUS, ACTION_TIME,
			REASON, ACTION_BY, PREVIOUS_STATUS
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
	}

	queryGetStatusAuditsByConsentID = database.DBQuery{
		ID: "GET_STATUS_AUDITS_BY_CONSENT_ID",
		Query: `
		SELECT STATUS_AUDIT_ID, CONSENT_ID, CURRENT_STATUS, ACTION_TIME,
		       REASON, ACTION_BY, PREVIOUS_STATUS
		FROM CONSENT_STATUS_AUDIT
		WHERE CONSENT_ID = ?
		ORDER BY ACTION_TIME DESC, SEQ_ID DESC
	`,
	}
)

// StatusAuditDAO handles database operations for consent status audit
type StatusAuditDAO struct {
	db *database.DB
}

// NewStatusAuditDAO creates a new StatusAuditDAO instance
func NewStatusAuditDAO(db *database.DB) *StatusAuditDAO {
	return &StatusAuditDAO{db: db}
}

// CreateWithTx inserts a new status audit record using a transaction
func (dao *StatusAuditDAO) CreateWithTx(ctx context.Context, tx *database.Transaction, audit *models.ConsentStatusAudit) error {
	_, err := tx.ExecContext(
		ctx,
		queryInsertStatusAudit.GetQuery(dao.db.Dialect()),
		audit.StatusAuditID,
		audit.ConsentID,
		audit.CurrentStatus,
		audit.ActionTime,
		audit.Reason,
		audit.ActionBy,
		audit.PreviousStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to create status audit with transaction: %w", err)
	}

	return nil
}

// GetByConsentID retrieves all status audit records for a specific consent
func (dao *StatusAuditDAO) GetByConsentID(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error) {
	audits := []models.ConsentStatusAudit{}
	err := dao.db.SelectContext(ctx, &audits, queryGetStatusAuditsByConsentID.GetQuery(dao.db.Dialect()), consentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status audits by consent ID: %w", err)
	}

	return audits, nil
}
