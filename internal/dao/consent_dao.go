package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/wso2/consent-ledger-api/internal/database"
	"github.com/wso2/consent-ledger-api/internal/models"
)

var (
	// ErrConsentNotFound is returned when no record has the requested ID
	ErrConsentNotFound = errors.New("consent not found")
	// ErrSuccessorExists is returned when the predecessor of a new record
	// already has a successor
	ErrSuccessorExists = errors.New("consent already superseded")
)

const consentColumns = `CONSENT_ID, SUBJECT_ID, CONSENT_TYPE, PURPOSE, POLICY_VERSION,
		       STATUS, CREATED_TIME, REVOKED_TIME, PREVIOUS_CONSENT_ID`

var (
	queryInsertConsent = database.DBQuery{
		ID: "INSERT_CONSENT",
		Query: `
		INSERT INTO CONSENT_LEDGER (
			CONSENT_ID, SUBJECT_ID, CONSENT_TYPE, PURPOSE, POLICY_VERSION,
			STATUS, CREATED_TIME, REVOKED_TIME, PREVIOUS_CONSENT_ID
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
	}

	queryGetConsentByID = database.DBQuery{
		ID: "GET_CONSENT_BY_ID",
		Query: `
		SELECT ` + consentColumns + `
		FROM CONSENT_LEDGER
		WHERE CONSENT_ID = ?
	`,
	}

	queryListConsentsBySubject = database.DBQuery{
		ID: "LIST_CONSENTS_BY_SUBJECT",
		Query: `
		SELECT ` + consentColumns + `
		FROM CONSENT_LEDGER
		WHERE SUBJECT_ID = ?
		ORDER BY CREATED_TIME DESC, SEQ_ID DESC
	`,
	}

	// queryRevokeConsent is the compare-and-set for granted -> revoked. The
	// last parameter is 1 when the caller acts with administrative privilege.
	queryRevokeConsent = database.DBQuery{
		ID: "REVOKE_CONSENT",
		Query: `
		UPDATE CONSENT_LEDGER
		SET STATUS = ?, REVOKED_TIME = ?
		WHERE CONSENT_ID = ? AND STATUS = ? AND (SUBJECT_ID = ? OR ? = 1)
	`,
	}
)

// ConsentDAO handles database operations for consent records
type ConsentDAO struct {
	db *database.DB
}

// NewConsentDAO creates a new ConsentDAO instance
func NewConsentDAO(db *database.DB) *ConsentDAO {
	return &ConsentDAO{db: db}
}

// CreateWithTx inserts a new consent record using a transaction
func (dao *ConsentDAO) CreateWithTx(ctx context.Context, tx *database.Transaction, record *models.ConsentRecord) error {
	_, err := tx.ExecContext(
		ctx,
		queryInsertConsent.GetQuery(dao.db.Dialect()),
		record.ConsentID,
		record.SubjectID,
		record.ConsentType,
		record.Purpose,
		record.PolicyVersion,
		string(record.Status),
		record.CreatedTime,
		record.RevokedTime,
		record.PreviousConsentID,
	)
	if err != nil {
		if record.PreviousConsentID != nil && isSuccessorViolation(err) {
			return fmt.Errorf("%w: %s", ErrSuccessorExists, *record.PreviousConsentID)
		}
		return fmt.Errorf("failed to create consent with transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a consent record by ID
func (dao *ConsentDAO) GetByID(ctx context.Context, consentID string) (*models.ConsentRecord, error) {
	return dao.getByID(ctx, dao.db, consentID)
}

// GetByIDWithTx retrieves a consent record by ID using a transaction
func (dao *ConsentDAO) GetByIDWithTx(ctx context.Context, tx *database.Transaction, consentID string) (*models.ConsentRecord, error) {
	return dao.getByID(ctx, tx, consentID)
}

func (dao *ConsentDAO) getByID(ctx context.Context, q sqlx.QueryerContext, consentID string) (*models.ConsentRecord, error) {
	var record models.ConsentRecord
	err := sqlx.GetContext(ctx, q, &record, queryGetConsentByID.GetQuery(dao.db.Dialect()), consentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrConsentNotFound, consentID)
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return &record, nil
}

// ListBySubject retrieves all records of a subject, newest first
func (dao *ConsentDAO) ListBySubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	records := []models.ConsentRecord{}
	err := dao.db.SelectContext(ctx, &records, queryListConsentsBySubject.GetQuery(dao.db.Dialect()), subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents by subject: %w", err)
	}

	return records, nil
}

// RevokeWithTx flips a granted record owned by callerSubjectID (or any
// granted record when isAdmin is set) to revoked in a single statement. It
// returns the number of rows changed, which is 0 when the guard did not match.
func (dao *ConsentDAO) RevokeWithTx(ctx context.Context, tx *database.Transaction, consentID, callerSubjectID string, isAdmin bool, revokedTime int64) (int64, error) {
	adminFlag := 0
	if isAdmin {
		adminFlag = 1
	}

	result, err := tx.ExecContext(
		ctx,
		queryRevokeConsent.GetQuery(dao.db.Dialect()),
		string(models.ConsentStatusRevoked),
		revokedTime,
		consentID,
		string(models.ConsentStatusGranted),
		callerSubjectID,
		adminFlag,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke consent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Search retrieves records matching all supplied filters, newest first,
// together with the total number of matches before paging.
func (dao *ConsentDAO) Search(ctx context.Context, filters *models.ConsentSearchFilters) ([]models.ConsentRecord, int, error) {
	var conditions []string
	var args []interface{}

	if filters.SubjectID != "" {
		conditions = append(conditions, "SUBJECT_ID = ?")
		args = append(args, filters.SubjectID)
	}

	if filters.Status != "" {
		conditions = append(conditions, "STATUS = ?")
		args = append(args, string(filters.Status))
	}

	if filters.ConsentType != "" {
		conditions = append(conditions, "CONSENT_TYPE = ?")
		args = append(args, filters.ConsentType)
	}

	if filters.FromTime != nil {
		conditions = append(conditions, "CREATED_TIME >= ?")
		args = append(args, *filters.FromTime)
	}

	if filters.ToTime != nil {
		conditions = append(conditions, "CREATED_TIME <= ?")
		args = append(args, *filters.ToTime)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM CONSENT_LEDGER" + whereClause
	var total int
	if err := dao.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count consents: %w", err)
	}

	query := "SELECT " + consentColumns + " FROM CONSENT_LEDGER" + whereClause +
		" ORDER BY CREATED_TIME DESC, SEQ_ID DESC"
	if filters.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filters.Limit, filters.Offset)
	}

	records := []models.ConsentRecord{}
	if err := dao.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to search consents: %w", err)
	}

	return records, total, nil
}

// isSuccessorViolation reports whether err is the unique violation on the
// predecessor column, as opposed to a clash on the record ID itself.
func isSuccessorViolation(err error) bool {
	if !database.IsUniqueViolation(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "PREVIOUS_CONSENT_ID") || strings.Contains(msg, "UQ_CONSENT_LEDGER_SUCCESSOR")
}
