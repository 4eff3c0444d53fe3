// Package ledger is the single writer of consent records. It owns the
// lifecycle rules: records are appended by Capture, flipped once from granted
// to revoked by Revoke, and never changed or removed otherwise.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/wso2/consent-ledger-api/internal/dao"
	"github.com/wso2/consent-ledger-api/internal/database"
	"github.com/wso2/consent-ledger-api/internal/models"
	"github.com/wso2/consent-ledger-api/pkg/utils"
)

const (
	defaultMaxFieldLength = 255
	maxPurposeLength      = 1024
	maxReasonLength       = 1024
)

// Transactor opens database transactions
type Transactor interface {
	BeginTx(ctx context.Context) (*database.Transaction, error)
}

// ConsentStore persists consent records
type ConsentStore interface {
	CreateWithTx(ctx context.Context, tx *database.Transaction, record *models.ConsentRecord) error
	GetByID(ctx context.Context, consentID string) (*models.ConsentRecord, error)
	GetByIDWithTx(ctx context.Context, tx *database.Transaction, consentID string) (*models.ConsentRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error)
	Search(ctx context.Context, filters *models.ConsentSearchFilters) ([]models.ConsentRecord, int, error)
	RevokeWithTx(ctx context.Context, tx *database.Transaction, consentID, callerSubjectID string, isAdmin bool, revokedTime int64) (int64, error)
}

// AuditStore persists status audit rows
type AuditStore interface {
	CreateWithTx(ctx context.Context, tx *database.Transaction, audit *models.ConsentStatusAudit) error
	GetByConsentID(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error)
}

// Caller is the identity supplied by the upstream authentication
// collaborator. The ledger trusts it as given.
type Caller struct {
	SubjectID string
	IsAdmin   bool
}

// CanAccess reports whether the caller may act on a record of subjectID
func (c Caller) CanAccess(subjectID string) bool {
	return c.IsAdmin || c.SubjectID == subjectID
}

// CaptureRequest carries the fields of a new consent grant
type CaptureRequest struct {
	SubjectID     string
	ConsentType   string
	Purpose       string
	PolicyVersion string
	// Supersedes is the ID of an earlier record of the same subject and
	// consent type that the new record replaces.
	Supersedes *string
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock replaces the wall clock used for created and revoked times
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithMaxFieldLength limits subject, consent type and policy version length
func WithMaxFieldLength(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxFieldLength = n
		}
	}
}

// Ledger enforces the consent record invariants on top of the stores
type Ledger struct {
	db             Transactor
	consents       ConsentStore
	audits         AuditStore
	clock          func() time.Time
	maxFieldLength int
}

// New creates a Ledger
func New(db Transactor, consents ConsentStore, audits AuditStore, opts ...Option) *Ledger {
	l := &Ledger{
		db:             db,
		consents:       consents,
		audits:         audits,
		clock:          time.Now,
		maxFieldLength: defaultMaxFieldLength,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Capture appends a granted record. When Supersedes is set the predecessor
// must exist, share subject and consent type, and not have a successor yet.
func (l *Ledger) Capture(ctx context.Context, req CaptureRequest) (*models.ConsentRecord, error) {
	record, err := l.newRecord(req)
	if err != nil {
		return nil, err
	}

	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return nil, internal("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if record.PreviousConsentID != nil {
		previous, err := l.consents.GetByIDWithTx(ctx, tx, *record.PreviousConsentID)
		if err != nil {
			if errors.Is(err, dao.ErrConsentNotFound) {
				return nil, notFound("superseded consent %s not found", *record.PreviousConsentID)
			}
			return nil, internal("failed to retrieve superseded consent", err)
		}
		if previous.SubjectID != record.SubjectID || previous.ConsentType != record.ConsentType {
			return nil, invalidInput("superseded consent %s belongs to a different subject or consent type", previous.ConsentID)
		}
	}

	// The unique predecessor column decides between concurrent supersessions
	if err := l.consents.CreateWithTx(ctx, tx, record); err != nil {
		if errors.Is(err, dao.ErrSuccessorExists) {
			return nil, conflict("consent %s is already superseded", *record.PreviousConsentID)
		}
		return nil, internal("failed to create consent", err)
	}

	audit := &models.ConsentStatusAudit{
		StatusAuditID: utils.GenerateAuditID(),
		ConsentID:     record.ConsentID,
		CurrentStatus: string(models.ConsentStatusGranted),
		ActionTime:    record.CreatedTime,
		ActionBy:      &record.SubjectID,
	}
	if err := l.audits.CreateWithTx(ctx, tx, audit); err != nil {
		return nil, internal("failed to create audit record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, internal("failed to commit consent", err)
	}

	return record, nil
}

func (l *Ledger) newRecord(req CaptureRequest) (*models.ConsentRecord, error) {
	record := &models.ConsentRecord{
		ConsentID:     utils.GenerateConsentID(),
		SubjectID:     utils.SanitizeString(req.SubjectID),
		ConsentType:   utils.SanitizeString(req.ConsentType),
		Purpose:       utils.SanitizeString(req.Purpose),
		PolicyVersion: utils.SanitizeString(req.PolicyVersion),
		Status:        models.ConsentStatusGranted,
		CreatedTime:   utils.TimeToMillis(l.clock()),
	}

	fields := []struct {
		name   string
		value  string
		maxLen int
	}{
		{"subject_id", record.SubjectID, l.maxFieldLength},
		{"consent_type", record.ConsentType, l.maxFieldLength},
		{"purpose", record.Purpose, maxPurposeLength},
		{"policy_version", record.PolicyVersion, l.maxFieldLength},
	}
	for _, f := range fields {
		if err := utils.ValidateRequired(f.name, f.value); err != nil {
			return nil, invalidInput("%s", err.Error())
		}
		if err := utils.ValidateMaxLength(f.name, f.value, f.maxLen); err != nil {
			return nil, invalidInput("%s", err.Error())
		}
	}

	if req.Supersedes != nil {
		previousID := utils.SanitizeString(*req.Supersedes)
		if err := utils.ValidateConsentID(previousID); err != nil {
			return nil, invalidInput("supersedes: %s", err.Error())
		}
		record.PreviousConsentID = &previousID
	}

	return record, nil
}

// Revoke flips a granted record to revoked. The caller must be the record's
// subject or an administrator. Revoking twice, or losing a race against a
// concurrent revoke, is a Conflict.
func (l *Ledger) Revoke(ctx context.Context, consentID string, caller Caller, reason string) (*models.ConsentRecord, error) {
	consentID = utils.SanitizeString(consentID)
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	if err := utils.ValidateRequired("caller subject_id", caller.SubjectID); err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	reason = utils.SanitizeString(reason)
	if err := utils.ValidateMaxLength("reason", reason, maxReasonLength); err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	revokedTime := utils.TimeToMillis(l.clock())

	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return nil, internal("failed to begin transaction", err)
	}
	defer tx.Rollback()

	affected, err := l.consents.RevokeWithTx(ctx, tx, consentID, caller.SubjectID, caller.IsAdmin, revokedTime)
	if err != nil {
		return nil, internal("failed to revoke consent", err)
	}

	record, err := l.consents.GetByIDWithTx(ctx, tx, consentID)
	if err != nil {
		if errors.Is(err, dao.ErrConsentNotFound) {
			return nil, notFound("consent %s not found", consentID)
		}
		return nil, internal("failed to retrieve consent", err)
	}

	if affected == 0 {
		if !caller.CanAccess(record.SubjectID) {
			return nil, forbidden("caller may not revoke consent %s", consentID)
		}
		if record.IsRevoked() {
			return nil, conflict("consent %s is already revoked", consentID)
		}
		return nil, corruptState("consent %s is %s but the status update matched no row", consentID, record.Status)
	}

	previousStatus := string(models.ConsentStatusGranted)
	audit := &models.ConsentStatusAudit{
		StatusAuditID:  utils.GenerateAuditID(),
		ConsentID:      consentID,
		CurrentStatus:  string(models.ConsentStatusRevoked),
		PreviousStatus: &previousStatus,
		ActionTime:     revokedTime,
		ActionBy:       &caller.SubjectID,
	}
	if reason != "" {
		audit.Reason = &reason
	}
	if err := l.audits.CreateWithTx(ctx, tx, audit); err != nil {
		return nil, internal("failed to create audit record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, internal("failed to commit revocation", err)
	}

	return record, nil
}

// Get returns a single record
func (l *Ledger) Get(ctx context.Context, consentID string) (*models.ConsentRecord, error) {
	if err := utils.ValidateConsentID(consentID); err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	record, err := l.consents.GetByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, dao.ErrConsentNotFound) {
			return nil, notFound("consent %s not found", consentID)
		}
		return nil, internal("failed to retrieve consent", err)
	}

	return record, nil
}

// GetHistory returns every record of the subject across consent types,
// newest first. Each call reads current state.
func (l *Ledger) GetHistory(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	if err := utils.ValidateRequired("subject_id", subjectID); err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	records, err := l.consents.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, internal("failed to list consents", err)
	}

	return records, nil
}

// GetChain follows the predecessor links from consentID back to the
// original grant and returns the lineage oldest first.
func (l *Ledger) GetChain(ctx context.Context, consentID string) ([]models.ConsentRecord, error) {
	current, err := l.Get(ctx, consentID)
	if err != nil {
		return nil, err
	}

	chain := []models.ConsentRecord{*current}
	seen := map[string]struct{}{current.ConsentID: {}}

	for current.PreviousConsentID != nil {
		previousID := *current.PreviousConsentID
		if _, ok := seen[previousID]; ok {
			return nil, corruptState("supersession cycle through consent %s", previousID)
		}

		previous, err := l.consents.GetByID(ctx, previousID)
		if err != nil {
			if errors.Is(err, dao.ErrConsentNotFound) {
				return nil, corruptState("consent %s points to missing predecessor %s", current.ConsentID, previousID)
			}
			return nil, internal("failed to retrieve predecessor", err)
		}
		if previous.SubjectID != current.SubjectID || previous.ConsentType != current.ConsentType {
			return nil, corruptState("consent %s supersedes %s across subject or consent type", current.ConsentID, previousID)
		}

		seen[previousID] = struct{}{}
		chain = append(chain, *previous)
		current = previous
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// GetAuditTrail returns the status audit rows of a record, newest first
func (l *Ledger) GetAuditTrail(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error) {
	if _, err := l.Get(ctx, consentID); err != nil {
		return nil, err
	}

	audits, err := l.audits.GetByConsentID(ctx, consentID)
	if err != nil {
		return nil, internal("failed to retrieve audit trail", err)
	}

	return audits, nil
}

// Find returns the records matching all filters, newest first, with the
// total match count before paging. Filters are not validated here.
func (l *Ledger) Find(ctx context.Context, filters *models.ConsentSearchFilters) ([]models.ConsentRecord, int, error) {
	records, total, err := l.consents.Search(ctx, filters)
	if err != nil {
		return nil, 0, internal("failed to search consents", err)
	}

	return records, total, nil
}
