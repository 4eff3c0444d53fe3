// Package query holds the read-side projections over the consent ledger for
// subjects and administrators. It never writes and never caches.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/models"
)

// StatusAll disables the status filter
const StatusAll = "all"

const defaultMaxLimit = 1000

// Store is the read surface of the ledger the engine projects from
type Store interface {
	Get(ctx context.Context, consentID string) (*models.ConsentRecord, error)
	GetHistory(ctx context.Context, subjectID string) ([]models.ConsentRecord, error)
	GetChain(ctx context.Context, consentID string) ([]models.ConsentRecord, error)
	GetAuditTrail(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error)
	Find(ctx context.Context, filters *models.ConsentSearchFilters) ([]models.ConsentRecord, int, error)
}

// AdminFilters are the conjunctive options of an administrator listing. The
// zero value lists everything.
type AdminFilters struct {
	// SubjectID restricts to one subject (exact match)
	SubjectID string
	// Status is "all" (or empty), "granted" or "revoked"
	Status      string
	ConsentType string
	// CreatedFrom and CreatedTo are inclusive epoch-millisecond bounds
	CreatedFrom *int64
	CreatedTo   *int64
	// Limit of 0 returns every match. Larger values are capped at the
	// engine's maximum.
	Limit  int
	Offset int
}

// Page is one administrator listing result
type Page struct {
	Records []models.ConsentRecord
	Total   int
	Limit   int
	Offset  int
}

// Engine answers subject and administrator queries
type Engine struct {
	store    Store
	maxLimit int
}

// NewEngine creates an Engine. maxLimit caps AdminFilters.Limit; values <= 0
// select the default of 1000.
func NewEngine(store Store, maxLimit int) *Engine {
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}
	return &Engine{store: store, maxLimit: maxLimit}
}

// ListForSubject returns the subject's own records, newest first
func (e *Engine) ListForSubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	return e.store.GetHistory(ctx, subjectID)
}

// GetForCaller returns one record if the caller owns it or is an admin
func (e *Engine) GetForCaller(ctx context.Context, consentID string, caller ledger.Caller) (*models.ConsentRecord, error) {
	record, err := e.store.Get(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(record.SubjectID) {
		return nil, &ledger.Error{Kind: ledger.KindForbidden, Message: "caller may not read consent " + consentID}
	}
	return record, nil
}

// ChainForCaller returns the supersession lineage of consentID, oldest
// first. Ordinary subjects may only walk their own chains.
func (e *Engine) ChainForCaller(ctx context.Context, consentID string, caller ledger.Caller) ([]models.ConsentRecord, error) {
	chain, err := e.store.GetChain(ctx, consentID)
	if err != nil {
		return nil, err
	}
	// every link shares the subject, GetChain rejects anything else
	if !caller.CanAccess(chain[len(chain)-1].SubjectID) {
		return nil, &ledger.Error{Kind: ledger.KindForbidden, Message: "caller may not read the chain of consent " + consentID}
	}
	return chain, nil
}

// ListForAdmin returns every record matching all supplied filters, newest
// first.
func (e *Engine) ListForAdmin(ctx context.Context, filters AdminFilters) (*Page, error) {
	search, err := e.searchFilters(filters)
	if err != nil {
		return nil, err
	}

	records, total, err := e.store.Find(ctx, search)
	if err != nil {
		return nil, err
	}

	return &Page{
		Records: records,
		Total:   total,
		Limit:   search.Limit,
		Offset:  search.Offset,
	}, nil
}

// AuditTrailForAdmin returns the status audit rows of a record
func (e *Engine) AuditTrailForAdmin(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error) {
	return e.store.GetAuditTrail(ctx, consentID)
}

func (e *Engine) searchFilters(filters AdminFilters) (*models.ConsentSearchFilters, error) {
	search := &models.ConsentSearchFilters{
		SubjectID:   strings.TrimSpace(filters.SubjectID),
		ConsentType: strings.TrimSpace(filters.ConsentType),
		FromTime:    filters.CreatedFrom,
		ToTime:      filters.CreatedTo,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}

	switch status := strings.ToLower(strings.TrimSpace(filters.Status)); status {
	case "", StatusAll:
	case string(models.ConsentStatusGranted), string(models.ConsentStatusRevoked):
		search.Status = models.ConsentStatus(status)
	default:
		return nil, invalidFilter("status must be one of all, granted, revoked; got %q", filters.Status)
	}

	if search.FromTime != nil && search.ToTime != nil && *search.FromTime > *search.ToTime {
		return nil, invalidFilter("createdFrom must not be after createdTo")
	}

	if search.Limit < 0 {
		return nil, invalidFilter("limit must not be negative")
	}
	if search.Offset < 0 {
		return nil, invalidFilter("offset must not be negative")
	}
	if search.Offset > 0 && search.Limit == 0 {
		return nil, invalidFilter("offset requires a limit")
	}
	if search.Limit > e.maxLimit {
		search.Limit = e.maxLimit
	}

	return search, nil
}

func invalidFilter(format string, args ...interface{}) error {
	return &ledger.Error{Kind: ledger.KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}
