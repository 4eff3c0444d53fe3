package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-ledger-api/internal/dao"
	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/ledger/mocks"
	"github.com/wso2/consent-ledger-api/internal/models"
)

func strPtr(s string) *string {
	return &s
}

func stubRecord(id, subject, consentType string, previous *string) *models.ConsentRecord {
	return &models.ConsentRecord{
		ConsentID:         id,
		SubjectID:         subject,
		ConsentType:       consentType,
		Purpose:           "p",
		PolicyVersion:     "1",
		Status:            models.ConsentStatusGranted,
		CreatedTime:       1000,
		PreviousConsentID: previous,
	}
}

func notFoundErr(id string) error {
	return fmt.Errorf("%w: %s", dao.ErrConsentNotFound, id)
}

func TestGetChain_DanglingPredecessorIsCorrupt(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()

	store.On("GetByID", ctx, "B").Return(stubRecord("B", "u1", "tos", strPtr("A")), nil)
	store.On("GetByID", ctx, "A").Return(nil, notFoundErr("A"))

	chain, err := l.GetChain(ctx, "B")

	assert.Nil(t, chain)
	assert.True(t, ledger.IsCorruptState(err))
	store.AssertExpectations(t)
}

func TestGetChain_CrossSubjectLinkIsCorrupt(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()

	store.On("GetByID", ctx, "B").Return(stubRecord("B", "u1", "tos", strPtr("A")), nil)
	store.On("GetByID", ctx, "A").Return(stubRecord("A", "u2", "tos", nil), nil)

	_, err := l.GetChain(ctx, "B")

	assert.ErrorIs(t, err, ledger.ErrCorruptState)
}

func TestGetChain_SelfReferenceIsCorrupt(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()

	store.On("GetByID", ctx, "A").Return(stubRecord("A", "u1", "tos", strPtr("A")), nil).Once()

	_, err := l.GetChain(ctx, "A")

	assert.ErrorIs(t, err, ledger.ErrCorruptState)
	store.AssertExpectations(t)
}

func TestGetChain_StoreFailureIsInternal(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	store.On("GetByID", ctx, "B").Return(stubRecord("B", "u1", "tos", strPtr("A")), nil)
	store.On("GetByID", ctx, "A").Return(nil, dbErr)

	_, err := l.GetChain(ctx, "B")

	require.Error(t, err)
	assert.Equal(t, ledger.KindInternal, ledger.KindOf(err))
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, ledger.IsCorruptState(err))
}

func TestGetHistory_StoreFailureIsInternal(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()

	store.On("ListBySubject", ctx, "u1").Return(nil, errors.New("timeout"))

	_, err := l.GetHistory(ctx, "u1")

	assert.ErrorIs(t, err, ledger.ErrInternal)
	assert.Contains(t, err.Error(), "timeout")
}

func TestFind_PassesFiltersThrough(t *testing.T) {
	store := &mocks.MockConsentStore{}
	l := ledger.New(nil, store, &mocks.MockAuditStore{})
	ctx := context.Background()
	filters := &models.ConsentSearchFilters{SubjectID: "u1", Status: models.ConsentStatusRevoked}

	store.On("Search", ctx, filters).Return([]models.ConsentRecord{*stubRecord("A", "u1", "tos", nil)}, 7, nil)

	records, total, err := l.Find(ctx, filters)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 7, total)
	store.AssertExpectations(t)
}

func TestGetAuditTrail_StoreFailureIsInternal(t *testing.T) {
	store := &mocks.MockConsentStore{}
	audits := &mocks.MockAuditStore{}
	l := ledger.New(nil, store, audits)
	ctx := context.Background()

	store.On("GetByID", ctx, "A").Return(stubRecord("A", "u1", "tos", nil), nil)
	audits.On("GetByConsentID", ctx, "A").Return(nil, errors.New("boom"))

	_, err := l.GetAuditTrail(ctx, "A")

	assert.Equal(t, ledger.KindInternal, ledger.KindOf(err))
	audits.AssertNotCalled(t, "CreateWithTx", mock.Anything, mock.Anything, mock.Anything)
}
