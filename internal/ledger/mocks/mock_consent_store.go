package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wso2/consent-ledger-api/internal/database"
	"github.com/wso2/consent-ledger-api/internal/models"
)

// MockConsentStore is a mock implementation of ledger.ConsentStore
type MockConsentStore struct {
	mock.Mock
}

func (m *MockConsentStore) CreateWithTx(ctx context.Context, tx *database.Transaction, record *models.ConsentRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockConsentStore) GetByID(ctx context.Context, consentID string) (*models.ConsentRecord, error) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRecord), args.Error(1)
}

func (m *MockConsentStore) GetByIDWithTx(ctx context.Context, tx *database.Transaction, consentID string) (*models.ConsentRecord, error) {
	args := m.Called(ctx, tx, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRecord), args.Error(1)
}

func (m *MockConsentStore) ListBySubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentRecord), args.Error(1)
}

func (m *MockConsentStore) Search(ctx context.Context, filters *models.ConsentSearchFilters) ([]models.ConsentRecord, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.ConsentRecord), args.Int(1), args.Error(2)
}

func (m *MockConsentStore) RevokeWithTx(ctx context.Context, tx *database.Transaction, consentID, callerSubjectID string, isAdmin bool, revokedTime int64) (int64, error) {
	args := m.Called(ctx, tx, consentID, callerSubjectID, isAdmin, revokedTime)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditStore is a mock implementation of ledger.AuditStore
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) CreateWithTx(ctx context.Context, tx *database.Transaction, audit *models.ConsentStatusAudit) error {
	args := m.Called(ctx, tx, audit)
	return args.Error(0)
}

func (m *MockAuditStore) GetByConsentID(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentStatusAudit), args.Error(1)
}
