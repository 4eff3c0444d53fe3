package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/wso2/consent-ledger-api/internal/database/dbtest"
	"github.com/wso2/consent-ledger-api/internal/handlers"
	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/models"
	"github.com/wso2/consent-ledger-api/internal/query"
	"github.com/wso2/consent-ledger-api/internal/utils"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Capture(ctx context.Context, req ledger.CaptureRequest) (*models.ConsentRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRecord), args.Error(1)
}

func (m *mockWriter) Revoke(ctx context.Context, consentID string, caller ledger.Caller, reason string) (*models.ConsentRecord, error) {
	args := m.Called(ctx, consentID, caller, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRecord), args.Error(1)
}

type mockReader struct {
	mock.Mock
}

func (m *mockReader) ListForSubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentRecord), args.Error(1)
}

func (m *mockReader) GetForCaller(ctx context.Context, consentID string, caller ledger.Caller) (*models.ConsentRecord, error) {
	args := m.Called(ctx, consentID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRecord), args.Error(1)
}

func (m *mockReader) ChainForCaller(ctx context.Context, consentID string, caller ledger.Caller) ([]models.ConsentRecord, error) {
	args := m.Called(ctx, consentID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentRecord), args.Error(1)
}

func (m *mockReader) ListForAdmin(ctx context.Context, filters query.AdminFilters) (*query.Page, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Page), args.Error(1)
}

func (m *mockReader) AuditTrailForAdmin(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentStatusAudit), args.Error(1)
}

type ConsentHandlerTestSuite struct {
	suite.Suite
	writer  *mockWriter
	reader  *mockReader
	metrics *metrics.Metrics
	router  *gin.Engine
	caller  ledger.Caller
}

func TestConsentHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerTestSuite))
}

func (s *ConsentHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.writer = &mockWriter{}
	s.reader = &mockReader{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.caller = ledger.Caller{SubjectID: "u1"}

	handler := handlers.NewConsentHandler(s.writer, s.reader, s.metrics, dbtest.NewLogger())
	s.router = gin.New()
	s.router.Use(func(c *gin.Context) {
		c.Set(utils.ContextKeyCaller, s.caller)
		c.Next()
	})
	s.router.POST("/consents", handler.CaptureConsent)
	s.router.GET("/consents", handler.ListConsents)
	s.router.GET("/consents/:consentId", handler.GetConsent)
	s.router.POST("/consents/:consentId/revoke", handler.RevokeConsent)
	s.router.GET("/consents/:consentId/chain", handler.GetChain)
}

func (s *ConsentHandlerTestSuite) TearDownTest() {
	s.writer.AssertExpectations(s.T())
	s.reader.AssertExpectations(s.T())
}

func (s *ConsentHandlerTestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ConsentHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) models.ErrorResponse {
	var resp models.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func granted(id string) *models.ConsentRecord {
	return &models.ConsentRecord{
		ConsentID:     id,
		SubjectID:     "u1",
		ConsentType:   "tos",
		Purpose:       "terms",
		PolicyVersion: "1.0",
		Status:        models.ConsentStatusGranted,
		CreatedTime:   1000,
	}
}

func (s *ConsentHandlerTestSuite) TestCaptureConsent_Created() {
	s.writer.On("Capture", mock.Anything, ledger.CaptureRequest{
		SubjectID:     "u1",
		ConsentType:   "tos",
		Purpose:       "terms",
		PolicyVersion: "1.0",
	}).Return(granted("CONSENT-1"), nil)

	w := s.do(http.MethodPost, "/consents", `{"consentType":"tos","purpose":"terms","policyVersion":"1.0"}`)

	s.Equal(http.StatusCreated, w.Code)
	var record models.ConsentRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &record))
	s.Equal("CONSENT-1", record.ConsentID)
	s.Equal(models.ConsentStatusGranted, record.Status)
	s.NotContains(w.Body.String(), "revokedTime")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ConsentsCaptured.WithLabelValues("tos", "false")))
}

func (s *ConsentHandlerTestSuite) TestCaptureConsent_SubjectComesFromCaller() {
	s.writer.On("Capture", mock.Anything, mock.MatchedBy(func(req ledger.CaptureRequest) bool {
		return req.SubjectID == "u1" && req.Supersedes != nil && *req.Supersedes == "CONSENT-0"
	})).Return(granted("CONSENT-1"), nil)

	// a subjectId in the body is not a bound field
	w := s.do(http.MethodPost, "/consents",
		`{"subjectId":"u2","consentType":"tos","purpose":"terms","policyVersion":"1.0","supersedes":"CONSENT-0"}`)

	s.Equal(http.StatusCreated, w.Code)
}

func (s *ConsentHandlerTestSuite) TestCaptureConsent_MissingField() {
	w := s.do(http.MethodPost, "/consents", `{"consentType":"tos","purpose":"terms"}`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(models.ErrCodeBadRequest, s.decodeError(w).Code)
	s.writer.AssertNotCalled(s.T(), "Capture", mock.Anything, mock.Anything)
}

func (s *ConsentHandlerTestSuite) TestCaptureConsent_ErrorMapping() {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", &ledger.Error{Kind: ledger.KindInvalidInput, Message: "consent_type is required"}, http.StatusBadRequest, models.ErrCodeValidationError},
		{"not found", &ledger.Error{Kind: ledger.KindNotFound, Message: "predecessor missing"}, http.StatusNotFound, models.ErrCodeConsentNotFound},
		{"conflict", &ledger.Error{Kind: ledger.KindConflict, Message: "already superseded"}, http.StatusConflict, models.ErrCodeConflict},
		{"corrupt", &ledger.Error{Kind: ledger.KindCorruptState, Message: "cycle"}, http.StatusInternalServerError, models.ErrCodeCorruptState},
		{"internal", errors.New("db down"), http.StatusInternalServerError, models.ErrCodeInternalError},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.writer.On("Capture", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := s.do(http.MethodPost, "/consents", `{"consentType":"tos","purpose":"terms","policyVersion":"1.0"}`)

			s.Equal(tt.wantStatus, w.Code)
			s.Equal(tt.wantCode, s.decodeError(w).Code)
		})
	}
}

func (s *ConsentHandlerTestSuite) TestCaptureConsent_InternalErrorHidesDetails() {
	s.writer.On("Capture", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp 10.0.0.1:3306"))

	w := s.do(http.MethodPost, "/consents", `{"consentType":"tos","purpose":"terms","policyVersion":"1.0"}`)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "10.0.0.1")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.OperationErrors.WithLabelValues("capture", "internal")))
}

func (s *ConsentHandlerTestSuite) TestListConsents() {
	s.reader.On("ListForSubject", mock.Anything, "u1").Return([]models.ConsentRecord{*granted("CONSENT-2"), *granted("CONSENT-1")}, nil)

	w := s.do(http.MethodGet, "/consents", "")

	s.Equal(http.StatusOK, w.Code)
	var resp models.ConsentListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Data, 2)
	s.Equal("CONSENT-2", resp.Data[0].ConsentID)
}

func (s *ConsentHandlerTestSuite) TestListConsents_EmptyIsArray() {
	s.reader.On("ListForSubject", mock.Anything, "u1").Return([]models.ConsentRecord{}, nil)

	w := s.do(http.MethodGet, "/consents", "")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"data":[]}`, w.Body.String())
}

func (s *ConsentHandlerTestSuite) TestGetConsent_Forbidden() {
	s.reader.On("GetForCaller", mock.Anything, "CONSENT-9", s.caller).
		Return(nil, &ledger.Error{Kind: ledger.KindForbidden, Message: "not yours"})

	w := s.do(http.MethodGet, "/consents/CONSENT-9", "")

	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(models.ErrCodeForbidden, s.decodeError(w).Code)
}

func (s *ConsentHandlerTestSuite) TestRevokeConsent_WithoutBody() {
	revoked := granted("CONSENT-1")
	revoked.Status = models.ConsentStatusRevoked
	at := int64(2000)
	revoked.RevokedTime = &at
	s.writer.On("Revoke", mock.Anything, "CONSENT-1", s.caller, "").Return(revoked, nil)

	w := s.do(http.MethodPost, "/consents/CONSENT-1/revoke", "")

	s.Equal(http.StatusOK, w.Code)
	var record models.ConsentRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &record))
	s.Equal(models.ConsentStatusRevoked, record.Status)
	s.Require().NotNil(record.RevokedTime)
	s.Equal(at, *record.RevokedTime)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ConsentsRevoked.WithLabelValues("tos", "subject")))
}

func (s *ConsentHandlerTestSuite) TestRevokeConsent_WithReason() {
	revoked := granted("CONSENT-1")
	revoked.Status = models.ConsentStatusRevoked
	s.writer.On("Revoke", mock.Anything, "CONSENT-1", s.caller, "changed my mind").Return(revoked, nil)

	w := s.do(http.MethodPost, "/consents/CONSENT-1/revoke", `{"reason":"changed my mind"}`)

	s.Equal(http.StatusOK, w.Code)
}

func (s *ConsentHandlerTestSuite) TestRevokeConsent_MalformedBody() {
	w := s.do(http.MethodPost, "/consents/CONSENT-1/revoke", `{"reason":`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.writer.AssertNotCalled(s.T(), "Revoke", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ConsentHandlerTestSuite) TestRevokeConsent_Conflict() {
	s.writer.On("Revoke", mock.Anything, "CONSENT-1", s.caller, "").
		Return(nil, &ledger.Error{Kind: ledger.KindConflict, Message: "consent CONSENT-1 is already revoked"})

	w := s.do(http.MethodPost, "/consents/CONSENT-1/revoke", "")

	s.Equal(http.StatusConflict, w.Code)
	s.True(strings.Contains(s.decodeError(w).Message, "already revoked"))
}

func (s *ConsentHandlerTestSuite) TestGetChain_CorruptStateCounted() {
	s.reader.On("ChainForCaller", mock.Anything, "CONSENT-1", s.caller).
		Return(nil, &ledger.Error{Kind: ledger.KindCorruptState, Message: "supersession cycle"})

	w := s.do(http.MethodGet, "/consents/CONSENT-1/chain", "")

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal(models.ErrCodeCorruptState, s.decodeError(w).Code)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CorruptStateDetected))
}

func (s *ConsentHandlerTestSuite) TestGetChain_OldestFirst() {
	b := granted("CONSENT-B")
	prev := "CONSENT-A"
	b.PreviousConsentID = &prev
	s.reader.On("ChainForCaller", mock.Anything, "CONSENT-B", s.caller).
		Return([]models.ConsentRecord{*granted("CONSENT-A"), *b}, nil)

	w := s.do(http.MethodGet, "/consents/CONSENT-B/chain", "")

	s.Equal(http.StatusOK, w.Code)
	var resp models.ConsentChainResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp.Data, 2)
	s.Equal("CONSENT-A", resp.Data[0].ConsentID)
	s.Equal("CONSENT-B", resp.Data[1].ConsentID)
}

func TestConsentHandler_NoCallerIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewConsentHandler(&mockWriter{}, &mockReader{}, metrics.New(prometheus.NewRegistry()), dbtest.NewLogger())
	router := gin.New()
	router.GET("/consents", handler.ListConsents)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consents", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
