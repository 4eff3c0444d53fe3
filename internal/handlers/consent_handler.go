package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/models"
	"github.com/wso2/consent-ledger-api/internal/query"
	"github.com/wso2/consent-ledger-api/internal/utils"
)

// LedgerWriter is the mutating surface of the consent ledger
type LedgerWriter interface {
	Capture(ctx context.Context, req ledger.CaptureRequest) (*models.ConsentRecord, error)
	Revoke(ctx context.Context, consentID string, caller ledger.Caller, reason string) (*models.ConsentRecord, error)
}

// ConsentReader is the read surface used by the subject and admin views
type ConsentReader interface {
	ListForSubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error)
	GetForCaller(ctx context.Context, consentID string, caller ledger.Caller) (*models.ConsentRecord, error)
	ChainForCaller(ctx context.Context, consentID string, caller ledger.Caller) ([]models.ConsentRecord, error)
	ListForAdmin(ctx context.Context, filters query.AdminFilters) (*query.Page, error)
	AuditTrailForAdmin(ctx context.Context, consentID string) ([]models.ConsentStatusAudit, error)
}

// ConsentHandler handles the subject facing consent routes
type ConsentHandler struct {
	writer  LedgerWriter
	reader  ConsentReader
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewConsentHandler creates a new consent handler instance
func NewConsentHandler(writer LedgerWriter, reader ConsentReader, m *metrics.Metrics, logger *logrus.Logger) *ConsentHandler {
	return &ConsentHandler{
		writer:  writer,
		reader:  reader,
		metrics: m,
		logger:  logger,
	}
}

// CaptureConsent handles POST /consents
func (h *ConsentHandler) CaptureConsent(c *gin.Context) {
	caller, ok := utils.GetCallerFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "Caller identity is required")
		return
	}

	var apiRequest models.ConsentCaptureAPIRequest
	if err := c.ShouldBindJSON(&apiRequest); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	record, err := h.writer.Capture(c.Request.Context(), ledger.CaptureRequest{
		SubjectID:     caller.SubjectID,
		ConsentType:   apiRequest.ConsentType,
		Purpose:       apiRequest.Purpose,
		PolicyVersion: apiRequest.PolicyVersion,
		Supersedes:    apiRequest.Supersedes,
	})
	if err != nil {
		respondError(c, h.logger, h.metrics, "capture", err)
		return
	}

	h.metrics.IncrementConsentsCaptured(record.ConsentType, record.PreviousConsentID != nil)
	h.logger.WithFields(logrus.Fields{
		"consent_id":     record.ConsentID,
		"consent_type":   record.ConsentType,
		"correlation_id": utils.GetCorrelationIDFromContext(c),
	}).Info("Consent captured")

	utils.SendCreatedResponse(c, record)
}

// ListConsents handles GET /consents. It returns the caller's own history.
func (h *ConsentHandler) ListConsents(c *gin.Context) {
	caller, ok := utils.GetCallerFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "Caller identity is required")
		return
	}

	records, err := h.reader.ListForSubject(c.Request.Context(), caller.SubjectID)
	if err != nil {
		respondError(c, h.logger, h.metrics, "history", err)
		return
	}

	utils.SendOKResponse(c, models.ConsentListResponse{Data: records})
}

// GetConsent handles GET /consents/:consentId
func (h *ConsentHandler) GetConsent(c *gin.Context) {
	caller, ok := utils.GetCallerFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "Caller identity is required")
		return
	}

	record, err := h.reader.GetForCaller(c.Request.Context(), c.Param("consentId"), caller)
	if err != nil {
		respondError(c, h.logger, h.metrics, "get", err)
		return
	}

	utils.SendOKResponse(c, record)
}

// RevokeConsent handles POST /consents/:consentId/revoke. The body is
// optional and may carry a reason.
func (h *ConsentHandler) RevokeConsent(c *gin.Context) {
	caller, ok := utils.GetCallerFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "Caller identity is required")
		return
	}

	var apiRequest models.ConsentRevokeAPIRequest
	if err := c.ShouldBindJSON(&apiRequest); err != nil && !errors.Is(err, io.EOF) {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	record, err := h.writer.Revoke(c.Request.Context(), c.Param("consentId"), caller, apiRequest.Reason)
	if err != nil {
		respondError(c, h.logger, h.metrics, "revoke", err)
		return
	}

	byAdmin := caller.IsAdmin && caller.SubjectID != record.SubjectID
	h.metrics.IncrementConsentsRevoked(record.ConsentType, byAdmin)
	h.logger.WithFields(logrus.Fields{
		"consent_id":     record.ConsentID,
		"by_admin":       byAdmin,
		"correlation_id": utils.GetCorrelationIDFromContext(c),
	}).Info("Consent revoked")

	utils.SendOKResponse(c, record)
}

// GetChain handles GET /consents/:consentId/chain
func (h *ConsentHandler) GetChain(c *gin.Context) {
	caller, ok := utils.GetCallerFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "Caller identity is required")
		return
	}

	chain, err := h.reader.ChainForCaller(c.Request.Context(), c.Param("consentId"), caller)
	if err != nil {
		respondError(c, h.logger, h.metrics, "chain", err)
		return
	}

	utils.SendOKResponse(c, models.ConsentChainResponse{Data: chain})
}
