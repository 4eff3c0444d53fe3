package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/utils"
)

// respondError maps a ledger error onto the HTTP error response
func respondError(c *gin.Context, logger *logrus.Logger, m *metrics.Metrics, operation string, err error) {
	kind := ledger.KindOf(err)
	m.IncrementOperationErrors(operation, kind.String())

	entry := logger.WithFields(logrus.Fields{
		"operation":      operation,
		"kind":           kind.String(),
		"path":           c.Request.URL.Path,
		"correlation_id": utils.GetCorrelationIDFromContext(c),
	}).WithError(err)

	switch kind {
	case ledger.KindInvalidInput:
		entry.Debug("Rejected invalid request")
		utils.SendValidationError(c, err.Error())
	case ledger.KindNotFound:
		entry.Debug("Consent not found")
		utils.SendConsentNotFoundError(c, err.Error())
	case ledger.KindForbidden:
		entry.Warn("Caller not permitted")
		utils.SendForbiddenError(c, err.Error())
	case ledger.KindConflict:
		entry.Info("Operation conflicted with current state")
		utils.SendConflictError(c, err.Error())
	case ledger.KindCorruptState:
		entry.Error("Consent ledger invariant violated in storage")
		utils.SendCorruptStateError(c, err.Error())
	default:
		entry.Error("Ledger operation failed")
		// infrastructure details stay in the log
		utils.SendInternalServerError(c, "Failed to process consent request", "")
	}
}
