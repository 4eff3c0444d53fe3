package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/models"
	pkgutils "github.com/wso2/consent-ledger-api/pkg/utils"
)

// Gin context keys set by the router middleware
const (
	ContextKeyCaller        = "caller"
	ContextKeyCorrelationID = "correlationID"
)

// SendErrorResponse sends an error JSON response
func SendErrorResponse(c *gin.Context, statusCode int, errCode, message, details string) {
	c.JSON(statusCode, models.ErrorResponse{
		Code:    errCode,
		Message: message,
		Details: details,
	})
}

// SendCreatedResponse sends a 201 Created response
func SendCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendOKResponse sends a 200 OK response
func SendOKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendBadRequestError sends a 400 Bad Request error
func SendBadRequestError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeBadRequest, message, details)
}

// SendUnauthorizedError sends a 401 Unauthorized error
func SendUnauthorizedError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, message, "")
}

// SendForbiddenError sends a 403 Forbidden error
func SendForbiddenError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusForbidden, models.ErrCodeForbidden, message, "")
}

// SendConsentNotFoundError sends a 404 for a missing consent record
func SendConsentNotFoundError(c *gin.Context, details string) {
	SendErrorResponse(c, http.StatusNotFound, models.ErrCodeConsentNotFound, "Consent not found", details)
}

// SendConflictError sends a 409 Conflict error
func SendConflictError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusConflict, models.ErrCodeConflict, message, "")
}

// SendInternalServerError sends a 500 Internal Server Error
func SendInternalServerError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeInternalError, message, details)
}

// SendCorruptStateError sends a 500 for a stored invariant violation
func SendCorruptStateError(c *gin.Context, details string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeCorruptState, "Consent ledger is in an inconsistent state", details)
}

// SendValidationError sends a validation error response
func SendValidationError(c *gin.Context, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeValidationError, "Validation failed", details)
}

// GetCallerFromContext returns the identity set by the identity middleware
func GetCallerFromContext(c *gin.Context) (ledger.Caller, bool) {
	value, exists := c.Get(ContextKeyCaller)
	if !exists {
		return ledger.Caller{}, false
	}
	caller, ok := value.(ledger.Caller)
	return caller, ok
}

// GetCorrelationIDFromContext extracts correlation ID from context
func GetCorrelationIDFromContext(c *gin.Context) string {
	correlationID, exists := c.Get(ContextKeyCorrelationID)
	if !exists {
		return pkgutils.GenerateID()
	}
	return correlationID.(string)
}
