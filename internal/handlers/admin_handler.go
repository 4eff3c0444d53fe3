package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/models"
	"github.com/wso2/consent-ledger-api/internal/query"
	"github.com/wso2/consent-ledger-api/internal/utils"
	pkgutils "github.com/wso2/consent-ledger-api/pkg/utils"
)

// adminListQuery binds the query string of GET /admin/consents
type adminListQuery struct {
	SubjectID   string `form:"subjectId"`
	Status      string `form:"status"`
	ConsentType string `form:"consentType"`
	CreatedFrom string `form:"createdFrom"`
	CreatedTo   string `form:"createdTo"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// AdminHandler handles the administrator consent routes
type AdminHandler struct {
	reader  ConsentReader
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(reader ConsentReader, m *metrics.Metrics, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		reader:  reader,
		metrics: m,
		logger:  logger,
	}
}

// ListConsents handles GET /admin/consents
func (h *AdminHandler) ListConsents(c *gin.Context) {
	var params adminListQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	filters := query.AdminFilters{
		SubjectID:   params.SubjectID,
		Status:      params.Status,
		ConsentType: params.ConsentType,
		Limit:       params.Limit,
		Offset:      params.Offset,
	}
	if params.CreatedFrom != "" {
		from, err := pkgutils.ParseTimestamp(params.CreatedFrom)
		if err != nil {
			utils.SendValidationError(c, "createdFrom: "+err.Error())
			return
		}
		filters.CreatedFrom = &from
	}
	if params.CreatedTo != "" {
		to, err := pkgutils.ParseTimestamp(params.CreatedTo)
		if err != nil {
			utils.SendValidationError(c, "createdTo: "+err.Error())
			return
		}
		filters.CreatedTo = &to
	}

	page, err := h.reader.ListForAdmin(c.Request.Context(), filters)
	if err != nil {
		respondError(c, h.logger, h.metrics, "admin_list", err)
		return
	}

	utils.SendOKResponse(c, models.ConsentSearchResponse{
		Data: page.Records,
		Metadata: models.ConsentSearchMetadata{
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
			Count:  len(page.Records),
		},
	})
}

// GetAuditTrail handles GET /admin/consents/:consentId/audit
func (h *AdminHandler) GetAuditTrail(c *gin.Context) {
	consentID := c.Param("consentId")

	trail, err := h.reader.AuditTrailForAdmin(c.Request.Context(), consentID)
	if err != nil {
		respondError(c, h.logger, h.metrics, "audit_trail", err)
		return
	}

	utils.SendOKResponse(c, models.ConsentAuditResponse{ConsentID: consentID, Data: trail})
}
