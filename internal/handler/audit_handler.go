package handler

import (
	"net/http"

	"visit-tracker/internal/middleware"
	"visit-tracker/internal/model"
	"visit-tracker/internal/service"
	"visit-tracker/pkg/pagination"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard) {
	group := api.Group("/audit-logs")
	group.Use(guard.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns one page of the audit trail with the acting users joined in
// @Summary      Get audit logs
// @Description  Who changed what and when, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Only this action, e.g. RECORD_VISIT"
// @Param        entity_id  query     string  false  "Only entries about this entity, e.g. a request ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		Action:   c.Query("action"),
		EntityID: c.Query("entity_id"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, p.Page, p.Limit, total))
}
