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

type QuotaHandler struct {
	quotas service.QuotaService
}

func NewQuotaHandler(quotas service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotas: quotas}
}

func (h *QuotaHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard) {
	quotas := api.Group("/quotas")
	quotas.Use(guard.RequireRole(model.RoleAdmin))
	{
		quotas.GET("", h.List)
		quotas.POST("", h.SetTotal)
		quotas.PATCH("", h.SetUsed)
		quotas.GET("/logs", h.Logs)
	}
}

// List returns every quota with its available hours
// @Summary      List quotas
// @Tags         quotas
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.QuotaBalance}
// @Router       /api/quotas [get]
func (h *QuotaHandler) List(c *gin.Context) {
	quotas, err := h.quotas.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quotas))
}

// SetTotal creates a quota or changes its total hours
// @Summary      Set total hours
// @Tags         quotas
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetQuotaTotalRequest  true  "Quota"
// @Success      200      {object}  response.Response{data=service.QuotaBalance}
// @Failure      400      {object}  response.Response
// @Router       /api/quotas [post]
func (h *QuotaHandler) SetTotal(c *gin.Context) {
	var req service.SetQuotaTotalRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	bal, err := h.quotas.SetTotal(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bal))
}

// SetUsed corrects the used hours of a quota
// @Summary      Correct used hours
// @Tags         quotas
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetQuotaUsedRequest  true  "Correction"
// @Success      200      {object}  response.Response{data=service.QuotaBalance}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/quotas [patch]
func (h *QuotaHandler) SetUsed(c *gin.Context) {
	var req service.SetQuotaUsedRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	bal, err := h.quotas.SetUsed(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bal))
}

func (h *QuotaHandler) Logs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.quotas.ListLogs(c.Request.Context(), c.Query("email"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, p.Page, p.Limit, total))
}
