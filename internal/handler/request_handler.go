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

// RequestHandler serves the customer side: submitting and tracking requests, quota and saved sites.
type RequestHandler struct {
	visits    service.VisitService
	quotas    service.QuotaService
	customers service.CustomerService
}

func NewRequestHandler(visits service.VisitService, quotas service.QuotaService, customers service.CustomerService) *RequestHandler {
	return &RequestHandler{visits: visits, quotas: quotas, customers: customers}
}

// RegisterRoutes mounts customer routes. submitLimit guards request creation.
func (h *RequestHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard, submitLimit gin.HandlerFunc) {
	requests := api.Group("/requests")
	{
		requests.POST("", guard.RequireRole(model.RoleCustomer), submitLimit, h.Submit)
		requests.GET("", guard.RequireRole(model.RoleCustomer), h.ListOwn)
		requests.GET("/:id", guard.RequireRole(model.RoleCustomer, model.RoleAdmin, model.RoleApprover, model.RoleTechnician), h.Get)
	}

	customer := api.Group("/customer")
	{
		customer.GET("/quota", guard.RequireRole(model.RoleCustomer, model.RoleAdmin), h.Quota)
		customer.GET("/locations", guard.RequireRole(model.RoleCustomer), h.ListLocations)
		customer.POST("/locations", guard.RequireRole(model.RoleCustomer), h.AddLocation)
		customer.DELETE("/locations/:id", guard.RequireRole(model.RoleCustomer), h.DeleteLocation)
	}
}

// Submit creates a support request for the signed-in customer
// @Summary      Submit a support request
// @Description  Creates a pending request. Refused when the customer has no hours left.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateVisitRequestDTO  true  "Request"
// @Success      200      {object}  response.Response{data=service.VisitResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req service.CreateVisitRequestDTO
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	visit, err := h.visits.Submit(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// ListOwn returns the caller's requests, newest first
// @Summary      Track my requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.VisitResponse}
// @Router       /api/requests [get]
func (h *RequestHandler) ListOwn(c *gin.Context) {
	p := pagination.Parse(c)
	visits, total, err := h.visits.ListOwn(c.Request.Context(), principal(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, visits, p.Page, p.Limit, total))
}

func (h *RequestHandler) Get(c *gin.Context) {
	visit, err := h.visits.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// Quota returns the caller's balance. Admins may pass ?email= to look up any customer.
// @Summary      Quota balance
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  false  "Customer email (admin only)"
// @Success      200    {object}  response.Response{data=service.QuotaBalance}
// @Router       /api/customer/quota [get]
func (h *RequestHandler) Quota(c *gin.Context) {
	p := principal(c)
	email := p.Email
	if p.Role == model.RoleAdmin {
		email = c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, response.Fail(http.StatusBadRequest, "validation_error", "email is required",
				response.FieldError{Field: "email", Message: "is required"}))
			return
		}
	}

	bal, err := h.quotas.CheckAvailable(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bal))
}

func (h *RequestHandler) ListLocations(c *gin.Context) {
	locs, err := h.customers.ListLocations(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, locs))
}

func (h *RequestHandler) AddLocation(c *gin.Context) {
	var req service.CreateLocationRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	loc, err := h.customers.AddLocation(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, loc))
}

func (h *RequestHandler) DeleteLocation(c *gin.Context) {
	if err := h.customers.DeleteLocation(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
