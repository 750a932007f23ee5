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

// AdminHandler serves customer administration, the dashboard and request history.
type AdminHandler struct {
	customers service.CustomerService
	dashboard service.DashboardService
	visits    service.VisitService
}

func NewAdminHandler(customers service.CustomerService, dashboard service.DashboardService, visits service.VisitService) *AdminHandler {
	return &AdminHandler{customers: customers, dashboard: dashboard, visits: visits}
}

func (h *AdminHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard) {
	admin := api.Group("/admin")
	{
		admin.GET("/customers", guard.RequireRole(model.RoleAdmin), h.ListCustomers)
		admin.POST("/customers", guard.RequireRole(model.RoleAdmin), h.CreateCustomer)
		admin.GET("/dashboard", guard.RequireRole(model.RoleAdmin, model.RoleApprover), h.Dashboard)
		admin.GET("/history", guard.RequireRole(model.RoleAdmin, model.RoleApprover), h.History)
	}
}

func (h *AdminHandler) ListCustomers(c *gin.Context) {
	p := pagination.Parse(c)
	customers, total, err := h.customers.ListCustomers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, customers, p.Page, p.Limit, total))
}

// CreateCustomer creates a customer account with its quota and optional first location
// @Summary      Create customer
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCustomerRequest  true  "Customer"
// @Success      201      {object}  response.Response{data=service.CustomerResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/customers [post]
func (h *AdminHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	customer, err := h.customers.CreateCustomer(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, customer))
}

// Dashboard summarises request states and quota usage
// @Summary      Dashboard
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Router       /api/admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	dash, err := h.dashboard.GetDashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dash))
}

// History lists all requests, optionally narrowed by ?state= and ?email=
func (h *AdminHandler) History(c *gin.Context) {
	states, err := parseStates(c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	p := pagination.Parse(c)

	visits, total, err := h.visits.List(c.Request.Context(), service.VisitFilter{
		States: states,
		Email:  c.Query("email"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, visits, p.Page, p.Limit, total))
}
