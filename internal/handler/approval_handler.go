package handler

import (
	"net/http"
	"strings"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/middleware"
	"visit-tracker/internal/model"
	"visit-tracker/internal/service"
	"visit-tracker/pkg/pagination"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	visits service.VisitService
}

func NewApprovalHandler(visits service.VisitService) *ApprovalHandler {
	return &ApprovalHandler{visits: visits}
}

func (h *ApprovalHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard) {
	approvals := api.Group("/approvals")
	approvals.Use(guard.RequireRole(model.RoleAdmin, model.RoleApprover))
	{
		approvals.GET("", h.ListApprovalRequests)
		approvals.POST("/:id", h.Decide)
		approvals.POST("/:id/schedule", h.Schedule)
	}
}

// ListApprovalRequests returns requests, pending ones unless ?status= says otherwise
// @Summary      List requests awaiting a decision
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending (default), approved, rejected or a state name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.VisitResponse}
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListApprovalRequests(c *gin.Context) {
	states, err := parseStates(c.DefaultQuery("status", lifecycle.StatusPending))
	if err != nil {
		respondError(c, err)
		return
	}
	p := pagination.Parse(c)

	visits, total, err := h.visits.List(c.Request.Context(), service.VisitFilter{States: states, Page: p.Page, Limit: p.Limit})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, visits, p.Page, p.Limit, total))
}

// Decide approves or rejects a pending request
// @Summary      Approve or reject a request
// @Description  status=approved with scheduled_date schedules the visit; without it the request is approved undated.
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.DecisionDTO  true  "Decision"
// @Success      200      {object}  response.Response{data=service.VisitResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id} [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req service.DecisionDTO
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	visit, err := h.visits.Decide(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// Schedule adds a date to a request approved without one
func (h *ApprovalHandler) Schedule(c *gin.Context) {
	var req service.ScheduleDTO
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	visit, err := h.visits.Schedule(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// parseStates accepts comma-separated state names or the approval-axis statuses.
// An empty value means every state.
func parseStates(raw string) ([]lifecycle.State, error) {
	var out []lifecycle.State
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		switch part {
		case "", "all":
			continue
		case lifecycle.StatusApproved:
			out = append(out, lifecycle.StateApproved, lifecycle.StateScheduled, lifecycle.StateVisitCompleted, lifecycle.StateConfirmed)
			continue
		}
		st := lifecycle.State(strings.ReplaceAll(part, "-", "_"))
		if !st.Valid() {
			return nil, errs.Validation(errs.FieldError{Field: "status", Message: "unknown state " + part})
		}
		out = append(out, st)
	}
	return out, nil
}
