package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/middleware"
	"visit-tracker/internal/model"
	"visit-tracker/internal/service"
	"visit-tracker/internal/storage"
	"visit-tracker/pkg/pagination"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

// multipart overhead allowed on top of the document itself
const formOverhead = 1 << 20

type VisitHandler struct {
	visits service.VisitService
}

func NewVisitHandler(visits service.VisitService) *VisitHandler {
	return &VisitHandler{visits: visits}
}

func (h *VisitHandler) RegisterRoutes(api *gin.RouterGroup, guard *middleware.Guard) {
	visits := api.Group("/visits")
	visits.Use(guard.RequireRole(model.RoleAdmin, model.RoleApprover, model.RoleTechnician))
	{
		visits.GET("", h.List)
		visits.POST("/:id", h.Record)
		visits.POST("/:id/reject", h.Reject)
	}

	confirm := api.Group("/confirm-visit")
	confirm.Use(guard.RequireRole(model.RoleCustomer))
	{
		confirm.GET("/:id", h.ConfirmationPage)
		confirm.POST("/:id", h.Confirm)
	}
}

// List returns scheduled visits, or recorded ones with ?type=recorded
// @Summary      List visits
// @Tags         visits
// @Security     BearerAuth
// @Produce      json
// @Param        type   query     string  false  "scheduled (default) or recorded"
// @Success      200    {object}  response.Response{data=[]service.VisitResponse}
// @Router       /api/visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	var states []lifecycle.State
	switch c.DefaultQuery("type", "scheduled") {
	case "scheduled":
		states = []lifecycle.State{lifecycle.StateScheduled}
	case "recorded":
		states = []lifecycle.State{lifecycle.StateVisitCompleted, lifecycle.StateConfirmed}
	default:
		respondError(c, errs.Validation(errs.FieldError{Field: "type", Message: "must be one of: scheduled, recorded"}))
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

// Record stores the actual visit times and deducts the billable hours from the customer's quota
// @Summary      Record a visit
// @Description  Multipart form. Hours are rounded up; the recording is refused if the quota cannot cover them.
// @Tags         visits
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id                 path      string  true   "Request ID"
// @Param        actual_start_time  formData  string  true   "Start, e.g. 2025-01-01T09:00"
// @Param        actual_end_time    formData  string  true   "End, e.g. 2025-01-01T11:30"
// @Param        technician_notes   formData  string  false  "Notes"
// @Param        document           formData  file    false  "PDF, JPEG or PNG up to 10 MB"
// @Success      200  {object}  response.Response{data=service.VisitResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/visits/{id} [post]
func (h *VisitHandler) Record(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxDocumentSize+formOverhead)

	var req service.RecordVisitDTO
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, errs.Validation(errs.FieldError{Field: "document", Message: "must be at most 10 MB"}))
			return
		}
		respondError(c, errs.Wrap(errs.KindValidation, "Invalid request payload", err))
		return
	}

	doc, closeDoc, err := documentFrom(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeDoc()

	visit, err := h.visits.RecordVisit(c.Request.Context(), principal(c), c.Param("id"), req, doc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// documentFrom reads the optional document part. The content type is sniffed, not trusted.
func documentFrom(c *gin.Context) (*service.DocumentUpload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, errs.Wrap(errs.KindValidation, "Invalid document upload", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, errs.Wrap(errs.KindValidation, "Invalid document upload", err)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, noop, errs.Wrap(errs.KindValidation, "Invalid document upload", err)
	}
	head = head[:n]

	return &service.DocumentUpload{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(head),
		Size:        fh.Size,
		Body:        io.MultiReader(bytes.NewReader(head), f),
	}, func() { _ = f.Close() }, nil
}

// Reject marks a scheduled visit as not completed
func (h *VisitHandler) Reject(c *gin.Context) {
	var req service.RejectVisitDTO
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	visit, err := h.visits.RejectVisit(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// ConfirmationPage returns the request summary the customer confirms against
func (h *VisitHandler) ConfirmationPage(c *gin.Context) {
	visit, err := h.visits.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}

// Confirm records the customer's sign-off on a completed visit
// @Summary      Confirm a completed visit
// @Tags         visits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true   "Request ID"
// @Param        payload  body      service.ConfirmVisitDTO  false  "Notes"
// @Success      200      {object}  response.Response{data=service.VisitResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/confirm-visit/{id} [post]
func (h *VisitHandler) Confirm(c *gin.Context) {
	var req service.ConfirmVisitDTO
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}

	visit, err := h.visits.Confirm(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, visit))
}
