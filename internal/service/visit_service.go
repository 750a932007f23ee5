package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/metrics"
	"visit-tracker/internal/model"
	"visit-tracker/internal/notify"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/storage"
	"visit-tracker/internal/validation"

	"github.com/google/uuid"
)

// MaxVisitDuration bounds a single recorded visit.
const MaxVisitDuration = 24 * time.Hour

// --- DTOs ---

type CreateVisitRequestDTO struct {
	SiteLocation   string `json:"site_location" form:"site_location" validate:"required_if=SupportType onsite,max=500"`
	ProblemDesc    string `json:"problem_desc" form:"problem_desc" validate:"required,min=10,max=2000"`
	RequestedDate  string `json:"requested_date" form:"requested_date" validate:"required"`
	SupportType    string `json:"support_type" form:"support_type" validate:"required,oneof=remote onsite"`
	EstimatedHours *int   `json:"estimated_hours" form:"estimated_hours" validate:"omitempty,gte=0,lte=999"`
}

type DecisionDTO struct {
	Status          string `json:"status" form:"status" validate:"required,oneof=approved rejected"`
	ScheduledDate   string `json:"scheduled_date" form:"scheduled_date"`
	DurationHours   *int   `json:"duration_hours" form:"duration_hours" validate:"omitempty,gte=1,lte=24"`
	RejectionReason string `json:"rejection_reason" form:"rejection_reason" validate:"max=2000"`
}

type ScheduleDTO struct {
	ScheduledDate string `json:"scheduled_date" form:"scheduled_date" validate:"required"`
	DurationHours *int   `json:"duration_hours" form:"duration_hours" validate:"omitempty,gte=1,lte=24"`
}

type RecordVisitDTO struct {
	ActualStartTime string `json:"actual_start_time" form:"actual_start_time" validate:"required"`
	ActualEndTime   string `json:"actual_end_time" form:"actual_end_time" validate:"required"`
	TechnicianNotes string `json:"technician_notes" form:"technician_notes" validate:"max=5000"`
}

// DocumentUpload is an optional file attached to a visit recording.
type DocumentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type RejectVisitDTO struct {
	Reason string `json:"reason" form:"reason" validate:"required,min=1,max=2000"`
}

type ConfirmVisitDTO struct {
	CustomerNotes string `json:"customer_notes" form:"customer_notes" validate:"max=2000"`
}

type VisitFilter struct {
	States []lifecycle.State
	Email  string
	Page   int
	Limit  int
}

type VisitResponse struct {
	ID                  string     `json:"id"`
	CustomerID          string     `json:"customer_id"`
	RequesterName       string     `json:"requester_name"`
	RequesterEmail      string     `json:"requester_email"`
	SiteLocation        string     `json:"site_location"`
	SupportType         string     `json:"support_type"`
	ProblemDesc         string     `json:"problem_desc"`
	RequestedDate       string     `json:"requested_date"`
	EstimatedHours      *int       `json:"estimated_hours"`
	State               string     `json:"state"`
	Status              string     `json:"status"`
	VisitStatus         string     `json:"visit_status"`
	AllowedActions      []string   `json:"allowed_actions"`
	ScheduledDate       *time.Time `json:"scheduled_date"`
	DurationHours       *int       `json:"duration_hours"`
	ActualStartTime     *time.Time `json:"actual_start_time"`
	ActualEndTime       *time.Time `json:"actual_end_time"`
	ActualHours         *int       `json:"actual_hours"`
	TechnicianNotes     *string    `json:"technician_notes"`
	DocumentURL         *string    `json:"document_url"`
	RecordedBy          *string    `json:"recorded_by"`
	CustomerConfirmedAt *time.Time `json:"customer_confirmed_at"`
	CustomerNotes       *string    `json:"customer_notes"`
	RejectionReason     *string    `json:"rejection_reason"`
	ApprovedBy          *string    `json:"approved_by"`
	ApprovedAt          *time.Time `json:"approved_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// --- Interface ---

type VisitService interface {
	Submit(ctx context.Context, actor auth.Principal, req CreateVisitRequestDTO) (VisitResponse, error)
	Get(ctx context.Context, actor auth.Principal, id string) (VisitResponse, error)
	ListOwn(ctx context.Context, actor auth.Principal, page, limit int) ([]VisitResponse, int64, error)
	List(ctx context.Context, filter VisitFilter) ([]VisitResponse, int64, error)
	Decide(ctx context.Context, actor auth.Principal, id string, req DecisionDTO) (VisitResponse, error)
	Schedule(ctx context.Context, actor auth.Principal, id string, req ScheduleDTO) (VisitResponse, error)
	RecordVisit(ctx context.Context, actor auth.Principal, id string, req RecordVisitDTO, doc *DocumentUpload) (VisitResponse, error)
	RejectVisit(ctx context.Context, actor auth.Principal, id string, req RejectVisitDTO) (VisitResponse, error)
	Confirm(ctx context.Context, actor auth.Principal, id string, req ConfirmVisitDTO) (VisitResponse, error)
}

// VisitDeps collects what the workflow needs. Now and Location default to the wall clock and UTC.
type VisitDeps struct {
	Visits        repository.VisitRepository
	Quotas        QuotaService
	Audit         repository.AuditRepository
	Tx            repository.TransactionManager
	Store         storage.Store
	Notifier      notify.Notifier
	Log           *slog.Logger
	Location      *time.Location
	PublicBaseURL string
	Now           func() time.Time
}

type visitService struct {
	visits   repository.VisitRepository
	quotas   QuotaService
	audit    repository.AuditRepository
	tx       repository.TransactionManager
	store    storage.Store
	notifier notify.Notifier
	log      *slog.Logger
	loc      *time.Location
	baseURL  string
	now      func() time.Time
}

func NewVisitService(d VisitDeps) VisitService {
	s := &visitService{
		visits:   d.Visits,
		quotas:   d.Quotas,
		audit:    d.Audit,
		tx:       d.Tx,
		store:    d.Store,
		notifier: d.Notifier,
		log:      d.Log,
		loc:      d.Location,
		baseURL:  strings.TrimRight(d.PublicBaseURL, "/"),
		now:      d.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

var errChanged = errs.Conflict("request changed while it was being processed; refresh and retry")

// --- Implementation ---

func (s *visitService) Submit(ctx context.Context, actor auth.Principal, req CreateVisitRequestDTO) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	customerID := actorID(actor)
	if customerID == nil {
		return VisitResponse{}, errs.New(errs.KindUnauthorized, "sign in again to submit a request")
	}

	site := strings.TrimSpace(req.SiteLocation)
	if req.SupportType == model.SupportRemote {
		site = model.RemoteSiteLocation
	} else if site == "" {
		return VisitResponse{}, validation.Field("site_location", "is required")
	}

	requested, err := s.requestedDate(req.RequestedDate)
	if err != nil {
		return VisitResponse{}, err
	}

	email := normalizeEmail(actor.Email)
	if err := s.quotas.ReserveCheck(ctx, email); err != nil {
		return VisitResponse{}, err
	}

	visit := model.VisitRequest{
		CustomerID:     *customerID,
		RequesterName:  actor.Name,
		RequesterEmail: email,
		SiteLocation:   site,
		SupportType:    req.SupportType,
		ProblemDesc:    strings.TrimSpace(req.ProblemDesc),
		RequestedDate:  requested,
		EstimatedHours: req.EstimatedHours,
		State:          lifecycle.StatePending,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.visits.Create(txCtx, &visit); err != nil {
			return fmt.Errorf("failed to create visit request: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateVisitRequest, visit.ID.String(), site, map[string]interface{}{
			"support_type":   visit.SupportType,
			"requested_date": requested.Format(dateLayout),
		})
	})
	if err != nil {
		return VisitResponse{}, err
	}

	s.notifier.Notify(ctx, notify.EventRequestCreated, s.payload(visit, actor))
	return toVisitResponse(visit), nil
}

// requestedDate parses a calendar date and rejects days before today in the configured zone.
// The result is midnight UTC so that the stored date does not drift with the zone.
func (s *visitService) requestedDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validation.Field("requested_date", "must be a date in YYYY-MM-DD format")
	}
	y, m, day := s.now().In(s.loc).Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return time.Time{}, validation.Field("requested_date", "must be today or later")
	}
	return d, nil
}

func (s *visitService) Get(ctx context.Context, actor auth.Principal, id string) (VisitResponse, error) {
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}
	visit, err := s.visits.FindByID(ctx, visitID)
	if err != nil {
		return VisitResponse{}, notFoundOr(err, "visit request")
	}
	if err := ownedBy(visit, actor); err != nil {
		return VisitResponse{}, err
	}
	return toVisitResponse(*visit), nil
}

func (s *visitService) ListOwn(ctx context.Context, actor auth.Principal, page, limit int) ([]VisitResponse, int64, error) {
	customerID := actorID(actor)
	if customerID == nil {
		return nil, 0, errs.New(errs.KindUnauthorized, "sign in again to view your requests")
	}
	page, limit = normalizePage(page, limit)
	return s.list(ctx, repository.VisitFilter{CustomerID: customerID, Page: page, Limit: limit})
}

func (s *visitService) List(ctx context.Context, filter VisitFilter) ([]VisitResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	return s.list(ctx, repository.VisitFilter{
		States: filter.States,
		Email:  normalizeEmail(filter.Email),
		Page:   page,
		Limit:  limit,
	})
}

func (s *visitService) list(ctx context.Context, filter repository.VisitFilter) ([]VisitResponse, int64, error) {
	visits, total, err := s.visits.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list visit requests: %w", err)
	}
	out := make([]VisitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, toVisitResponse(v))
	}
	return out, total, nil
}

func (s *visitService) Decide(ctx context.Context, actor auth.Principal, id string, req DecisionDTO) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}

	now := s.now()
	ch := change{
		updates: map[string]interface{}{
			"approved_by": actor.Email,
			"approved_at": now,
		},
	}

	var event notify.Event
	switch req.Status {
	case lifecycle.StatusRejected:
		ch.action = lifecycle.ActionReject
		ch.audit = model.ActionRejectRequest
		ch.updates["rejection_reason"] = strPtr(strings.TrimSpace(req.RejectionReason))
		ch.details = map[string]interface{}{"reason": req.RejectionReason}
		event = notify.EventRequestRejected
	default:
		ch.action = lifecycle.ActionApprove
		ch.audit = model.ActionApproveRequest
		ch.details = map[string]interface{}{}
		if req.DurationHours != nil {
			ch.updates["duration_hours"] = *req.DurationHours
			ch.details["duration_hours"] = *req.DurationHours
		}
		if strings.TrimSpace(req.ScheduledDate) != "" {
			at, err := futureDateTime("scheduled_date", req.ScheduledDate, now, s.loc)
			if err != nil {
				return VisitResponse{}, err
			}
			ch.action = lifecycle.ActionApproveScheduled
			ch.updates["scheduled_date"] = at
			ch.details["scheduled_date"] = at.Format(time.RFC3339)
			event = notify.EventRequestScheduled
		}
	}

	visit, err := s.apply(ctx, actor, visitID, ch)
	if err != nil {
		return VisitResponse{}, err
	}

	if event != "" {
		p := s.payload(*visit, actor)
		if visit.RejectionReason != nil {
			p.Reason = *visit.RejectionReason
		}
		s.notifier.Notify(ctx, event, p)
	}
	return toVisitResponse(*visit), nil
}

func (s *visitService) Schedule(ctx context.Context, actor auth.Principal, id string, req ScheduleDTO) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}
	at, err := futureDateTime("scheduled_date", req.ScheduledDate, s.now(), s.loc)
	if err != nil {
		return VisitResponse{}, err
	}

	ch := change{
		action:  lifecycle.ActionSchedule,
		audit:   model.ActionScheduleRequest,
		updates: map[string]interface{}{"scheduled_date": at},
		details: map[string]interface{}{"scheduled_date": at.Format(time.RFC3339)},
	}
	if req.DurationHours != nil {
		ch.updates["duration_hours"] = *req.DurationHours
		ch.details["duration_hours"] = *req.DurationHours
	}

	visit, err := s.apply(ctx, actor, visitID, ch)
	if err != nil {
		return VisitResponse{}, err
	}
	s.notifier.Notify(ctx, notify.EventRequestScheduled, s.payload(*visit, actor))
	return toVisitResponse(*visit), nil
}

func (s *visitService) RecordVisit(ctx context.Context, actor auth.Principal, id string, req RecordVisitDTO, doc *DocumentUpload) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	start, end, hours, err := s.visitWindow(req)
	if err != nil {
		return VisitResponse{}, err
	}
	if doc != nil {
		if err := checkDocument(doc); err != nil {
			return VisitResponse{}, err
		}
	}
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}

	// Refuse early so a doomed recording does not upload anything.
	current, err := s.visits.FindByID(ctx, visitID)
	if err != nil {
		return VisitResponse{}, notFoundOr(err, "visit request")
	}
	if _, err := lifecycle.Next(current.State, lifecycle.ActionRecordVisit); err != nil {
		return VisitResponse{}, err
	}

	var key, url string
	if doc != nil {
		key, url, err = s.storeDocument(ctx, visitID, doc)
		if err != nil {
			return VisitResponse{}, err
		}
	}

	ch := change{
		action: lifecycle.ActionRecordVisit,
		audit:  model.ActionRecordVisit,
		updates: map[string]interface{}{
			"actual_start_time": start,
			"actual_end_time":   end,
			"actual_hours":      hours,
			"technician_notes":  strPtr(strings.TrimSpace(req.TechnicianNotes)),
			"document_url":      strPtr(url),
			"recorded_by":       actor.Email,
		},
		details: map[string]interface{}{
			"actual_hours": hours,
			"document":     url != "",
		},
		after: func(txCtx context.Context, v *model.VisitRequest) error {
			reason := fmt.Sprintf("%s visit at %s on %s", v.SupportType, v.SiteLocation, start.In(s.loc).Format(dateLayout))
			_, err := s.quotas.Deduct(txCtx, v.RequesterEmail, hours, reason, &v.ID)
			return err
		},
	}

	visit, err := s.apply(ctx, actor, visitID, ch)
	if err != nil {
		if key != "" {
			s.discardDocument(ctx, key)
		}
		return VisitResponse{}, err
	}

	p := s.payload(*visit, actor)
	p.ConfirmURL = s.confirmURL(visit.ID)
	s.notifier.Notify(ctx, notify.EventVisitCompleted, p)
	return toVisitResponse(*visit), nil
}

// visitWindow parses the recorded times and returns the billable whole hours.
func (s *visitService) visitWindow(req RecordVisitDTO) (time.Time, time.Time, int, error) {
	start, startErr := parseDateTime(req.ActualStartTime, s.loc)
	end, endErr := parseDateTime(req.ActualEndTime, s.loc)
	var fieldErrs []error
	if startErr != nil {
		fieldErrs = append(fieldErrs, validation.Field("actual_start_time", "must be a date-time such as 2025-01-31T09:00"))
	}
	if endErr != nil {
		fieldErrs = append(fieldErrs, validation.Field("actual_end_time", "must be a date-time such as 2025-01-31T11:30"))
	}
	if err := validation.Merge(fieldErrs...); err != nil {
		return time.Time{}, time.Time{}, 0, err
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, 0, validation.Field("actual_end_time", "must be after the start time")
	}
	if end.Sub(start) > MaxVisitDuration {
		return time.Time{}, time.Time{}, 0, validation.Field("actual_end_time", "must be within 24 hours of the start time")
	}
	if end.After(s.now().Add(5 * time.Minute)) {
		return time.Time{}, time.Time{}, 0, validation.Field("actual_end_time", "must not be in the future")
	}

	hours, err := lifecycle.BillableHours(start, end)
	if err != nil {
		return time.Time{}, time.Time{}, 0, validation.Field("actual_end_time", err.Error())
	}
	return start, end, hours, nil
}

func checkDocument(doc *DocumentUpload) error {
	if doc.Size <= 0 {
		return validation.Field("document", "must not be empty")
	}
	if doc.Size > storage.MaxDocumentSize {
		return validation.Field("document", "must be at most 10 MB")
	}
	if _, ok := storage.Extension(doc.ContentType); !ok {
		return validation.Field("document", "must be a PDF, JPEG or PNG file")
	}
	return nil
}

func (s *visitService) storeDocument(ctx context.Context, id uuid.UUID, doc *DocumentUpload) (string, string, error) {
	if s.store == nil {
		return "", "", errs.New(errs.KindUpstream, "document storage is not configured")
	}
	key, err := storage.VisitDocumentKey(id, doc.ContentType)
	if err != nil {
		return "", "", validation.Field("document", "must be a PDF, JPEG or PNG file")
	}
	url, err := s.store.Put(ctx, key, doc.Body, doc.Size, doc.ContentType)
	if err != nil {
		return "", "", errs.Wrap(errs.KindUpstream, "failed to store the visit document", err)
	}
	return key, url, nil
}

func (s *visitService) discardDocument(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove orphaned visit document", "key", key, "store", s.store.Name(), "error", err)
	}
}

func (s *visitService) RejectVisit(ctx context.Context, actor auth.Principal, id string, req RejectVisitDTO) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return VisitResponse{}, validation.Field("reason", "is required")
	}
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}

	visit, err := s.apply(ctx, actor, visitID, change{
		action:  lifecycle.ActionRejectVisit,
		audit:   model.ActionRejectVisit,
		updates: map[string]interface{}{"rejection_reason": reason},
		details: map[string]interface{}{"reason": reason},
	})
	if err != nil {
		return VisitResponse{}, err
	}

	p := s.payload(*visit, actor)
	p.Reason = reason
	s.notifier.Notify(ctx, notify.EventVisitRejected, p)
	return toVisitResponse(*visit), nil
}

func (s *visitService) Confirm(ctx context.Context, actor auth.Principal, id string, req ConfirmVisitDTO) (VisitResponse, error) {
	if err := validation.Struct(req); err != nil {
		return VisitResponse{}, err
	}
	visitID, err := parseID(id, "visit request")
	if err != nil {
		return VisitResponse{}, err
	}

	notes := strPtr(strings.TrimSpace(req.CustomerNotes))
	visit, err := s.apply(ctx, actor, visitID, change{
		action:  lifecycle.ActionConfirm,
		audit:   model.ActionConfirmVisit,
		details: map[string]interface{}{"has_notes": notes != nil},
		check: func(v *model.VisitRequest) error {
			return ownedBy(v, actor)
		},
		write: func(txCtx context.Context, v *model.VisitRequest, _ lifecycle.State) (int64, error) {
			return s.visits.Confirm(txCtx, v.ID, s.now(), notes)
		},
	})
	if err != nil {
		return VisitResponse{}, err
	}

	p := s.payload(*visit, actor)
	if notes != nil {
		p.CustomerNotes = *notes
	}
	s.notifier.Notify(ctx, notify.EventVisitConfirmed, p)
	return toVisitResponse(*visit), nil
}

// change describes one lifecycle step applied by apply.
type change struct {
	action  lifecycle.Action
	audit   string
	updates map[string]interface{}
	details map[string]interface{}
	// check runs on the freshly read row before the transition is computed.
	check func(*model.VisitRequest) error
	// write replaces the default conditional state update.
	write func(ctx context.Context, v *model.VisitRequest, to lifecycle.State) (int64, error)
	// after runs inside the transaction once the row has moved.
	after func(ctx context.Context, v *model.VisitRequest) error
}

// apply reads the request, checks the transition and writes it with an update constrained to
// the state just read. A zero-row update means another caller got there first.
func (s *visitService) apply(ctx context.Context, actor auth.Principal, id uuid.UUID, ch change) (*model.VisitRequest, error) {
	var out *model.VisitRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.visits.FindByID(txCtx, id)
		if err != nil {
			return notFoundOr(err, "visit request")
		}
		if ch.check != nil {
			if err := ch.check(current); err != nil {
				return err
			}
		}
		to, err := lifecycle.Next(current.State, ch.action)
		if err != nil {
			return err
		}

		var rows int64
		if ch.write != nil {
			rows, err = ch.write(txCtx, current, to)
		} else {
			rows, err = s.visits.Transition(txCtx, id, current.State, to, ch.updates)
		}
		if err != nil {
			return fmt.Errorf("failed to update visit request: %w", err)
		}
		if rows == 0 {
			return errChanged
		}

		if ch.after != nil {
			if err := ch.after(txCtx, current); err != nil {
				return err
			}
		}

		details := map[string]interface{}{"from": current.State, "to": to}
		for k, v := range ch.details {
			details[k] = v
		}
		if err := writeAudit(txCtx, s.audit, actor, ch.audit, id.String(), current.RequesterEmail, details); err != nil {
			return err
		}

		out, err = s.visits.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to reload visit request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(ch.action)).Inc()
	return out, nil
}

func (s *visitService) confirmURL(id uuid.UUID) string {
	return s.baseURL + "/confirm-visit/" + id.String()
}

func (s *visitService) payload(v model.VisitRequest, actor auth.Principal) notify.Payload {
	return notify.Payload{
		RequestID:     v.ID.String(),
		CustomerName:  v.RequesterName,
		CustomerEmail: v.RequesterEmail,
		SiteLocation:  v.SiteLocation,
		SupportType:   v.SupportType,
		ProblemDesc:   v.ProblemDesc,
		RequestedDate: v.RequestedDate.UTC().Format(dateLayout),
		ScheduledDate: v.ScheduledDate,
		DurationHours: v.DurationHours,
		ActualHours:   v.ActualHours,
		Actor:         actor.Email,
		OccurredAt:    s.now().UTC(),
	}
}

// --- Helpers ---

// ownedBy hides requests of other customers behind NotFound. Staff see everything.
func ownedBy(v *model.VisitRequest, actor auth.Principal) error {
	if actor.Role != model.RoleCustomer {
		return nil
	}
	if id := actorID(actor); id == nil || *id != v.CustomerID {
		return errs.NotFound("visit request")
	}
	return nil
}

func toVisitResponse(v model.VisitRequest) VisitResponse {
	allowed := lifecycle.Allowed(v.State)
	actions := make([]string, 0, len(allowed))
	for _, a := range allowed {
		actions = append(actions, string(a))
	}
	return VisitResponse{
		ID:                  v.ID.String(),
		CustomerID:          v.CustomerID.String(),
		RequesterName:       v.RequesterName,
		RequesterEmail:      v.RequesterEmail,
		SiteLocation:        v.SiteLocation,
		SupportType:         v.SupportType,
		ProblemDesc:         v.ProblemDesc,
		RequestedDate:       v.RequestedDate.UTC().Format(dateLayout),
		EstimatedHours:      v.EstimatedHours,
		State:               string(v.State),
		Status:              v.State.Status(),
		VisitStatus:         v.State.VisitStatus(),
		AllowedActions:      actions,
		ScheduledDate:       v.ScheduledDate,
		DurationHours:       v.DurationHours,
		ActualStartTime:     v.ActualStartTime,
		ActualEndTime:       v.ActualEndTime,
		ActualHours:         v.ActualHours,
		TechnicianNotes:     v.TechnicianNotes,
		DocumentURL:         v.DocumentURL,
		RecordedBy:          v.RecordedBy,
		CustomerConfirmedAt: v.CustomerConfirmedAt,
		CustomerNotes:       v.CustomerNotes,
		RejectionReason:     v.RejectionReason,
		ApprovedBy:          v.ApprovedBy,
		ApprovedAt:          v.ApprovedAt,
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}
