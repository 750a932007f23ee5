package service_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/model"
	"visit-tracker/internal/notify"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/service"

	"github.com/google/uuid"
)

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)

	v := f.submit(t, cust)
	if v.State != string(lifecycle.StatePending) || v.Status != lifecycle.StatusPending || v.VisitStatus != lifecycle.VisitPending {
		t.Errorf("new request state = %s/%s/%s", v.State, v.Status, v.VisitStatus)
	}
	if v.RequesterEmail != "acme@example.com" || v.RequestedDate != "2025-03-11" {
		t.Errorf("request = %+v", v)
	}

	events := f.notifier.sent()
	if len(events) != 1 || events[0].event != notify.EventRequestCreated {
		t.Errorf("events = %+v, want one request.created", events)
	}
}

func TestSubmitRemoteUsesSentinelSite(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)

	v, err := f.visits.Submit(context.Background(), cust, service.CreateVisitRequestDTO{
		SiteLocation:  "ignored for remote work",
		ProblemDesc:   "VPN drops every ten minutes",
		RequestedDate: "2025-03-10",
		SupportType:   model.SupportRemote,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.SiteLocation != model.RemoteSiteLocation {
		t.Errorf("site = %q, want %q", v.SiteLocation, model.RemoteSiteLocation)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)

	valid := service.CreateVisitRequestDTO{
		SiteLocation:  "HQ",
		ProblemDesc:   "Server room AC alarm",
		RequestedDate: "2025-03-12",
		SupportType:   model.SupportOnsite,
	}
	tests := []struct {
		name   string
		mutate func(*service.CreateVisitRequestDTO)
		field  string
	}{
		{"onsite without site", func(d *service.CreateVisitRequestDTO) { d.SiteLocation = "" }, "site_location"},
		{"short description", func(d *service.CreateVisitRequestDTO) { d.ProblemDesc = "broken" }, "problem_desc"},
		{"past date", func(d *service.CreateVisitRequestDTO) { d.RequestedDate = "2025-03-09" }, "requested_date"},
		{"bad date", func(d *service.CreateVisitRequestDTO) { d.RequestedDate = "next tuesday" }, "requested_date"},
		{"unknown type", func(d *service.CreateVisitRequestDTO) { d.SupportType = "carrier-pigeon" }, "support_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := valid
			tt.mutate(&dto)
			_, err := f.visits.Submit(context.Background(), cust, dto)
			if errs.KindOf(err) != errs.KindValidation {
				t.Fatalf("kind = %q, want validation_error (err %v)", errs.KindOf(err), err)
			}
			found := false
			for _, fe := range errs.FieldsOf(err) {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want %s", errs.FieldsOf(err), tt.field)
			}
		})
	}
}

func TestSubmitWithoutQuota(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "spent@example.com", 20, 20)

	_, err := f.visits.Submit(context.Background(), cust, service.CreateVisitRequestDTO{
		SiteLocation:  "HQ",
		ProblemDesc:   "Server room AC alarm",
		RequestedDate: "2025-03-12",
		SupportType:   model.SupportOnsite,
	})
	if errs.KindOf(err) != errs.KindInsufficientQuota {
		t.Fatalf("kind = %q, want insufficient_quota", errs.KindOf(err))
	}
	var count int64
	f.db.Model(&model.VisitRequest{}).Count(&count)
	if count != 0 {
		t.Errorf("refused submission stored %d rows", count)
	}
}

// Approving with a date lands on scheduled and sends exactly one notification.
func TestDecideApproveWithDate(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.submit(t, cust)

	got, err := f.visits.Decide(context.Background(), f.approver, v.ID, service.DecisionDTO{
		Status:        "approved",
		ScheduledDate: "2025-03-12T09:00",
		DurationHours: intPtr(2),
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got.Status != lifecycle.StatusApproved || got.VisitStatus != lifecycle.VisitScheduled {
		t.Errorf("status = %s/%s, want approved/scheduled", got.Status, got.VisitStatus)
	}
	if got.ApprovedBy == nil || *got.ApprovedBy != f.approver.Email || got.ApprovedAt == nil {
		t.Errorf("approval metadata = %v %v", got.ApprovedBy, got.ApprovedAt)
	}

	var scheduled []sentEvent
	for _, e := range f.notifier.sent() {
		if e.event == notify.EventRequestScheduled {
			scheduled = append(scheduled, e)
		}
	}
	if len(scheduled) != 1 {
		t.Fatalf("request.scheduled sent %d times, want 1", len(scheduled))
	}
	if scheduled[0].payload.RequestID != v.ID || scheduled[0].payload.ScheduledDate == nil {
		t.Errorf("payload = %+v", scheduled[0].payload)
	}
}

func TestDecideApproveThenSchedule(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.submit(t, cust)
	ctx := context.Background()

	got, err := f.visits.Decide(ctx, f.approver, v.ID, service.DecisionDTO{Status: "approved"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got.State != string(lifecycle.StateApproved) {
		t.Fatalf("state = %s, want approved", got.State)
	}

	_, err = f.visits.Schedule(ctx, f.approver, v.ID, service.ScheduleDTO{ScheduledDate: "2025-03-01T09:00"})
	if errs.KindOf(err) != errs.KindValidation {
		t.Errorf("past schedule kind = %q, want validation_error", errs.KindOf(err))
	}

	got, err = f.visits.Schedule(ctx, f.approver, v.ID, service.ScheduleDTO{ScheduledDate: "2025-03-14T13:30"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.State != string(lifecycle.StateScheduled) {
		t.Errorf("state = %s, want scheduled", got.State)
	}
}

func TestDecideReject(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.submit(t, cust)

	got, err := f.visits.Decide(context.Background(), f.approver, v.ID, service.DecisionDTO{
		Status:          "rejected",
		RejectionReason: "Covered by vendor warranty",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got.Status != lifecycle.StatusRejected || got.RejectionReason == nil || *got.RejectionReason != "Covered by vendor warranty" {
		t.Errorf("rejected request = %+v", got)
	}
	if len(got.AllowedActions) != 0 {
		t.Errorf("rejected request allows %v", got.AllowedActions)
	}

	// A second decision is refused: the request is no longer pending.
	_, err = f.visits.Decide(context.Background(), f.approver, v.ID, service.DecisionDTO{Status: "approved"})
	if errs.KindOf(err) != errs.KindInvalidTransition {
		t.Errorf("second decision kind = %q, want invalid_transition", errs.KindOf(err))
	}
}

// Two and a half hours on site bill as three.
func TestRecordVisitRoundsUpAndDeducts(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 10)
	v := f.scheduled(t, cust)

	got, err := f.record(f.technician, v.ID, "2025-03-10T07:00", "2025-03-10T09:30")
	if err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	if got.ActualHours == nil || *got.ActualHours != 3 {
		t.Fatalf("actual hours = %v, want 3", got.ActualHours)
	}
	if got.VisitStatus != lifecycle.VisitCompleted || got.RecordedBy == nil || *got.RecordedBy != f.technician.Email {
		t.Errorf("recorded request = %+v", got)
	}

	if q := f.quota(t, "acme@example.com"); q.UsedHours != 13 {
		t.Errorf("used = %d, want 13", q.UsedHours)
	}
	logs := f.quotaLogs(t, "acme@example.com")
	if len(logs) != 1 || logs[0].HoursDeducted != 3 || logs[0].VisitRequestID == nil || logs[0].VisitRequestID.String() != v.ID {
		t.Errorf("quota logs = %+v", logs)
	}

	var completed *sentEvent
	for _, e := range f.notifier.sent() {
		if e.event == notify.EventVisitCompleted {
			e := e
			completed = &e
		}
	}
	if completed == nil {
		t.Fatal("visit.completed was not sent")
	}
	if want := "https://support.example.com/confirm-visit/" + v.ID; completed.payload.ConfirmURL != want {
		t.Errorf("confirm url = %q, want %q", completed.payload.ConfirmURL, want)
	}
}

// 38 of 40 used and a three hour visit: the recording fails and nothing moves.
func TestRecordVisitInsufficientQuota(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 38)
	v := f.scheduled(t, cust)

	_, err := f.record(f.technician, v.ID, "2025-03-10T06:00", "2025-03-10T08:30")
	if errs.KindOf(err) != errs.KindInsufficientQuota {
		t.Fatalf("kind = %q, want insufficient_quota (err %v)", errs.KindOf(err), err)
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 38 {
		t.Errorf("used = %d, want 38", q.UsedHours)
	}
	after, err := f.visits.Get(context.Background(), f.admin, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.State != string(lifecycle.StateScheduled) || after.ActualHours != nil {
		t.Errorf("request moved despite refusal: %+v", after)
	}
}

func TestRecordVisitWindow(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	tests := []struct {
		name       string
		start, end string
	}{
		{"end before start", "2025-03-10T09:00", "2025-03-10T08:00"},
		{"zero length", "2025-03-10T09:00", "2025-03-10T09:00"},
		{"longer than a day", "2025-03-08T08:00", "2025-03-09T09:00"},
		{"in the future", "2025-03-10T09:00", "2025-03-10T12:00"},
		{"unparseable", "yesterday", "2025-03-10T09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.record(f.technician, v.ID, tt.start, tt.end)
			if errs.KindOf(err) != errs.KindValidation {
				t.Errorf("kind = %q, want validation_error (err %v)", errs.KindOf(err), err)
			}
		})
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 0 {
		t.Errorf("used = %d after invalid recordings", q.UsedHours)
	}
}

func TestRecordVisitReplayIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	if _, err := f.record(f.technician, v.ID, "2025-03-10T08:00", "2025-03-10T09:00"); err != nil {
		t.Fatalf("first RecordVisit: %v", err)
	}
	_, err := f.record(f.technician, v.ID, "2025-03-10T08:00", "2025-03-10T09:00")
	if errs.KindOf(err) != errs.KindInvalidTransition {
		t.Fatalf("replay kind = %q, want invalid_transition", errs.KindOf(err))
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 1 {
		t.Errorf("used = %d, want 1", q.UsedHours)
	}
}

func TestRecordVisitConcurrent(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.record(f.technician, v.ID, "2025-03-10T07:00", "2025-03-10T09:00")
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var ok, lost int
	for err := range errCh {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrInvalidTransition):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || lost != 1 {
		t.Fatalf("succeeded %d, lost %d; want 1 and 1", ok, lost)
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 2 {
		t.Errorf("used = %d, want 2", q.UsedHours)
	}
	if logs := f.quotaLogs(t, "acme@example.com"); len(logs) != 1 {
		t.Errorf("quota logs = %d, want 1", len(logs))
	}
}

// staleVisits serves the first snapshot of every request forever, the way two callers
// that read before either wrote would see it.
type staleVisits struct {
	repository.VisitRepository
	mu   sync.Mutex
	seen map[uuid.UUID]model.VisitRequest
}

func (r *staleVisits) FindByID(ctx context.Context, id uuid.UUID) (*model.VisitRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.seen[id]; ok && v.State == lifecycle.StateScheduled {
		return &v, nil
	}
	v, err := r.VisitRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.seen[id] = *v
	return v, nil
}

func TestRecordVisitStaleReadIsConflict(t *testing.T) {
	f := newFixtureWith(t, func(inner repository.VisitRepository) repository.VisitRepository {
		return &staleVisits{VisitRepository: inner, seen: make(map[uuid.UUID]model.VisitRequest)}
	})
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	if _, err := f.record(f.technician, v.ID, "2025-03-10T07:00", "2025-03-10T09:00"); err != nil {
		t.Fatalf("first RecordVisit: %v", err)
	}
	_, err := f.record(f.technician, v.ID, "2025-03-10T07:00", "2025-03-10T09:00")
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("stale recording kind = %q, want conflict (err %v)", errs.KindOf(err), err)
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 2 {
		t.Errorf("used = %d, want 2", q.UsedHours)
	}
}

func TestRecordVisitStoresDocument(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	body := []byte("%PDF-1.4 signed job sheet")
	got, err := f.visits.RecordVisit(context.Background(), f.technician, v.ID, service.RecordVisitDTO{
		ActualStartTime: "2025-03-10T08:00",
		ActualEndTime:   "2025-03-10T09:00",
	}, &service.DocumentUpload{
		Filename:    "jobsheet.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	if got.DocumentURL == nil || !strings.HasPrefix(*got.DocumentURL, "/uploads/visits/"+v.ID+"/") {
		t.Fatalf("document url = %v", got.DocumentURL)
	}
	key := strings.TrimPrefix(*got.DocumentURL, "/uploads/")
	stored, err := os.ReadFile(filepath.Join(f.store.BaseDir(), filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read stored document: %v", err)
	}
	if !bytes.Equal(stored, body) {
		t.Errorf("stored %q", stored)
	}
}

func TestRecordVisitDiscardsDocumentOnFailure(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 1, 0)
	v := f.scheduled(t, cust)

	body := []byte("\x89PNG\r\n\x1a\n")
	_, err := f.visits.RecordVisit(context.Background(), f.technician, v.ID, service.RecordVisitDTO{
		ActualStartTime: "2025-03-10T06:00",
		ActualEndTime:   "2025-03-10T09:00",
	}, &service.DocumentUpload{ContentType: "image/png", Size: int64(len(body)), Body: bytes.NewReader(body)})
	if errs.KindOf(err) != errs.KindInsufficientQuota {
		t.Fatalf("kind = %q, want insufficient_quota", errs.KindOf(err))
	}

	var files int
	filepath.WalkDir(f.store.BaseDir(), func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files++
		}
		return nil
	})
	if files != 0 {
		t.Errorf("%d orphaned documents left behind", files)
	}
}

func TestRecordVisitRejectsDocumentType(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)

	_, err := f.visits.RecordVisit(context.Background(), f.technician, v.ID, service.RecordVisitDTO{
		ActualStartTime: "2025-03-10T08:00",
		ActualEndTime:   "2025-03-10T09:00",
	}, &service.DocumentUpload{ContentType: "text/html", Size: 10, Body: strings.NewReader("<b>hi</b>!")})
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("kind = %q, want validation_error", errs.KindOf(err))
	}
}

func TestRejectVisit(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)
	ctx := context.Background()

	if _, err := f.visits.RejectVisit(ctx, f.technician, v.ID, service.RejectVisitDTO{Reason: "  "}); errs.KindOf(err) != errs.KindValidation {
		t.Errorf("blank reason kind = %q, want validation_error", errs.KindOf(err))
	}

	got, err := f.visits.RejectVisit(ctx, f.technician, v.ID, service.RejectVisitDTO{Reason: "Site closed for holiday"})
	if err != nil {
		t.Fatalf("RejectVisit: %v", err)
	}
	if got.State != string(lifecycle.StateRejected) {
		t.Errorf("state = %s, want rejected", got.State)
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 0 {
		t.Errorf("rejecting a visit deducted %d hours", q.UsedHours)
	}

	_, err = f.record(f.technician, v.ID, "2025-03-10T08:00", "2025-03-10T09:00")
	if errs.KindOf(err) != errs.KindInvalidTransition {
		t.Errorf("record after reject kind = %q, want invalid_transition", errs.KindOf(err))
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	other := f.customer(t, "other@example.com", 40, 0)
	v := f.scheduled(t, cust)
	ctx := context.Background()

	// Not yet visited.
	_, err := f.visits.Confirm(ctx, cust, v.ID, service.ConfirmVisitDTO{})
	if k := errs.KindOf(err); k != errs.KindInvalidTransition {
		t.Fatalf("confirm of scheduled visit kind = %q, want invalid_transition", k)
	}

	if _, err := f.record(f.technician, v.ID, "2025-03-10T08:00", "2025-03-10T09:00"); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}

	_, err = f.visits.Confirm(ctx, other, v.ID, service.ConfirmVisitDTO{})
	if errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("foreign confirm kind = %q, want not_found", errs.KindOf(err))
	}

	got, err := f.visits.Confirm(ctx, cust, v.ID, service.ConfirmVisitDTO{CustomerNotes: "All good, thanks"})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.VisitStatus != lifecycle.VisitConfirmed || got.CustomerConfirmedAt == nil || got.CustomerNotes == nil {
		t.Errorf("confirmed request = %+v", got)
	}

	_, err = f.visits.Confirm(ctx, cust, v.ID, service.ConfirmVisitDTO{})
	if errs.KindOf(err) != errs.KindInvalidTransition {
		t.Errorf("second confirm kind = %q, want invalid_transition", errs.KindOf(err))
	}
}

func TestGetHidesForeignRequests(t *testing.T) {
	f := newFixture(t)
	owner := f.customer(t, "acme@example.com", 40, 0)
	other := f.customer(t, "other@example.com", 40, 0)
	v := f.submit(t, owner)
	ctx := context.Background()

	if _, err := f.visits.Get(ctx, owner, v.ID); err != nil {
		t.Errorf("owner Get: %v", err)
	}
	if _, err := f.visits.Get(ctx, f.admin, v.ID); err != nil {
		t.Errorf("admin Get: %v", err)
	}
	if _, err := f.visits.Get(ctx, other, v.ID); errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("foreign Get kind = %q, want not_found", errs.KindOf(err))
	}
	if _, err := f.visits.Get(ctx, owner, "not-a-uuid"); errs.KindOf(err) == "" {
		t.Errorf("malformed id accepted")
	}
	if _, err := f.visits.Get(ctx, owner, uuid.NewString()); errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("unknown id kind = %q, want not_found", errs.KindOf(err))
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	a := f.customer(t, "a@example.com", 40, 0)
	b := f.customer(t, "b@example.com", 40, 0)
	f.submit(t, a)
	f.scheduled(t, a)
	f.submit(t, b)
	ctx := context.Background()

	own, total, err := f.visits.ListOwn(ctx, a, 1, 10)
	if err != nil {
		t.Fatalf("ListOwn: %v", err)
	}
	if total != 2 || len(own) != 2 {
		t.Errorf("own requests = %d (total %d), want 2", len(own), total)
	}

	pending, total, err := f.visits.List(ctx, service.VisitFilter{States: []lifecycle.State{lifecycle.StatePending}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(pending) != 2 {
		t.Errorf("pending = %d (total %d), want 2", len(pending), total)
	}

	byEmail, _, err := f.visits.List(ctx, service.VisitFilter{Email: "B@example.com"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byEmail) != 1 || byEmail[0].RequesterEmail != "b@example.com" {
		t.Errorf("by email = %+v", byEmail)
	}
}

func TestTransitionsAreAudited(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "acme@example.com", 40, 0)
	v := f.scheduled(t, cust)
	if _, err := f.record(f.technician, v.ID, "2025-03-10T08:00", "2025-03-10T09:00"); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}

	var actions []string
	f.db.Model(&model.AuditLog{}).Where("entity_id = ?", v.ID).Order("created_at ASC").Pluck("action", &actions)
	want := map[string]bool{
		model.ActionCreateVisitRequest: false,
		model.ActionApproveRequest:     false,
		model.ActionRecordVisit:        false,
	}
	for _, a := range actions {
		if _, ok := want[a]; ok {
			want[a] = true
		}
	}
	for a, seen := range want {
		if !seen {
			t.Errorf("audit log missing %s (have %v)", a, actions)
		}
	}
}
