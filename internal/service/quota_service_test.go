package service_test

import (
	"context"
	"sync"
	"testing"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/service"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestCheckAvailable(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "acme@example.com", 40, 12)

	bal, err := f.quotas.CheckAvailable(context.Background(), " ACME@example.com ")
	if err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if bal.TotalHours != 40 || bal.UsedHours != 12 || bal.Available != 28 {
		t.Errorf("balance = %+v, want 40/12/28", bal)
	}

	missing, err := f.quotas.CheckAvailable(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("CheckAvailable without record: %v", err)
	}
	if missing.Available != 0 || missing.TotalHours != 0 {
		t.Errorf("missing record should read as zero, got %+v", missing)
	}
}

func TestReserveCheck(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "some@example.com", 10, 9)
	f.customer(t, "none@example.com", 10, 10)

	tests := []struct {
		email string
		want  errs.Kind
	}{
		{"some@example.com", ""},
		{"none@example.com", errs.KindInsufficientQuota},
		{"unknown@example.com", errs.KindInsufficientQuota},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := f.quotas.ReserveCheck(context.Background(), tt.email)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("ReserveCheck: %v", err)
				}
				return
			}
			if got := errs.KindOf(err); got != tt.want {
				t.Fatalf("kind = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestDeduct(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "acme@example.com", 40, 38)
	ctx := context.Background()

	// 38 + 3 > 40 must be refused and leave the ledger untouched.
	_, err := f.quotas.Deduct(ctx, "acme@example.com", 3, "visit", nil)
	if errs.KindOf(err) != errs.KindInsufficientQuota {
		t.Fatalf("over-deduction kind = %q, want insufficient_quota (err %v)", errs.KindOf(err), err)
	}
	if q := f.quota(t, "acme@example.com"); q.UsedHours != 38 {
		t.Fatalf("used after refusal = %d, want 38", q.UsedHours)
	}
	if logs := f.quotaLogs(t, "acme@example.com"); len(logs) != 0 {
		t.Fatalf("refused deduction wrote %d log entries", len(logs))
	}

	// Exactly reaching the total is allowed.
	reqID := uuid.New()
	bal, err := f.quotas.Deduct(ctx, "acme@example.com", 2, "visit", &reqID)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if bal.UsedHours != 40 || bal.Available != 0 {
		t.Errorf("balance = %+v, want used 40 available 0", bal)
	}
	logs := f.quotaLogs(t, "acme@example.com")
	if len(logs) != 1 || logs[0].HoursDeducted != 2 || logs[0].VisitRequestID == nil || *logs[0].VisitRequestID != reqID {
		t.Errorf("quota log = %+v", logs)
	}

	if _, err := f.quotas.Deduct(ctx, "acme@example.com", 0, "noop", nil); errs.KindOf(err) != errs.KindValidation {
		t.Errorf("zero-hour deduction kind = %q, want validation_error", errs.KindOf(err))
	}
}

func TestDeductConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "acme@example.com", 10, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.quotas.Deduct(context.Background(), "acme@example.com", 3, "visit", nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("successful deductions = %d, want 3", succeeded)
	}
	q := f.quota(t, "acme@example.com")
	if q.UsedHours != 9 || q.UsedHours > q.TotalHours {
		t.Errorf("used = %d of %d, want 9", q.UsedHours, q.TotalHours)
	}
	if logs := f.quotaLogs(t, "acme@example.com"); len(logs) != succeeded {
		t.Errorf("log entries = %d, want %d", len(logs), succeeded)
	}
}

func TestSetTotal(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "acme@example.com", 40, 20)
	ctx := context.Background()

	bal, err := f.quotas.SetTotal(ctx, f.admin, service.SetQuotaTotalRequest{CustomerEmail: "acme@example.com", TotalHours: intPtr(60)})
	if err != nil {
		t.Fatalf("SetTotal: %v", err)
	}
	if bal.TotalHours != 60 || bal.Available != 40 {
		t.Errorf("balance = %+v", bal)
	}

	_, err = f.quotas.SetTotal(ctx, f.admin, service.SetQuotaTotalRequest{CustomerEmail: "acme@example.com", TotalHours: intPtr(10)})
	if errs.KindOf(err) != errs.KindInvalidRange {
		t.Fatalf("total below used kind = %q, want invalid_range", errs.KindOf(err))
	}
	if q := f.quota(t, "acme@example.com"); q.TotalHours != 60 {
		t.Errorf("total after refusal = %d, want 60", q.TotalHours)
	}

	created, err := f.quotas.SetTotal(ctx, f.admin, service.SetQuotaTotalRequest{
		CustomerEmail: "new@example.com", CustomerName: "New Co", TotalHours: intPtr(8),
	})
	if err != nil {
		t.Fatalf("SetTotal for new customer: %v", err)
	}
	if created.TotalHours != 8 || created.UsedHours != 0 || created.CustomerName != "New Co" {
		t.Errorf("created = %+v", created)
	}

	_, err = f.quotas.SetTotal(ctx, f.admin, service.SetQuotaTotalRequest{CustomerEmail: "acme@example.com", TotalHours: intPtr(-1)})
	if errs.KindOf(err) != errs.KindValidation {
		t.Errorf("negative total kind = %q, want validation_error", errs.KindOf(err))
	}
}

func TestSetUsed(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "acme@example.com", 40, 20)
	ctx := context.Background()

	tests := []struct {
		name  string
		email string
		used  int
		want  errs.Kind
	}{
		{"within range", "acme@example.com", 5, ""},
		{"equal to total", "acme@example.com", 40, ""},
		{"above total", "acme@example.com", 41, errs.KindInvalidRange},
		{"negative", "acme@example.com", -1, errs.KindInvalidRange},
		{"no record", "ghost@example.com", 1, errs.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal, err := f.quotas.SetUsed(ctx, f.admin, service.SetQuotaUsedRequest{CustomerEmail: tt.email, UsedHours: intPtr(tt.used)})
			if tt.want != "" {
				if got := errs.KindOf(err); got != tt.want {
					t.Fatalf("kind = %q, want %q (err %v)", got, tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetUsed: %v", err)
			}
			if bal.UsedHours != tt.used || bal.Available != 40-tt.used {
				t.Errorf("balance = %+v", bal)
			}
		})
	}
}

func TestListLogs(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "a@example.com", 10, 0)
	f.customer(t, "b@example.com", 10, 0)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "a@example.com", "b@example.com"} {
		if _, err := f.quotas.Deduct(ctx, email, 1, "visit", nil); err != nil {
			t.Fatalf("Deduct: %v", err)
		}
	}

	logs, total, err := f.quotas.ListLogs(ctx, "a@example.com", 1, 10)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Errorf("filtered logs = %d (total %d), want 2", len(logs), total)
	}

	_, total, err = f.quotas.ListLogs(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}
