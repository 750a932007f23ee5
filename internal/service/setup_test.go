package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/database"
	"visit-tracker/internal/model"
	"visit-tracker/internal/notify"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/service"
	"visit-tracker/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testNow is a Monday morning; every fixture runs on this clock.
var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type sentEvent struct {
	event   notify.Event
	payload notify.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event, p notify.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{event: event, payload: p})
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type fixture struct {
	db       *gorm.DB
	notifier *recordingNotifier
	store    *storage.LocalStore
	tokens   *auth.TokenManager

	visitRepo repository.VisitRepository
	quotaRepo repository.QuotaRepository

	quotas    service.QuotaService
	visits    service.VisitService
	users     service.UserService
	customers service.CustomerService
	dashboard service.DashboardService
	audit     service.AuditService

	admin      auth.Principal
	approver   auth.Principal
	technician auth.Principal
}

// setupDB opens a private in-memory database with the full schema.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// One connection keeps SQLite from reporting busy under concurrent writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test replace the visit repository, e.g. to simulate stale reads.
func newFixtureWith(t *testing.T, wrap func(repository.VisitRepository) repository.VisitRepository) *fixture {
	t.Helper()
	db := setupDB(t)

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	f := &fixture{
		db:        db,
		notifier:  &recordingNotifier{},
		store:     store,
		tokens:    auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour),
		visitRepo: repository.NewVisitRepository(db),
		quotaRepo: repository.NewQuotaRepository(db),
	}
	visitRepo := f.visitRepo
	if wrap != nil {
		visitRepo = wrap(visitRepo)
	}

	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	f.quotas = service.NewQuotaService(f.quotaRepo, auditRepo, tx)
	f.visits = service.NewVisitService(service.VisitDeps{
		Visits:        visitRepo,
		Quotas:        f.quotas,
		Audit:         auditRepo,
		Tx:            tx,
		Store:         store,
		Notifier:      f.notifier,
		Location:      time.UTC,
		PublicBaseURL: "https://support.example.com/",
		Now:           func() time.Time { return testNow },
	})
	f.users = service.NewUserService(userRepo, auditRepo, tx, f.tokens)
	f.customers = service.NewCustomerService(userRepo, repository.NewLocationRepository(db), f.quotaRepo, auditRepo, tx, 40)
	f.dashboard = service.NewDashboardService(f.visitRepo, f.quotas)
	f.audit = service.NewAuditService(auditRepo, time.UTC)

	f.admin = f.staff(t, "admin@example.com", model.RoleAdmin)
	f.approver = f.staff(t, "approver@example.com", model.RoleApprover)
	f.technician = f.staff(t, "tech@example.com", model.RoleTechnician)
	return f
}

func (f *fixture) staff(t *testing.T, email, role string) auth.Principal {
	t.Helper()
	u := model.User{Name: role, Email: email, Password: "x", Role: role}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return auth.Principal{UserID: u.ID.String(), Email: email, Name: role, Role: role}
}

// customer creates a customer account with a quota of total hours, used already consumed.
func (f *fixture) customer(t *testing.T, email string, total, used int) auth.Principal {
	t.Helper()
	u := model.User{Name: "Customer " + email, Email: email, Password: "x", Role: model.RoleCustomer}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	q := model.CustomerQuota{CustomerEmail: email, CustomerName: u.Name, TotalHours: total, UsedHours: used}
	if err := f.db.Create(&q).Error; err != nil {
		t.Fatalf("create quota: %v", err)
	}
	return auth.Principal{UserID: u.ID.String(), Email: email, Name: u.Name, Role: model.RoleCustomer}
}

func (f *fixture) submit(t *testing.T, actor auth.Principal) service.VisitResponse {
	t.Helper()
	v, err := f.visits.Submit(context.Background(), actor, service.CreateVisitRequestDTO{
		SiteLocation:  "Warehouse 3, Bang Na",
		ProblemDesc:   "Label printer drops every second job",
		RequestedDate: "2025-03-11",
		SupportType:   model.SupportOnsite,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return v
}

// scheduled walks a fresh request to the scheduled state.
func (f *fixture) scheduled(t *testing.T, actor auth.Principal) service.VisitResponse {
	t.Helper()
	v := f.submit(t, actor)
	v, err := f.visits.Decide(context.Background(), f.approver, v.ID, service.DecisionDTO{
		Status:        "approved",
		ScheduledDate: "2025-03-12T09:00",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return v
}

func (f *fixture) record(actor auth.Principal, id, start, end string) (service.VisitResponse, error) {
	return f.visits.RecordVisit(context.Background(), actor, id, service.RecordVisitDTO{
		ActualStartTime: start,
		ActualEndTime:   end,
		TechnicianNotes: "Replaced fuser",
	}, nil)
}

func (f *fixture) quota(t *testing.T, email string) model.CustomerQuota {
	t.Helper()
	var q model.CustomerQuota
	if err := f.db.First(&q, "customer_email = ?", email).Error; err != nil {
		t.Fatalf("load quota: %v", err)
	}
	return q
}

func (f *fixture) quotaLogs(t *testing.T, email string) []model.QuotaLog {
	t.Helper()
	var logs []model.QuotaLog
	if err := f.db.Where("customer_email = ?", email).Find(&logs).Error; err != nil {
		t.Fatalf("load quota logs: %v", err)
	}
	return logs
}
