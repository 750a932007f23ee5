package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/metrics"
	"visit-tracker/internal/model"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type SetQuotaTotalRequest struct {
	CustomerEmail string `json:"customer_email" form:"customer_email" validate:"required,email"`
	CustomerName  string `json:"customer_name" form:"customer_name" validate:"max=255"`
	TotalHours    *int   `json:"total_hours" form:"total_hours" validate:"required,gte=0,lte=100000"`
}

type SetQuotaUsedRequest struct {
	CustomerEmail string `json:"customer_email" form:"customer_email" validate:"required,email"`
	UsedHours     *int   `json:"used_hours" form:"used_hours" validate:"required"`
}

// QuotaBalance is a customer's balance; Available is derived.
type QuotaBalance struct {
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	TotalHours    int    `json:"total_hours"`
	UsedHours     int    `json:"used_hours"`
	Available     int    `json:"available_hours"`
}

type QuotaLogResponse struct {
	ID             string    `json:"id"`
	CustomerEmail  string    `json:"customer_email"`
	VisitRequestID *string   `json:"visit_request_id"`
	HoursDeducted  int       `json:"hours_deducted"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// --- Interface ---

// QuotaService is the hour ledger. Deduct is the only path that increases used hours
// outside of manual correction.
type QuotaService interface {
	CheckAvailable(ctx context.Context, email string) (QuotaBalance, error)
	ReserveCheck(ctx context.Context, email string) error
	Deduct(ctx context.Context, email string, hours int, reason string, requestID *uuid.UUID) (QuotaBalance, error)
	SetTotal(ctx context.Context, actor auth.Principal, req SetQuotaTotalRequest) (QuotaBalance, error)
	SetUsed(ctx context.Context, actor auth.Principal, req SetQuotaUsedRequest) (QuotaBalance, error)
	List(ctx context.Context) ([]QuotaBalance, error)
	ListLogs(ctx context.Context, email string, page, limit int) ([]QuotaLogResponse, int64, error)
}

type quotaService struct {
	quotas repository.QuotaRepository
	audit  repository.AuditRepository
	tx     repository.TransactionManager
}

func NewQuotaService(quotas repository.QuotaRepository, audit repository.AuditRepository, tx repository.TransactionManager) QuotaService {
	return &quotaService{quotas: quotas, audit: audit, tx: tx}
}

// --- Implementation ---

func (s *quotaService) CheckAvailable(ctx context.Context, email string) (QuotaBalance, error) {
	email = normalizeEmail(email)
	q, err := s.quotas.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No record is a zero quota, not an error.
		return QuotaBalance{CustomerEmail: email}, nil
	}
	if err != nil {
		return QuotaBalance{}, fmt.Errorf("failed to load quota: %w", err)
	}
	return toBalance(*q), nil
}

func (s *quotaService) ReserveCheck(ctx context.Context, email string) error {
	bal, err := s.CheckAvailable(ctx, email)
	if err != nil {
		return err
	}
	if bal.Available <= 0 {
		return errs.New(errs.KindInsufficientQuota, "no support hours remaining; contact your administrator to extend your quota")
	}
	return nil
}

func (s *quotaService) Deduct(ctx context.Context, email string, hours int, reason string, requestID *uuid.UUID) (QuotaBalance, error) {
	if hours <= 0 {
		return QuotaBalance{}, validation.Field("hours", "must be positive")
	}
	email = normalizeEmail(email)

	var bal QuotaBalance
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rows, err := s.quotas.Deduct(txCtx, email, hours)
		if err != nil {
			return fmt.Errorf("failed to deduct quota: %w", err)
		}
		if rows == 0 {
			metrics.DeductionsRejected.Inc()
			return s.insufficient(txCtx, email, hours)
		}

		entry := model.QuotaLog{
			CustomerEmail:  email,
			VisitRequestID: requestID,
			HoursDeducted:  hours,
			Reason:         reason,
		}
		if err := s.quotas.AppendLog(txCtx, &entry); err != nil {
			return fmt.Errorf("failed to append quota log: %w", err)
		}

		q, err := s.quotas.FindByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("failed to reload quota: %w", err)
		}
		bal = toBalance(*q)
		return nil
	})
	if err != nil {
		return QuotaBalance{}, err
	}

	metrics.HoursDeducted.Add(float64(hours))
	return bal, nil
}

// insufficient explains why a conditional deduction matched no row.
func (s *quotaService) insufficient(ctx context.Context, email string, hours int) error {
	q, err := s.quotas.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Newf(errs.KindInsufficientQuota, "customer %s has no support quota; %d hour(s) required", email, hours)
	}
	if err != nil {
		return fmt.Errorf("failed to load quota: %w", err)
	}
	return errs.Newf(errs.KindInsufficientQuota,
		"insufficient quota: %d hour(s) required, %d of %d available", hours, q.AvailableHours(), q.TotalHours)
}

func (s *quotaService) SetTotal(ctx context.Context, actor auth.Principal, req SetQuotaTotalRequest) (QuotaBalance, error) {
	if err := validation.Struct(req); err != nil {
		return QuotaBalance{}, err
	}
	email := normalizeEmail(req.CustomerEmail)
	total := *req.TotalHours

	var bal QuotaBalance
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.quotas.FindByEmail(txCtx, email)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			q := model.CustomerQuota{CustomerEmail: email, CustomerName: req.CustomerName, TotalHours: total}
			if err := s.quotas.Create(txCtx, &q); err != nil {
				return fmt.Errorf("failed to create quota: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load quota: %w", err)
		default:
			rows, err := s.quotas.SetTotal(txCtx, email, total, req.CustomerName)
			if err != nil {
				return fmt.Errorf("failed to update quota: %w", err)
			}
			if rows == 0 {
				return errs.Newf(errs.KindInvalidRange,
					"total hours %d is below the %d hour(s) already used", total, existing.UsedHours)
			}
		}

		q, err := s.quotas.FindByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("failed to reload quota: %w", err)
		}
		bal = toBalance(*q)

		return writeAudit(txCtx, s.audit, actor, model.ActionSetQuotaTotal, q.ID.String(), email, map[string]interface{}{
			"total_hours": total,
		})
	})
	if err != nil {
		return QuotaBalance{}, err
	}
	return bal, nil
}

func (s *quotaService) SetUsed(ctx context.Context, actor auth.Principal, req SetQuotaUsedRequest) (QuotaBalance, error) {
	if err := validation.Struct(req); err != nil {
		return QuotaBalance{}, err
	}
	email := normalizeEmail(req.CustomerEmail)
	used := *req.UsedHours
	if used < 0 {
		return QuotaBalance{}, errs.New(errs.KindInvalidRange, "used hours must not be negative")
	}

	var bal QuotaBalance
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.quotas.FindByEmail(txCtx, email)
		if err != nil {
			return notFoundOr(err, "quota")
		}

		rows, err := s.quotas.SetUsed(txCtx, email, used)
		if err != nil {
			return fmt.Errorf("failed to update quota: %w", err)
		}
		if rows == 0 {
			return errs.Newf(errs.KindInvalidRange, "used hours must be between 0 and %d", existing.TotalHours)
		}

		q, err := s.quotas.FindByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("failed to reload quota: %w", err)
		}
		bal = toBalance(*q)

		return writeAudit(txCtx, s.audit, actor, model.ActionSetQuotaUsed, q.ID.String(), email, map[string]interface{}{
			"previous_used_hours": existing.UsedHours,
			"used_hours":          used,
		})
	})
	if err != nil {
		return QuotaBalance{}, err
	}
	return bal, nil
}

func (s *quotaService) List(ctx context.Context) ([]QuotaBalance, error) {
	quotas, err := s.quotas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotas: %w", err)
	}
	out := make([]QuotaBalance, 0, len(quotas))
	for _, q := range quotas {
		out = append(out, toBalance(q))
	}
	return out, nil
}

func (s *quotaService) ListLogs(ctx context.Context, email string, page, limit int) ([]QuotaLogResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	logs, total, err := s.quotas.ListLogs(ctx, normalizeEmail(email), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quota logs: %w", err)
	}
	out := make([]QuotaLogResponse, 0, len(logs))
	for _, l := range logs {
		r := QuotaLogResponse{
			ID:            l.ID.String(),
			CustomerEmail: l.CustomerEmail,
			HoursDeducted: l.HoursDeducted,
			Reason:        l.Reason,
			CreatedAt:     l.CreatedAt,
		}
		if l.VisitRequestID != nil {
			id := l.VisitRequestID.String()
			r.VisitRequestID = &id
		}
		out = append(out, r)
	}
	return out, total, nil
}

// --- Helpers ---

func toBalance(q model.CustomerQuota) QuotaBalance {
	return QuotaBalance{
		CustomerEmail: q.CustomerEmail,
		CustomerName:  q.CustomerName,
		TotalHours:    q.TotalHours,
		UsedHours:     q.UsedHours,
		Available:     q.AvailableHours(),
	}
}
