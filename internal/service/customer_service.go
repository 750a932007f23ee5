package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/model"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/validation"

	"gorm.io/gorm"
)

type CreateCustomerRequest struct {
	Name       string `json:"name" form:"name" validate:"required,min=2,max=255"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	Password   string `json:"password" form:"password" validate:"required,min=8,max=72"`
	Phone      string `json:"phone" form:"phone" validate:"max=30"`
	Location   string `json:"location" form:"location" validate:"max=100"`
	TotalHours *int   `json:"total_hours" form:"total_hours" validate:"omitempty,gte=0,lte=100000"`
}

type CreateLocationRequest struct {
	LocationName string `json:"location_name" form:"location_name" validate:"required,min=1,max=100"`
}

type CustomerResponse struct {
	UserResponse
	Quota QuotaBalance `json:"quota"`
}

type LocationResponse struct {
	ID           string `json:"id"`
	LocationName string `json:"location_name"`
	CreatedAt    string `json:"created_at"`
}

// CustomerService manages customer accounts and their saved sites.
type CustomerService interface {
	CreateCustomer(ctx context.Context, actor auth.Principal, req CreateCustomerRequest) (CustomerResponse, error)
	ListCustomers(ctx context.Context, page, limit int) ([]CustomerResponse, int64, error)
	ListLocations(ctx context.Context, actor auth.Principal) ([]LocationResponse, error)
	AddLocation(ctx context.Context, actor auth.Principal, req CreateLocationRequest) (LocationResponse, error)
	DeleteLocation(ctx context.Context, actor auth.Principal, id string) error
}

type customerService struct {
	users        repository.UserRepository
	locations    repository.LocationRepository
	quotas       repository.QuotaRepository
	audit        repository.AuditRepository
	tx           repository.TransactionManager
	defaultQuota int
}

func NewCustomerService(users repository.UserRepository, locations repository.LocationRepository, quotas repository.QuotaRepository,
	audit repository.AuditRepository, tx repository.TransactionManager, defaultQuota int) CustomerService {
	return &customerService{
		users:        users,
		locations:    locations,
		quotas:       quotas,
		audit:        audit,
		tx:           tx,
		defaultQuota: defaultQuota,
	}
}

// CreateCustomer writes the account, an optional first location and the quota record together.
func (s *customerService) CreateCustomer(ctx context.Context, actor auth.Principal, req CreateCustomerRequest) (CustomerResponse, error) {
	if err := validation.Struct(req); err != nil {
		return CustomerResponse{}, err
	}
	email := normalizeEmail(req.Email)
	total := s.defaultQuota
	if req.TotalHours != nil {
		total = *req.TotalHours
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return CustomerResponse{}, err
	}
	user := model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Phone:    req.Phone,
		Password: hashed,
		Role:     model.RoleCustomer,
	}
	quota := model.CustomerQuota{CustomerEmail: email, CustomerName: user.Name, TotalHours: total}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := ensureEmailFree(txCtx, s.users, email); err != nil {
			return err
		}
		if err := s.users.Create(txCtx, &user); err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}

		if name := strings.TrimSpace(req.Location); name != "" {
			loc := model.CustomerLocation{CustomerID: user.ID, LocationName: name}
			if err := s.locations.Create(txCtx, &loc); err != nil {
				return fmt.Errorf("failed to create location: %w", err)
			}
		}

		// A quota may predate the account when an admin set it up first.
		existing, err := s.quotas.FindByEmail(txCtx, email)
		switch {
		case err == nil:
			quota = *existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.quotas.Create(txCtx, &quota); err != nil {
				return fmt.Errorf("failed to create quota: %w", err)
			}
		default:
			return fmt.Errorf("failed to load quota: %w", err)
		}

		return writeAudit(txCtx, s.audit, actor, model.ActionCreateCustomer, user.ID.String(), email, map[string]interface{}{
			"total_hours": quota.TotalHours,
			"location":    req.Location,
		})
	})
	if err != nil {
		return CustomerResponse{}, err
	}

	return CustomerResponse{UserResponse: mapToResponse(&user), Quota: toBalance(quota)}, nil
}

func (s *customerService) ListCustomers(ctx context.Context, page, limit int) ([]CustomerResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	users, total, err := s.users.ListByRole(ctx, model.RoleCustomer, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	quotas, err := s.quotas.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotas: %w", err)
	}
	byEmail := make(map[string]model.CustomerQuota, len(quotas))
	for _, q := range quotas {
		byEmail[q.CustomerEmail] = q
	}

	out := make([]CustomerResponse, 0, len(users))
	for i := range users {
		q, ok := byEmail[users[i].Email]
		if !ok {
			q = model.CustomerQuota{CustomerEmail: users[i].Email}
		}
		out = append(out, CustomerResponse{UserResponse: mapToResponse(&users[i]), Quota: toBalance(q)})
	}
	return out, total, nil
}

func (s *customerService) ListLocations(ctx context.Context, actor auth.Principal) ([]LocationResponse, error) {
	customerID := actorID(actor)
	if customerID == nil {
		return nil, errs.New(errs.KindUnauthorized, "sign in again to view your locations")
	}
	locs, err := s.locations.ListByCustomer(ctx, *customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	out := make([]LocationResponse, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationResponse(l))
	}
	return out, nil
}

func (s *customerService) AddLocation(ctx context.Context, actor auth.Principal, req CreateLocationRequest) (LocationResponse, error) {
	if err := validation.Struct(req); err != nil {
		return LocationResponse{}, err
	}
	name := strings.TrimSpace(req.LocationName)
	if name == "" {
		return LocationResponse{}, validation.Field("location_name", "is required")
	}
	customerID := actorID(actor)
	if customerID == nil {
		return LocationResponse{}, errs.New(errs.KindUnauthorized, "sign in again to add a location")
	}

	loc := model.CustomerLocation{CustomerID: *customerID, LocationName: name}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.locations.LockCustomer(txCtx, *customerID); err != nil {
			return notFoundOr(err, "customer")
		}
		existing, err := s.locations.ListByCustomer(txCtx, *customerID)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		if len(existing) >= model.MaxCustomerLocations {
			return errs.Newf(errs.KindConflict, "you can save at most %d locations; delete one first", model.MaxCustomerLocations)
		}
		for _, e := range existing {
			if strings.EqualFold(e.LocationName, name) {
				return errs.Conflict("a location with this name already exists")
			}
		}
		if err := s.locations.Create(txCtx, &loc); err != nil {
			return fmt.Errorf("failed to create location: %w", err)
		}
		return nil
	})
	if err != nil {
		return LocationResponse{}, err
	}
	return toLocationResponse(loc), nil
}

func (s *customerService) DeleteLocation(ctx context.Context, actor auth.Principal, id string) error {
	locID, err := parseID(id, "location")
	if err != nil {
		return err
	}
	customerID := actorID(actor)
	if customerID == nil {
		return errs.New(errs.KindUnauthorized, "sign in again to delete a location")
	}
	rows, err := s.locations.Delete(ctx, *customerID, locID)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("location")
	}
	return nil
}

func toLocationResponse(l model.CustomerLocation) LocationResponse {
	return LocationResponse{
		ID:           l.ID.String(),
		LocationName: l.LocationName,
		CreatedAt:    l.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
