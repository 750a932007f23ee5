package repository

import (
	"context"
	"time"

	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitFilter narrows list queries. Zero values mean "any".
type VisitFilter struct {
	States     []lifecycle.State
	CustomerID *uuid.UUID
	Email      string
	Page       int
	Limit      int
}

type StateCount struct {
	State lifecycle.State
	Total int64
}

type VisitRepository interface {
	Create(ctx context.Context, req *model.VisitRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.VisitRequest, error)
	List(ctx context.Context, filter VisitFilter) ([]model.VisitRequest, int64, error)
	// Transition applies updates only if the row is still in state from.
	// It returns the number of rows changed, 0 meaning the precondition no longer held.
	Transition(ctx context.Context, id uuid.UUID, from, to lifecycle.State, updates map[string]interface{}) (int64, error)
	// Confirm moves a completed visit to confirmed unless it was confirmed already.
	Confirm(ctx context.Context, id uuid.UUID, confirmedAt time.Time, notes *string) (int64, error)
	CountByState(ctx context.Context) ([]StateCount, error)
}

type visitRepository struct {
	db *gorm.DB
}

func NewVisitRepository(db *gorm.DB) VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) Create(ctx context.Context, req *model.VisitRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *visitRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.VisitRequest, error) {
	var req model.VisitRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *visitRepository) List(ctx context.Context, filter VisitFilter) ([]model.VisitRequest, int64, error) {
	var requests []model.VisitRequest
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if len(filter.States) > 0 {
			q = q.Where("state IN ?", filter.States)
		}
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.Email != "" {
			q = q.Where("requester_email = ?", filter.Email)
		}
		return q
	}

	if err := db.Model(&model.VisitRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope, paginate(filter.Page, filter.Limit)).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *visitRepository) Transition(ctx context.Context, id uuid.UUID, from, to lifecycle.State, updates map[string]interface{}) (int64, error) {
	values := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["state"] = to

	res := GetDB(ctx, r.db).Model(&model.VisitRequest{}).
		Where("id = ? AND state = ?", id, from).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *visitRepository) Confirm(ctx context.Context, id uuid.UUID, confirmedAt time.Time, notes *string) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.VisitRequest{}).
		Where("id = ? AND state = ? AND customer_confirmed_at IS NULL", id, lifecycle.StateVisitCompleted).
		Updates(map[string]interface{}{
			"state":                 lifecycle.StateConfirmed,
			"customer_confirmed_at": confirmedAt,
			"customer_notes":        notes,
		})
	return res.RowsAffected, res.Error
}

func (r *visitRepository) CountByState(ctx context.Context) ([]StateCount, error) {
	var counts []StateCount
	err := GetDB(ctx, r.db).Model(&model.VisitRequest{}).
		Select("state, COUNT(*) AS total").
		Group("state").
		Scan(&counts).Error
	return counts, err
}
