package repository

import (
	"context"

	"visit-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LocationRepository interface {
	Create(ctx context.Context, loc *model.CustomerLocation) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.CustomerLocation, error)
	// LockCustomer serialises location changes for one customer inside a transaction.
	LockCustomer(ctx context.Context, customerID uuid.UUID) error
	Delete(ctx context.Context, customerID, id uuid.UUID) (int64, error)
}

type locationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(ctx context.Context, loc *model.CustomerLocation) error {
	return GetDB(ctx, r.db).Create(loc).Error
}

func (r *locationRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.CustomerLocation, error) {
	var locs []model.CustomerLocation
	err := GetDB(ctx, r.db).Where("customer_id = ?", customerID).Order("created_at ASC").Find(&locs).Error
	return locs, err
}

func (r *locationRepository) LockCustomer(ctx context.Context, customerID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	var user model.User
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, "id = ?", customerID).Error
}

func (r *locationRepository) Delete(ctx context.Context, customerID, id uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("id = ? AND customer_id = ?", id, customerID).Delete(&model.CustomerLocation{})
	return res.RowsAffected, res.Error
}
