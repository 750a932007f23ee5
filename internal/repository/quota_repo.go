package repository

import (
	"context"

	"visit-tracker/internal/model"

	"gorm.io/gorm"
)

type QuotaRepository interface {
	Create(ctx context.Context, q *model.CustomerQuota) error
	FindByEmail(ctx context.Context, email string) (*model.CustomerQuota, error)
	List(ctx context.Context) ([]model.CustomerQuota, error)
	// Deduct adds hours to used_hours only when the result stays within total_hours.
	// The check and the increment are one statement; 0 rows means the deduction was refused.
	Deduct(ctx context.Context, email string, hours int) (int64, error)
	// SetTotal updates total_hours unless that would drop it below used_hours.
	SetTotal(ctx context.Context, email string, total int, name string) (int64, error)
	// SetUsed overwrites used_hours when 0 <= used <= total_hours.
	SetUsed(ctx context.Context, email string, used int) (int64, error)
	AppendLog(ctx context.Context, entry *model.QuotaLog) error
	ListLogs(ctx context.Context, email string, page, limit int) ([]model.QuotaLog, int64, error)
}

type quotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

func (r *quotaRepository) Create(ctx context.Context, q *model.CustomerQuota) error {
	return GetDB(ctx, r.db).Create(q).Error
}

func (r *quotaRepository) FindByEmail(ctx context.Context, email string) (*model.CustomerQuota, error) {
	var q model.CustomerQuota
	if err := GetDB(ctx, r.db).First(&q, "customer_email = ?", email).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotaRepository) List(ctx context.Context) ([]model.CustomerQuota, error) {
	var quotas []model.CustomerQuota
	err := GetDB(ctx, r.db).Order("customer_email ASC").Find(&quotas).Error
	return quotas, err
}

func (r *quotaRepository) Deduct(ctx context.Context, email string, hours int) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.CustomerQuota{}).
		Where("customer_email = ? AND used_hours + ? <= total_hours", email, hours).
		Update("used_hours", gorm.Expr("used_hours + ?", hours))
	return res.RowsAffected, res.Error
}

func (r *quotaRepository) SetTotal(ctx context.Context, email string, total int, name string) (int64, error) {
	values := map[string]interface{}{"total_hours": total}
	if name != "" {
		values["customer_name"] = name
	}
	res := GetDB(ctx, r.db).Model(&model.CustomerQuota{}).
		Where("customer_email = ? AND used_hours <= ?", email, total).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *quotaRepository) SetUsed(ctx context.Context, email string, used int) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.CustomerQuota{}).
		Where("customer_email = ? AND total_hours >= ?", email, used).
		Update("used_hours", used)
	return res.RowsAffected, res.Error
}

func (r *quotaRepository) AppendLog(ctx context.Context, entry *model.QuotaLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *quotaRepository) ListLogs(ctx context.Context, email string, page, limit int) ([]model.QuotaLog, int64, error) {
	var logs []model.QuotaLog
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.QuotaLog{})
	if email != "" {
		query = query.Where("customer_email = ?", email)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := db.Order("created_at DESC").Scopes(paginate(page, limit))
	if email != "" {
		fetch = fetch.Where("customer_email = ?", email)
	}
	if err := fetch.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
