package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerQuota is the hour balance of one customer. Available hours are never stored.
type CustomerQuota struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerEmail string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"customer_email"`
	CustomerName  string    `gorm:"type:varchar(255)" json:"customer_name"`
	TotalHours    int       `gorm:"not null;default:0" json:"total_hours"`
	UsedHours     int       `gorm:"not null;default:0" json:"used_hours"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CustomerQuota) TableName() string { return "customer_quotas" }

func (q *CustomerQuota) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (q CustomerQuota) AvailableHours() int {
	return q.TotalHours - q.UsedHours
}

// QuotaLog is an append-only record of one deduction.
type QuotaLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerEmail  string     `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	VisitRequestID *uuid.UUID `gorm:"type:uuid;index" json:"visit_request_id"`
	HoursDeducted  int        `gorm:"not null" json:"hours_deducted"`
	Reason         string     `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}

func (QuotaLog) TableName() string { return "quota_logs" }

func (l *QuotaLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
