package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateVisitRequest = "CREATE_VISIT_REQUEST"
	ActionApproveRequest     = "APPROVE_REQUEST"
	ActionScheduleRequest    = "SCHEDULE_REQUEST"
	ActionRejectRequest      = "REJECT_REQUEST"
	ActionRecordVisit        = "RECORD_VISIT"
	ActionRejectVisit        = "REJECT_VISIT"
	ActionConfirmVisit       = "CONFIRM_VISIT"
	ActionDeductQuota        = "DEDUCT_QUOTA"
	ActionSetQuotaTotal      = "SET_QUOTA_TOTAL"
	ActionSetQuotaUsed       = "SET_QUOTA_USED"
	ActionCreateCustomer     = "CREATE_CUSTOMER"
	ActionCreateUser         = "CREATE_USER"
)

// AuditLog tracks Who, What, and When for every state-changing action
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for automated actions
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
