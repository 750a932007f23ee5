package model

import (
	"time"

	"visit-tracker/internal/lifecycle"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Support types.
const (
	SupportRemote = "remote"
	SupportOnsite = "onsite"
)

// RemoteSiteLocation is stored as the site of every remote request.
const RemoteSiteLocation = "Remote Support"

// VisitRequest is one customer support request from submission to confirmation.
type VisitRequest struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer       *User     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	RequesterName  string    `gorm:"type:varchar(255);not null" json:"requester_name"`
	RequesterEmail string    `gorm:"type:varchar(255);not null;index" json:"requester_email"`
	SiteLocation   string    `gorm:"type:varchar(500);not null" json:"site_location"`
	SupportType    string    `gorm:"type:varchar(10);not null" json:"support_type"`
	ProblemDesc    string    `gorm:"type:text;not null" json:"problem_desc"`
	RequestedDate  time.Time `gorm:"type:date;not null" json:"requested_date"`
	EstimatedHours *int      `json:"estimated_hours"`

	State lifecycle.State `gorm:"type:varchar(20);not null;default:'pending';index" json:"state"`

	ScheduledDate *time.Time `json:"scheduled_date"`
	DurationHours *int       `json:"duration_hours"`

	ActualStartTime *time.Time `json:"actual_start_time"`
	ActualEndTime   *time.Time `json:"actual_end_time"`
	ActualHours     *int       `json:"actual_hours"`
	TechnicianNotes *string    `gorm:"type:text" json:"technician_notes"`
	DocumentURL     *string    `gorm:"type:text" json:"document_url"`
	RecordedBy      *string    `gorm:"type:varchar(255)" json:"recorded_by"`

	CustomerConfirmedAt *time.Time `json:"customer_confirmed_at"`
	CustomerNotes       *string    `gorm:"type:text" json:"customer_notes"`

	RejectionReason *string    `gorm:"type:text" json:"rejection_reason"`
	ApprovedBy      *string    `gorm:"type:varchar(255)" json:"approved_by"` // email of whoever decided, approve or reject
	ApprovedAt      *time.Time `json:"approved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VisitRequest) TableName() string { return "site_visit_requests" }

func (r *VisitRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.State == "" {
		r.State = lifecycle.StatePending
	}
	return nil
}
