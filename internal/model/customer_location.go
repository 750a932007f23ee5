package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxCustomerLocations caps how many saved sites a customer may keep.
const MaxCustomerLocations = 2

type CustomerLocation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_customer_location_name" json:"customer_id"`
	LocationName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_customer_location_name" json:"location_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CustomerLocation) TableName() string { return "customer_locations" }

func (l *CustomerLocation) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
