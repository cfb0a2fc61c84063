package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the merchant attribute bag that owns products.
type Store struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string     `gorm:"column:name;not null"`
	Address      string     `gorm:"column:address;not null"`
	ContactEmail string     `gorm:"column:contact_email;not null"`
	Phone        *string    `gorm:"column:phone"`
	LogoURL      *string    `gorm:"column:logo_url"`
	Rating       *float64   `gorm:"column:rating;type:numeric(3,2)"`
	OwnerID      *uuid.UUID `gorm:"column:owner_id;type:uuid"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
