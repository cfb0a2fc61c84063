package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product represents a catalog listing. The cart/order subsystem treats
// products as read-only values; only catalog management mutates them.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID      `gorm:"column:store_id;type:uuid;not null"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description;not null"`
	PriceCents  int            `gorm:"column:price_cents;not null"`
	ImageURL    string         `gorm:"column:image_url;not null"`
	Stock       int            `gorm:"column:stock;not null;default:0"`
	Category    string         `gorm:"column:category;not null"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	Store       *Store         `gorm:"foreignKey:StoreID"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
