package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem pairs a product snapshot with a quantity. Rows with quantity
// zero never exist; removal deletes the row instead. StockSnapshot is
// the product stock observed at the last write and bounds the quantity.
type CartItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	StoreID        uuid.UUID `gorm:"column:store_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	ImageURL       string    `gorm:"column:image_url;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	StockSnapshot  int       `gorm:"column:stock_snapshot;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
