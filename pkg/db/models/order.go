package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/enums"
)

// Order is a buyer's finalized cart tracked through the delivery
// lifecycle. Buyer fields are snapshots taken at checkout; orders are
// never deleted, the terminal state is retained for history.
type Order struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	BuyerName   string           `gorm:"column:buyer_name;not null"`
	BuyerEmail  string           `gorm:"column:buyer_email;not null"`
	BuyerPhone  *string          `gorm:"column:buyer_phone"`
	Status      enums.OrderState `gorm:"column:status;type:order_state;not null;default:'pending'"`
	TotalCents  int              `gorm:"column:total_cents;not null"`
	Items       []OrderLineItem  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	DeliveredAt *time.Time       `gorm:"column:delivered_at"`
}
