package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/enums"
)

// Cart is the buyer's in-progress selection. At most one active cart
// exists per user; checkout converts it and logout discards it.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_active_user,where:status = 'active'"`
	Status    enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
