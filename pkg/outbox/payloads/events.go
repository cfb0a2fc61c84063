package payloads

import (
	"time"

	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent signals a cart was converted into an order at checkout.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	TotalCents int       `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
}

// OrderStateChangedEvent is emitted on every fulfillment transition.
type OrderStateChangedEvent struct {
	OrderID   uuid.UUID        `json:"order_id"`
	BuyerID   uuid.UUID        `json:"buyer_id"`
	From      enums.OrderState `json:"from"`
	To        enums.OrderState `json:"to"`
	ActorID   uuid.UUID        `json:"actor_id"`
	ActorRole enums.UserRole   `json:"actor_role"`
	ChangedAt time.Time        `json:"changed_at"`
}

// CartClearedEvent reports a cart emptied by checkout or logout.
type CartClearedEvent struct {
	CartID uuid.UUID `json:"cart_id"`
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

// UserRegisteredEvent is emitted when a new account is created.
type UserRegisteredEvent struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Email  string         `json:"email"`
}
