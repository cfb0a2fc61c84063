package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	"github.com/Loxess-crl/carrito-compras/pkg/pagination"
	"github.com/Loxess-crl/carrito-compras/pkg/types"
)

// OrderLineDTO is one frozen line of an order.
type OrderLineDTO struct {
	ProductID   uuid.UUID   `json:"productId"`
	StoreID     uuid.UUID   `json:"storeId"`
	ProductName string      `json:"productName"`
	ImageURL    string      `json:"imageUrl"`
	UnitPrice   types.Money `json:"unitPrice"`
	Quantity    int         `json:"quantity"`
	LineTotal   types.Money `json:"lineTotal"`
}

// OrderDTO is the transport shape of an order with its line items.
type OrderDTO struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"userId"`
	BuyerName   string           `json:"buyerName"`
	BuyerEmail  string           `json:"buyerEmail"`
	BuyerPhone  *string          `json:"buyerPhone,omitempty"`
	Status      enums.OrderState `json:"status"`
	Total       types.Money      `json:"total"`
	Items       []OrderLineDTO   `json:"items,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	DeliveredAt *time.Time       `json:"deliveredAt,omitempty"`
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// CheckoutInput converts the buyer's active cart into a pending order.
type CheckoutInput struct {
	UserID    uuid.UUID
	ActorRole enums.UserRole
}

// TransitionInput requests one lifecycle step on an order.
type TransitionInput struct {
	OrderID   uuid.UUID
	Target    enums.OrderState
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// ListOrdersInput scopes a page of orders to the requesting actor.
// Buyers see only their own orders; business and delivery see all.
type ListOrdersInput struct {
	ActorID    uuid.UUID
	ActorRole  enums.UserRole
	Status     *enums.OrderState
	Pagination pagination.Params
}

// ListFilters narrows repository list queries.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderState
}

// FromModel maps the persisted order to the transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:          o.ID,
		UserID:      o.UserID,
		BuyerName:   o.BuyerName,
		BuyerEmail:  o.BuyerEmail,
		BuyerPhone:  o.BuyerPhone,
		Status:      o.Status,
		Total:       types.NewMoney(o.TotalCents),
		Items:       make([]OrderLineDTO, 0, len(o.Items)),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		DeliveredAt: o.DeliveredAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderLineDTO{
			ProductID:   item.ProductID,
			StoreID:     item.StoreID,
			ProductName: item.ProductName,
			ImageURL:    item.ImageURL,
			UnitPrice:   types.NewMoney(item.UnitPriceCents),
			Quantity:    item.Quantity,
			LineTotal:   types.NewMoney(item.LineTotalCents),
		})
	}
	return dto
}

// FromModels maps a page of orders without their line items.
func FromModels(rows []models.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	return dtos
}
