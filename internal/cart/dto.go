package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/types"
)

// CartItemDTO is the transport shape for a single cart line.
type CartItemDTO struct {
	ProductID     uuid.UUID   `json:"product_id"`
	StoreID       uuid.UUID   `json:"store_id"`
	Name          string      `json:"name"`
	UnitPrice     types.Money `json:"unit_price"`
	ImageURL      string      `json:"image_url"`
	Quantity      int         `json:"quantity"`
	LineTotal     types.Money `json:"line_total"`
	StockSnapshot int         `json:"stock_snapshot"`
}

// CartDTO is the buyer-facing cart snapshot with computed totals.
type CartDTO struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Items     []CartItemDTO `json:"items"`
	ItemCount int           `json:"item_count"`
	Subtotal  types.Money   `json:"subtotal"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// AddItemInput captures a request to add product quantity to the cart.
type AddItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// SetQuantityInput captures a request to overwrite a line's quantity.
type SetQuantityInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// DraftLine is one frozen line of an order draft.
type DraftLine struct {
	ProductID      uuid.UUID
	StoreID        uuid.UUID
	ProductName    string
	UnitPriceCents int
	ImageURL       string
	Quantity       int
	LineTotalCents int
}

// OrderDraft is the pure projection of a cart used by checkout. Building
// it never mutates the cart.
type OrderDraft struct {
	UserID     uuid.UUID
	Lines      []DraftLine
	TotalCents int
}

// FromModel maps the persisted cart with its items to the transport shape.
func FromModel(c *models.Cart) *CartDTO {
	if c == nil {
		return nil
	}
	dto := &CartDTO{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     make([]CartItemDTO, 0, len(c.Items)),
		UpdatedAt: c.UpdatedAt,
	}
	subtotal := 0
	for _, item := range c.Items {
		lineTotal := item.UnitPriceCents * item.Quantity
		subtotal += lineTotal
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID:     item.ProductID,
			StoreID:       item.StoreID,
			Name:          item.ProductName,
			UnitPrice:     types.NewMoney(item.UnitPriceCents),
			ImageURL:      item.ImageURL,
			Quantity:      item.Quantity,
			LineTotal:     types.NewMoney(lineTotal),
			StockSnapshot: item.StockSnapshot,
		})
	}
	dto.Subtotal = types.NewMoney(subtotal)
	return dto
}

// BuildOrderDraft projects the cart into the immutable order shape. The
// total is recomputed from the lines, never read from stored fields.
func BuildOrderDraft(c *models.Cart) OrderDraft {
	draft := OrderDraft{UserID: c.UserID, Lines: make([]DraftLine, 0, len(c.Items))}
	for _, item := range c.Items {
		lineTotal := item.UnitPriceCents * item.Quantity
		draft.TotalCents += lineTotal
		draft.Lines = append(draft.Lines, DraftLine{
			ProductID:      item.ProductID,
			StoreID:        item.StoreID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			ImageURL:       item.ImageURL,
			Quantity:       item.Quantity,
			LineTotalCents: lineTotal,
		})
	}
	return draft
}
