package cart

import "github.com/google/uuid"

// AddItemRequest adds quantity of a product to the buyer's cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// SetQuantityRequest overwrites a line's quantity. Zero removes the line.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}
