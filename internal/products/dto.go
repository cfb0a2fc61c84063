package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/pagination"
	"github.com/Loxess-crl/carrito-compras/pkg/types"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID        `json:"id"`
	StoreID     uuid.UUID        `json:"store_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       types.Money      `json:"price"`
	ImageURL    string           `json:"image_url"`
	Stock       int              `json:"stock"`
	Category    string           `json:"category"`
	Tags        []string         `json:"tags"`
	Store       *StoreSummaryDTO `json:"store,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StoreSummaryDTO captures the merchant fields shown alongside a product.
type StoreSummaryDTO struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	LogoURL *string   `json:"logo_url,omitempty"`
	Rating  *float64  `json:"rating,omitempty"`
}

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Category      *string `json:"category,omitempty"`
	StoreID       *uuid.UUID
	PriceMinCents *int   `json:"price_min_cents,omitempty"`
	PriceMaxCents *int   `json:"price_max_cents,omitempty"`
	InStockOnly   bool   `json:"in_stock_only,omitempty"`
	Query         string `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductList wraps the paginated catalog page plus the next cursor.
type ProductList struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FromModel maps the persisted product row to its transport shape.
func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}

	dto := &ProductDTO{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		Description: p.Description,
		Price:       types.NewMoney(p.PriceCents),
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		Category:    p.Category,
		Tags:        append([]string(nil), p.Tags...),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Store != nil {
		dto.Store = &StoreSummaryDTO{
			ID:      p.Store.ID,
			Name:    p.Store.Name,
			Address: p.Store.Address,
			LogoURL: p.Store.LogoURL,
			Rating:  p.Store.Rating,
		}
	}
	return dto
}
