package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Clear reasons recorded on the cart_cleared event.
const (
	ClearReasonCheckout = "checkout"
	ClearReasonLogout   = "logout"
	ClearReasonManual   = "manual"
)

// Service exposes the buyer cart operations.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, input AddItemInput) (*CartDTO, error)
	SetQuantity(ctx context.Context, input SetQuantityInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID, reason string) error
}

type service struct {
	repo     Repository
	products productLoader
	tx       txRunner
	outbox   outboxPublisher
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, products productLoader, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		outbox:   outboxSvc,
	}, nil
}

// GetCart returns the active cart snapshot. Users without an active cart
// get an empty snapshot; reads never create rows.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(userID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return FromModel(cart), nil
}

// AddItem merges quantity into the line for the product. Unlike
// SetQuantity it rejects instead of clamping when the combined quantity
// exceeds available stock.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*CartDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadSellableProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindOrCreateActiveCart(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		current := 0
		existing, err := repo.FindItem(ctx, cart.ID, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if existing != nil {
			current = existing.Quantity
		}

		requested := current + input.Quantity
		if requested > product.Stock {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock for product").
				WithDetails(map[string]any{
					"product_id": product.ID.String(),
					"requested":  requested,
					"available":  product.Stock,
				})
		}

		item := &models.CartItem{
			CartID:         cart.ID,
			ProductID:      product.ID,
			StoreID:        product.StoreID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			ImageURL:       product.ImageURL,
			Quantity:       requested,
			StockSnapshot:  product.Stock,
		}
		if err := repo.UpsertItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, input.UserID)
}

// SetQuantity overwrites the line quantity, clamping into [0, stock].
// A clamped-to-zero quantity removes the line.
func (s *service) SetQuantity(ctx context.Context, input SetQuantityInput) (*CartDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.loadSellableProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	quantity := input.Quantity
	if quantity < 0 {
		quantity = 0
	}
	if quantity > product.Stock {
		quantity = product.Stock
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindOrCreateActiveCart(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if quantity == 0 {
			if err := repo.DeleteItem(ctx, cart.ID, product.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			return nil
		}

		// An existing line keeps the price snapshot taken when it was
		// added; only quantity and the stock snapshot move.
		existing, err := repo.FindItem(ctx, cart.ID, product.ID)
		switch {
		case err == nil:
			if err := repo.UpdateItemQuantity(ctx, existing.ID, quantity, product.Stock); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		item := &models.CartItem{
			CartID:         cart.ID,
			ProductID:      product.ID,
			StoreID:        product.StoreID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			ImageURL:       product.ImageURL,
			Quantity:       quantity,
			StockSnapshot:  product.Stock,
		}
		if err := repo.UpsertItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, input.UserID)
}

// RemoveItem deletes the line if present. Removing an absent item
// succeeds without error.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	cart, err := s.repo.FindActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(userID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.GetCart(ctx, userID)
}

// Clear empties the active cart and records why. Users without an
// active cart are a no-op.
func (s *service) Clear(ctx context.Context, userID uuid.UUID, reason string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	cart, err := s.repo.FindActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(cart.Items) == 0 {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteAllItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCartCleared,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.CartClearedEvent{
				CartID: cart.ID,
				UserID: userID,
				Reason: reason,
			},
		}
		// Logout racing checkout can both clear the same cart; one
		// queued cart_cleared row per cart is enough.
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

func (s *service) loadSellableProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

func emptyCart(userID uuid.UUID) *CartDTO {
	return FromModel(&models.Cart{UserID: userID, Items: []models.CartItem{}})
}
