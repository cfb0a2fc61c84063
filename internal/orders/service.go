package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/internal/cart"
	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockSource re-reads product rows under lock so checkout validates
// against current stock, not the cart's snapshot.
type stockSource interface {
	FindActiveForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
}

type buyerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service owns order creation and every lifecycle mutation. No other
// code path writes order status.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*OrderDTO, error)
	Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole enums.UserRole) (*OrderDTO, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error)
}

type service struct {
	repo     Repository
	carts    cart.Repository
	products stockSource
	users    buyerLoader
	tx       txRunner
	outbox   outboxPublisher
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, carts cart.Repository, products stockSource, users buyerLoader, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		carts:    carts,
		products: products,
		users:    users,
		tx:       tx,
		outbox:   outboxSvc,
	}, nil
}

// Checkout converts the buyer's active cart into a pending order. The
// whole conversion is one transaction: stock re-validation, order plus
// line inserts, cart emptying, and the outbox events all commit or roll
// back together.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleBuyer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can check out")
	}

	buyer, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		active, err := cartRepo.FindActiveCart(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(active.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		for _, item := range active.Items {
			product, err := s.products.FindActiveForUpdate(ctx, tx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
						WithDetails(map[string]any{"product_id": item.ProductID.String()})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if item.Quantity > product.Stock {
				return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock for product").
					WithDetails(map[string]any{
						"product_id": product.ID.String(),
						"requested":  item.Quantity,
						"available":  product.Stock,
					})
			}
		}

		// The total comes from the draft, never from the client.
		draft := cart.BuildOrderDraft(active)
		order = &models.Order{
			ID:         uuid.New(),
			UserID:     input.UserID,
			BuyerName:  buyer.DisplayName,
			BuyerEmail: buyer.Email,
			BuyerPhone: buyer.Phone,
			Status:     enums.OrderStatePending,
			TotalCents: draft.TotalCents,
			Items:      make([]models.OrderLineItem, 0, len(draft.Lines)),
		}
		for _, line := range draft.Lines {
			order.Items = append(order.Items, models.OrderLineItem{
				ProductID:      line.ProductID,
				StoreID:        line.StoreID,
				ProductName:    line.ProductName,
				UnitPriceCents: line.UnitPriceCents,
				ImageURL:       line.ImageURL,
				Quantity:       line.Quantity,
				LineTotalCents: line.LineTotalCents,
			})
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := cartRepo.DeleteAllItems(ctx, active.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := cartRepo.MarkConverted(ctx, active.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}

		actor := &outbox.ActorRef{UserID: input.UserID, Role: string(input.ActorRole)}
		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				BuyerID:    input.UserID,
				TotalCents: order.TotalCents,
				ItemCount:  len(order.Items),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartCleared,
			AggregateType: enums.AggregateCart,
			AggregateID:   active.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.CartClearedEvent{
				CartID: active.ID,
				UserID: input.UserID,
				Reason: cart.ClearReasonCheckout,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cart cleared")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// Transition applies one lifecycle step. The rule check runs against a
// fresh read inside the transaction and the status is written exactly
// once; a replay of the current state returns success without writing.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target state").
			WithDetails(map[string]any{"state": input.Target.String()})
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		order = loaded

		if err := Advance(order.Status, input.Target, input.ActorRole); err != nil {
			return err
		}
		if order.Status == input.Target {
			return nil
		}

		now := time.Now().UTC()
		var deliveredAt *time.Time
		if input.Target == enums.OrderStateDelivered {
			deliveredAt = &now
		}
		applied, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.Target, deliveredAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		from := order.Status
		order.Status = input.Target
		order.DeliveredAt = deliveredAt

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
			Data: payloads.OrderStateChangedEvent{
				OrderID:   order.ID,
				BuyerID:   order.UserID,
				From:      from,
				To:        input.Target,
				ActorID:   input.ActorID,
				ActorRole: input.ActorRole,
				ChangedAt: now,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit state change")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// GetOrder loads one order. Buyers can only read their own.
func (s *service) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole enums.UserRole) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if actorRole == enums.UserRoleBuyer && order.UserID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return FromModel(order), nil
}

// ListOrders pages orders scoped to the actor's role.
func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order state").
			WithDetails(map[string]any{"state": input.Status.String()})
	}

	filters := ListFilters{Status: input.Status}
	if input.ActorRole == enums.UserRoleBuyer {
		userID := input.ActorID
		filters.UserID = &userID
	}

	list, err := s.repo.List(ctx, input.Pagination, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}
