package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/internal/cart"
	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
	"github.com/Loxess-crl/carrito-compras/pkg/pagination"
)

type stubOrdersRepo struct {
	orders       map[uuid.UUID]*models.Order
	statusWrites int
	lastFilters  ListFilters
}

func newStubOrdersRepo(orders ...*models.Order) *stubOrdersRepo {
	repo := &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	s.lastFilters = filters
	list := &OrderList{Orders: []OrderDTO{}}
	for _, order := range s.orders {
		if filters.UserID != nil && order.UserID != *filters.UserID {
			continue
		}
		if filters.Status != nil && order.Status != *filters.Status {
			continue
		}
		list.Orders = append(list.Orders, *FromModel(order))
	}
	return list, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderState, deliveredAt *time.Time) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	s.statusWrites++
	order.Status = to
	order.DeliveredAt = deliveredAt
	return true, nil
}

type stubCarts struct {
	cart      *models.Cart
	cleared   bool
	converted bool
}

func (s *stubCarts) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCarts) FindActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCarts) FindOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.FindActiveCart(ctx, userID)
}

func (s *stubCarts) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCarts) UpsertItem(ctx context.Context, item *models.CartItem) error { return nil }

func (s *stubCarts) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity, stockSnapshot int) error {
	return nil
}

func (s *stubCarts) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error { return nil }

func (s *stubCarts) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	s.cleared = true
	return nil
}

func (s *stubCarts) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	s.converted = true
	return nil
}

type stubStock struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubStock) FindActiveForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEventSink struct {
	events []outbox.DomainEvent
}

func (s *stubEventSink) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type ordersFixture struct {
	svc    Service
	repo   *stubOrdersRepo
	carts  *stubCarts
	stock  *stubStock
	sink   *stubEventSink
	userID uuid.UUID
}

func newOrdersFixture(t *testing.T, repo *stubOrdersRepo, carts *stubCarts, stock *stubStock) *ordersFixture {
	t.Helper()

	userID := uuid.New()
	if carts != nil && carts.cart != nil {
		userID = carts.cart.UserID
	}
	users := &stubUsers{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "buyer@example.com", DisplayName: "Buyer", Role: enums.UserRoleBuyer},
	}}
	sink := &stubEventSink{}
	svc, err := NewService(repo, carts, stock, users, stubTxRunner{}, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &ordersFixture{svc: svc, repo: repo, carts: carts, stock: stock, sink: sink, userID: userID}
}

func buyerCart(userID uuid.UUID, lines ...models.CartItem) *models.Cart {
	return &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Status: enums.CartStatusActive,
		Items:  lines,
	}
}

func stockedProduct(stock int) *models.Product {
	return &models.Product{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		Name:       "Beans",
		PriceCents: 900,
		Stock:      stock,
		IsActive:   true,
	}
}

func cartLine(product *models.Product, qty int) models.CartItem {
	return models.CartItem{
		ID:             uuid.New(),
		ProductID:      product.ID,
		StoreID:        product.StoreID,
		ProductName:    product.Name,
		UnitPriceCents: product.PriceCents,
		Quantity:       qty,
		StockSnapshot:  product.Stock,
	}
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	beans := stockedProduct(10)
	milk := stockedProduct(10)
	milk.Name = "Milk"
	milk.PriceCents = 350
	carts := &stubCarts{cart: buyerCart(userID, cartLine(beans, 2), cartLine(milk, 1))}
	stock := &stubStock{products: map[uuid.UUID]*models.Product{beans.ID: beans, milk.ID: milk}}
	fx := newOrdersFixture(t, newStubOrdersRepo(), carts, stock)

	order, err := fx.svc.Checkout(context.Background(), CheckoutInput{UserID: userID, ActorRole: enums.UserRoleBuyer})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.Status != enums.OrderStatePending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.Total.Cents != 2150 {
		t.Fatalf("expected total 2150, got %d", order.Total.Cents)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(order.Items))
	}
	if !carts.cleared || !carts.converted {
		t.Fatal("checkout must empty and convert the cart")
	}
	if len(fx.sink.events) != 2 {
		t.Fatalf("expected order_created and cart_cleared events, got %d", len(fx.sink.events))
	}
	if fx.sink.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created first, got %s", fx.sink.events[0].EventType)
	}
	if fx.sink.events[1].EventType != enums.EventCartCleared {
		t.Fatalf("expected cart_cleared second, got %s", fx.sink.events[1].EventType)
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	carts := &stubCarts{cart: buyerCart(userID)}
	fx := newOrdersFixture(t, newStubOrdersRepo(), carts, &stubStock{})

	_, err := fx.svc.Checkout(context.Background(), CheckoutInput{UserID: userID, ActorRole: enums.UserRoleBuyer})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutRejectsNonBuyer(t *testing.T) {
	t.Parallel()

	fx := newOrdersFixture(t, newStubOrdersRepo(), &stubCarts{}, &stubStock{})
	for _, role := range []enums.UserRole{enums.UserRoleBusiness, enums.UserRoleDelivery} {
		_, err := fx.svc.Checkout(context.Background(), CheckoutInput{UserID: uuid.New(), ActorRole: role})
		if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("%s: expected forbidden, got %v", role, err)
		}
	}
}

func TestCheckoutRechecksStock(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	beans := stockedProduct(10)
	line := cartLine(beans, 5)
	beans.Stock = 3 // shrank after the line was added
	carts := &stubCarts{cart: buyerCart(userID, line)}
	stock := &stubStock{products: map[uuid.UUID]*models.Product{beans.ID: beans}}
	repo := newStubOrdersRepo()
	fx := newOrdersFixture(t, repo, carts, stock)

	_, err := fx.svc.Checkout(context.Background(), CheckoutInput{UserID: userID, ActorRole: enums.UserRoleBuyer})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out-of-stock error, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Fatal("failed checkout must not create an order")
	}
	if carts.cleared {
		t.Fatal("failed checkout must leave the cart intact")
	}
}

func existingOrder(userID uuid.UUID, status enums.OrderState) *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		BuyerName:  "Buyer",
		BuyerEmail: "buyer@example.com",
		Status:     status,
		TotalCents: 900,
	}
}

func TestTransitionConfirmByBusiness(t *testing.T) {
	t.Parallel()

	order := existingOrder(uuid.New(), enums.OrderStatePending)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})

	dto, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStateConfirmed,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleBusiness,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if dto.Status != enums.OrderStateConfirmed {
		t.Fatalf("expected confirmed, got %s", dto.Status)
	}
	if repo.statusWrites != 1 {
		t.Fatalf("expected exactly one status write, got %d", repo.statusWrites)
	}
	if len(fx.sink.events) != 1 || fx.sink.events[0].EventType != enums.EventOrderStateChanged {
		t.Fatalf("expected one state-change event, got %+v", fx.sink.events)
	}
}

func TestTransitionDeliveredStampsTimestamp(t *testing.T) {
	t.Parallel()

	order := existingOrder(uuid.New(), enums.OrderStateEnRoute)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})

	dto, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStateDelivered,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleDelivery,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if dto.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be set")
	}
}

func TestTransitionReplayIsNoop(t *testing.T) {
	t.Parallel()

	order := existingOrder(uuid.New(), enums.OrderStateConfirmed)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})

	dto, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStateConfirmed,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleBusiness,
	})
	if err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}
	if dto.Status != enums.OrderStateConfirmed {
		t.Fatalf("expected confirmed, got %s", dto.Status)
	}
	if repo.statusWrites != 0 {
		t.Fatalf("replay must not write, got %d writes", repo.statusWrites)
	}
	if len(fx.sink.events) != 0 {
		t.Fatalf("replay must not emit events, got %d", len(fx.sink.events))
	}
}

func TestTransitionWrongRoleWritesNothing(t *testing.T) {
	t.Parallel()

	order := existingOrder(uuid.New(), enums.OrderStatePending)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})

	_, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStateConfirmed,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleDelivery,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if repo.statusWrites != 0 || len(fx.sink.events) != 0 {
		t.Fatal("failed transition must not write or emit")
	}
}

func TestTransitionSkippedStateConflicts(t *testing.T) {
	t.Parallel()

	order := existingOrder(uuid.New(), enums.OrderStatePending)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})

	_, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStateDelivered,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleDelivery,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	t.Parallel()

	fx := newOrdersFixture(t, newStubOrdersRepo(), &stubCarts{}, &stubStock{})
	_, err := fx.svc.Transition(context.Background(), TransitionInput{
		OrderID:   uuid.New(),
		Target:    enums.OrderStateConfirmed,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleBusiness,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetOrderScopesBuyers(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	order := existingOrder(owner, enums.OrderStatePending)
	repo := newStubOrdersRepo(order)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})
	ctx := context.Background()

	own, err := fx.svc.GetOrder(ctx, order.ID, owner, enums.UserRoleBuyer)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if own.ID != order.ID {
		t.Fatalf("expected order %s, got %s", order.ID, own.ID)
	}

	_, err = fx.svc.GetOrder(ctx, order.ID, uuid.New(), enums.UserRoleBuyer)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("foreign buyer read: expected forbidden, got %v", err)
	}

	if _, err := fx.svc.GetOrder(ctx, order.ID, uuid.New(), enums.UserRoleDelivery); err != nil {
		t.Fatalf("delivery read: %v", err)
	}
}

func TestListOrdersScopesByRole(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	repo := newStubOrdersRepo(
		existingOrder(buyerID, enums.OrderStatePending),
		existingOrder(uuid.New(), enums.OrderStatePending),
	)
	fx := newOrdersFixture(t, repo, &stubCarts{}, &stubStock{})
	ctx := context.Background()

	mine, err := fx.svc.ListOrders(ctx, ListOrdersInput{ActorID: buyerID, ActorRole: enums.UserRoleBuyer})
	if err != nil {
		t.Fatalf("buyer list: %v", err)
	}
	if len(mine.Orders) != 1 {
		t.Fatalf("buyer must see only own orders, got %d", len(mine.Orders))
	}
	if repo.lastFilters.UserID == nil || *repo.lastFilters.UserID != buyerID {
		t.Fatal("buyer list must filter by user id")
	}

	all, err := fx.svc.ListOrders(ctx, ListOrdersInput{ActorID: uuid.New(), ActorRole: enums.UserRoleBusiness})
	if err != nil {
		t.Fatalf("business list: %v", err)
	}
	if len(all.Orders) != 2 {
		t.Fatalf("business must see all orders, got %d", len(all.Orders))
	}
	if repo.lastFilters.UserID != nil {
		t.Fatal("business list must not filter by user id")
	}
}
