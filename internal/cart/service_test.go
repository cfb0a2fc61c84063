package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
)

type stubCartRepo struct {
	cart        *models.Cart
	findErr     error
	items       map[uuid.UUID]*models.CartItem
	deletedAll  bool
	deletedItem *uuid.UUID
}

func newStubCartRepo(cart *models.Cart) *stubCartRepo {
	repo := &stubCartRepo{cart: cart, items: map[uuid.UUID]*models.CartItem{}}
	if cart != nil {
		for i := range cart.Items {
			item := cart.Items[i]
			repo.items[item.ProductID] = &item
		}
	}
	return repo
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) FindActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.cart == nil {
		return nil, gorm.ErrRecordNotFound
	}
	snapshot := *s.cart
	snapshot.Items = nil
	for _, item := range s.items {
		snapshot.Items = append(snapshot.Items, *item)
	}
	return &snapshot, nil
}

func (s *stubCartRepo) FindOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil {
		s.cart = &models.Cart{ID: uuid.New(), UserID: userID}
	}
	return s.cart, nil
}

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	item, ok := s.items[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (s *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ProductID] = item
	return nil
}

func (s *stubCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity, stockSnapshot int) error {
	for _, item := range s.items {
		if item.ID == itemID {
			item.Quantity = quantity
			item.StockSnapshot = stockSnapshot
		}
	}
	return nil
}

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	s.deletedItem = &productID
	delete(s.items, productID)
	return nil
}

func (s *stubCartRepo) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	s.deletedAll = true
	s.items = map[uuid.UUID]*models.CartItem{}
	return nil
}

func (s *stubCartRepo) MarkConverted(ctx context.Context, cartID uuid.UUID) error { return nil }

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, queued := range s.events {
		if queued.EventType == event.EventType && queued.AggregateID == event.AggregateID {
			return nil
		}
	}
	return s.Emit(ctx, tx, event)
}

func newTestService(t *testing.T, repo Repository, products map[uuid.UUID]*models.Product) (Service, *stubOutbox) {
	t.Helper()
	sink := &stubOutbox{}
	svc, err := NewService(repo, &stubProducts{products: products}, stubTx{}, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sink
}

func testProduct(stock int) *models.Product {
	return &models.Product{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		Name:       "Milk",
		PriceCents: 350,
		ImageURL:   "https://img.example/milk.png",
		Stock:      stock,
		IsActive:   true,
	}
}

func TestAddItemCreatesLine(t *testing.T) {
	t.Parallel()

	product := testProduct(10)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()

	dto, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(dto.Items))
	}
	if dto.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", dto.Items[0].Quantity)
	}
	if dto.Subtotal.Cents != 1050 {
		t.Fatalf("expected subtotal 1050, got %d", dto.Subtotal.Cents)
	}
	if dto.Subtotal.Display != "10.50" {
		t.Fatalf("expected display 10.50, got %s", dto.Subtotal.Display)
	}
}

func TestAddItemMergesQuantity(t *testing.T) {
	t.Parallel()

	product := testProduct(10)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 4}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	dto, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if dto.Items[0].Quantity != 6 {
		t.Fatalf("expected merged quantity 6, got %d", dto.Items[0].Quantity)
	}
}

func TestAddItemRejectsOverStock(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 4}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out-of-stock error, got %v", err)
	}
	if repo.items[product.ID].Quantity != 4 {
		t.Fatalf("failed add must not change quantity, got %d", repo.items[product.ID].Quantity)
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	svc, _ := newTestService(t, newStubCartRepo(nil), map[uuid.UUID]*models.Product{product.ID: product})

	for _, qty := range []int{0, -1} {
		_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: qty})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newStubCartRepo(nil), map[uuid.UUID]*models.Product{})
	_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: uuid.New(), Quantity: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSetQuantityClampsToStock(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()

	dto, err := svc.SetQuantity(context.Background(), SetQuantityInput{UserID: userID, ProductID: product.ID, Quantity: 50})
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if dto.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity clamped to 5, got %d", dto.Items[0].Quantity)
	}
}

func TestSetQuantityKeepsPriceSnapshotOnExistingLine(t *testing.T) {
	t.Parallel()

	product := testProduct(10)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// the live price moved after the item entered the cart
	product.PriceCents = 999
	product.Stock = 8

	dto, err := svc.SetQuantity(ctx, SetQuantityInput{UserID: userID, ProductID: product.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if dto.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", dto.Items[0].Quantity)
	}
	line := repo.items[product.ID]
	if line.UnitPriceCents != 350 {
		t.Fatalf("expected price snapshot 350 preserved, got %d", line.UnitPriceCents)
	}
	if line.StockSnapshot != 8 {
		t.Fatalf("expected stock snapshot refreshed to 8, got %d", line.StockSnapshot)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	dto, err := svc.SetQuantity(ctx, SetQuantityInput{UserID: userID, ProductID: product.ID, Quantity: 0})
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if len(dto.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(dto.Items))
	}

	// negative input clamps to zero and stays removed
	dto, err = svc.SetQuantity(ctx, SetQuantityInput{UserID: userID, ProductID: product.ID, Quantity: -3})
	if err != nil {
		t.Fatalf("set negative quantity: %v", err)
	}
	if len(dto.Items) != 0 {
		t.Fatalf("expected empty cart after negative set, got %d items", len(dto.Items))
	}
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	repo := newStubCartRepo(nil)
	svc, _ := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	// no cart yet
	dto, err := svc.RemoveItem(ctx, userID, product.ID)
	if err != nil {
		t.Fatalf("remove without cart: %v", err)
	}
	if len(dto.Items) != 0 {
		t.Fatalf("expected empty cart")
	}

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, userID, product.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, userID, product.ID); err != nil {
		t.Fatalf("second remove must succeed: %v", err)
	}
}

func TestClearEmitsEventAndEmptiesCart(t *testing.T) {
	t.Parallel()

	product := testProduct(5)
	repo := newStubCartRepo(nil)
	svc, sink := newTestService(t, repo, map[uuid.UUID]*models.Product{product.ID: product})
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(ctx, userID, ClearReasonLogout); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !repo.deletedAll {
		t.Fatal("expected items deleted")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(sink.events))
	}
}

func TestClearWithoutCartIsNoop(t *testing.T) {
	t.Parallel()

	svc, sink := newTestService(t, newStubCartRepo(nil), map[uuid.UUID]*models.Product{})
	if err := svc.Clear(context.Background(), uuid.New(), ClearReasonLogout); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestBuildOrderDraftComputesTotal(t *testing.T) {
	t.Parallel()

	cart := &models.Cart{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items: []models.CartItem{
			{ProductID: uuid.New(), UnitPriceCents: 350, Quantity: 2},
			{ProductID: uuid.New(), UnitPriceCents: 1200, Quantity: 1},
		},
	}

	draft := BuildOrderDraft(cart)
	if draft.TotalCents != 1900 {
		t.Fatalf("expected total 1900, got %d", draft.TotalCents)
	}
	if len(draft.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(draft.Lines))
	}
	if draft.Lines[0].LineTotalCents != 700 {
		t.Fatalf("expected line total 700, got %d", draft.Lines[0].LineTotalCents)
	}
	if len(cart.Items) != 2 || cart.Items[0].Quantity != 2 {
		t.Fatal("building a draft must not mutate the cart")
	}
}
