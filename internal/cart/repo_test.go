package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItems := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  image_url TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  stock_snapshot INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`
	require.NoError(t, db.Exec(carts).Error)
	require.NoError(t, db.Exec(cartItems).Error)
	return db
}

func newCartItem(cartID uuid.UUID, quantity int) *models.CartItem {
	return &models.CartItem{
		ID:             uuid.New(),
		CartID:         cartID,
		ProductID:      uuid.New(),
		StoreID:        uuid.New(),
		ProductName:    "Oat Milk",
		UnitPriceCents: 420,
		ImageURL:       "https://img.example/oat.png",
		Quantity:       quantity,
		StockSnapshot:  10,
	}
}

func TestFindOrCreateActiveCartReusesCart(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	ctx := context.Background()

	first, err := repo.FindOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)

	second, err := repo.FindOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFindActiveCartNotFound(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindActiveCart(context.Background(), uuid.New())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUpsertItemOverwritesExistingLine(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, err := repo.FindOrCreateActiveCart(ctx, uuid.New())
	require.NoError(t, err)

	item := newCartItem(cart.ID, 2)
	require.NoError(t, repo.UpsertItem(ctx, item))

	update := &models.CartItem{
		ID:             uuid.New(),
		CartID:         cart.ID,
		ProductID:      item.ProductID,
		StoreID:        item.StoreID,
		ProductName:    item.ProductName,
		UnitPriceCents: 450,
		ImageURL:       item.ImageURL,
		Quantity:       5,
		StockSnapshot:  8,
	}
	require.NoError(t, repo.UpsertItem(ctx, update))

	stored, err := repo.FindItem(ctx, cart.ID, item.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)
	assert.Equal(t, 8, stored.StockSnapshot)
	assert.Equal(t, 450, stored.UnitPriceCents)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateItemQuantityKeepsPriceSnapshot(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, err := repo.FindOrCreateActiveCart(ctx, uuid.New())
	require.NoError(t, err)

	item := newCartItem(cart.ID, 2)
	require.NoError(t, repo.UpsertItem(ctx, item))

	require.NoError(t, repo.UpdateItemQuantity(ctx, item.ID, 7, 9))

	stored, err := repo.FindItem(ctx, cart.ID, item.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Quantity)
	assert.Equal(t, 9, stored.StockSnapshot)
	assert.Equal(t, 420, stored.UnitPriceCents)
	assert.Equal(t, "Oat Milk", stored.ProductName)
}

func TestDeleteItemIsIdempotent(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, err := repo.FindOrCreateActiveCart(ctx, uuid.New())
	require.NoError(t, err)

	item := newCartItem(cart.ID, 1)
	require.NoError(t, repo.UpsertItem(ctx, item))
	require.NoError(t, repo.DeleteItem(ctx, cart.ID, item.ProductID))
	require.NoError(t, repo.DeleteItem(ctx, cart.ID, item.ProductID))

	_, err = repo.FindItem(ctx, cart.ID, item.ProductID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDeleteAllItemsAndMarkConverted(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	cart, err := repo.FindOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertItem(ctx, newCartItem(cart.ID, 1)))
	require.NoError(t, repo.UpsertItem(ctx, newCartItem(cart.ID, 3)))

	require.NoError(t, repo.DeleteAllItems(ctx, cart.ID))
	loaded, err := repo.FindActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)

	require.NoError(t, repo.MarkConverted(ctx, cart.ID))
	_, err = repo.FindActiveCart(ctx, userID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	var converted models.Cart
	require.NoError(t, db.First(&converted, "id = ?", cart.ID).Error)
	assert.Equal(t, enums.CartStatusConverted, converted.Status)
}

func TestFindActiveCartOrdersItemsByCreation(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	cart, err := repo.FindOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)

	first := newCartItem(cart.ID, 1)
	first.ProductName = "First"
	require.NoError(t, repo.UpsertItem(ctx, first))

	second := newCartItem(cart.ID, 2)
	second.ProductName = "Second"
	second.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, repo.UpsertItem(ctx, second))

	loaded, err := repo.FindActiveCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "First", loaded.Items[0].ProductName)
	assert.Equal(t, "Second", loaded.Items[1].ProductName)
}
