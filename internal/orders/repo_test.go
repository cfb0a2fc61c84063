package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	"github.com/Loxess-crl/carrito-compras/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  buyer_name TEXT NOT NULL,
  buyer_email TEXT NOT NULL,
  buyer_phone TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  delivered_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  image_url TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	return db
}

func seedOrder(t *testing.T, repo Repository, userID uuid.UUID, status enums.OrderState, createdAt time.Time, lines int) *models.Order {
	t.Helper()

	order := &models.Order{
		UserID:     userID,
		BuyerName:  "Buyer",
		BuyerEmail: "buyer@example.com",
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	for i := 0; i < lines; i++ {
		order.Items = append(order.Items, models.OrderLineItem{
			ProductID:      uuid.New(),
			StoreID:        uuid.New(),
			ProductName:    "Item",
			UnitPriceCents: 500,
			ImageURL:       "https://img.example/i.png",
			Quantity:       2,
			LineTotalCents: 1000,
			CreatedAt:      createdAt,
		})
		order.TotalCents += 1000
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	created := seedOrder(t, repo, userID, enums.OrderStatePending, time.Now().UTC(), 2)
	require.NotEqual(t, uuid.Nil, created.ID)

	loaded, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, loaded.UserID)
	assert.Equal(t, enums.OrderStatePending, loaded.Status)
	assert.Equal(t, 2000, loaded.TotalCents)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, created.ID, loaded.Items[0].OrderID)
}

func TestRepositoryListPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	now := time.Now().UTC()

	seedOrder(t, repo, userID, enums.OrderStatePending, now.Add(-2*time.Hour), 1)
	seedOrder(t, repo, userID, enums.OrderStateConfirmed, now.Add(-time.Hour), 1)
	newest := seedOrder(t, repo, userID, enums.OrderStatePending, now, 1)

	first, err := repo.List(context.Background(), pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, newest.ID, first.Orders[0].ID)
	assert.NotEmpty(t, first.NextCursor)

	second, err := repo.List(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	alice := uuid.New()
	bob := uuid.New()
	seedOrder(t, repo, alice, enums.OrderStatePending, now.Add(-time.Minute), 1)
	seedOrder(t, repo, alice, enums.OrderStateConfirmed, now, 1)
	seedOrder(t, repo, bob, enums.OrderStatePending, now, 1)

	byUser, err := repo.List(context.Background(), pagination.Params{}, ListFilters{UserID: &alice})
	require.NoError(t, err)
	assert.Len(t, byUser.Orders, 2)

	confirmed := enums.OrderStateConfirmed
	byStatus, err := repo.List(context.Background(), pagination.Params{}, ListFilters{Status: &confirmed})
	require.NoError(t, err)
	require.Len(t, byStatus.Orders, 1)
	assert.Equal(t, alice, byStatus.Orders[0].UserID)
}

func TestRepositoryUpdateStatusGuard(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, uuid.New(), enums.OrderStatePending, time.Now().UTC(), 1)

	applied, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStateConfirmed, enums.OrderStateEnRoute, nil)
	require.NoError(t, err)
	assert.False(t, applied, "guard must miss when the source state differs")

	applied, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatePending, enums.OrderStateConfirmed, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateConfirmed, loaded.Status)
	assert.Nil(t, loaded.DeliveredAt)
}

func TestRepositoryUpdateStatusStampsDelivery(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, uuid.New(), enums.OrderStateEnRoute, time.Now().UTC(), 1)
	deliveredAt := time.Now().UTC().Truncate(time.Second)

	applied, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStateEnRoute, enums.OrderStateDelivered, &deliveredAt)
	require.NoError(t, err)
	require.True(t, applied)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateDelivered, loaded.Status)
	require.NotNil(t, loaded.DeliveredAt)
	assert.WithinDuration(t, deliveredAt, *loaded.DeliveredAt, time.Second)
}
