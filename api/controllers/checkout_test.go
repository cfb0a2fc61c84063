package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/api/middleware"
	ordersvc "github.com/Loxess-crl/carrito-compras/internal/orders"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
)

type stubCheckoutService struct {
	order        *ordersvc.OrderDTO
	err          error
	lastCheckout ordersvc.CheckoutInput
	called       bool
}

func (s *stubCheckoutService) Checkout(ctx context.Context, input ordersvc.CheckoutInput) (*ordersvc.OrderDTO, error) {
	s.called = true
	s.lastCheckout = input
	return s.order, s.err
}

func (s *stubCheckoutService) Transition(ctx context.Context, input ordersvc.TransitionInput) (*ordersvc.OrderDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubCheckoutService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole enums.UserRole) (*ordersvc.OrderDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubCheckoutService) ListOrders(ctx context.Context, input ordersvc.ListOrdersInput) (*ordersvc.OrderList, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func checkoutRequest(userID uuid.UUID, role enums.UserRole) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestCheckoutCreatesOrder(t *testing.T) {
	buyerID := uuid.New()
	svc := &stubCheckoutService{order: &ordersvc.OrderDTO{
		ID:     uuid.New(),
		UserID: buyerID,
		Status: enums.OrderStatePending,
	}}

	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, checkoutRequest(buyerID, enums.UserRoleBuyer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastCheckout.UserID != buyerID {
		t.Fatalf("expected buyer id forwarded, got %s", svc.lastCheckout.UserID)
	}
	if svc.lastCheckout.ActorRole != enums.UserRoleBuyer {
		t.Fatalf("expected buyer role forwarded, got %q", svc.lastCheckout.ActorRole)
	}

	var payload struct {
		Data ordersvc.OrderDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Status != enums.OrderStatePending {
		t.Fatalf("expected pending order in response, got %+v", payload.Data)
	}
}

func TestCheckoutRequiresUserContext(t *testing.T) {
	svc := &stubCheckoutService{}
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)

	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if svc.called {
		t.Fatal("service must not be called without user context")
	}
}

func TestCheckoutRejectsUnknownRole(t *testing.T) {
	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, "superadmin")
	resp := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if svc.called {
		t.Fatal("service must not be called for an unknown role")
	}
}

func TestCheckoutMapsEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, checkoutRequest(uuid.New(), enums.UserRoleBuyer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutMapsOutOfStock(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")}
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, checkoutRequest(uuid.New(), enums.UserRoleBuyer))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "OUT_OF_STOCK" {
		t.Fatalf("expected OUT_OF_STOCK code, got %q", payload.Error.Code)
	}
}
