package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/Loxess-crl/carrito-compras/internal/auth"
	"github.com/Loxess-crl/carrito-compras/internal/users"
	pkgAuth "github.com/Loxess-crl/carrito-compras/pkg/auth"
	"github.com/Loxess-crl/carrito-compras/pkg/auth/session"
	"github.com/Loxess-crl/carrito-compras/pkg/config"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
)

type stubAuthService struct {
	registerResult *users.UserDTO
	registerErr    error
	lastRegister   authsvc.RegisterRequest

	loginResult *authsvc.LoginResponse
	loginErr    error
	lastLogin   authsvc.LoginRequest

	refreshResult *authsvc.RefreshResponse
	refreshErr    error
	lastRefresh   authsvc.RefreshInput

	logoutErr  error
	lastLogout authsvc.LogoutInput
}

func (s *stubAuthService) Register(ctx context.Context, req authsvc.RegisterRequest) (*users.UserDTO, error) {
	s.lastRegister = req
	return s.registerResult, s.registerErr
}

func (s *stubAuthService) Login(ctx context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	s.lastLogin = req
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) Refresh(ctx context.Context, input authsvc.RefreshInput) (*authsvc.RefreshResponse, error) {
	s.lastRefresh = input
	return s.refreshResult, s.refreshErr
}

func (s *stubAuthService) Logout(ctx context.Context, input authsvc.LogoutInput) error {
	s.lastLogout = input
	return s.logoutErr
}

func authTestJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "auth-controller-test-secret",
		Issuer:            "carrito",
		ExpirationMinutes: 60,
	}
}

func TestAuthRegisterCreatesUser(t *testing.T) {
	svc := &stubAuthService{registerResult: &users.UserDTO{
		ID:          uuid.New(),
		Email:       "ana@example.com",
		DisplayName: "Ana",
		Role:        enums.UserRoleBuyer,
		IsActive:    true,
	}}

	body := `{"email":"ana@example.com","password":"hunter2hunter2","display_name":"Ana","role":"user"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	AuthRegister(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastRegister.Email != "ana@example.com" {
		t.Fatalf("expected request email forwarded, got %q", svc.lastRegister.Email)
	}
	if svc.lastRegister.Role != enums.UserRoleBuyer {
		t.Fatalf("expected buyer role forwarded, got %q", svc.lastRegister.Role)
	}

	var payload struct {
		Data users.UserDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Email != "ana@example.com" {
		t.Fatalf("expected user in response, got %+v", payload.Data)
	}
}

func TestAuthRegisterRejectsShortPassword(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"email":"ana@example.com","password":"short","display_name":"Ana","role":"user"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	AuthRegister(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.lastRegister.Email != "" {
		t.Fatal("service must not be called for invalid input")
	}
}

func TestAuthLoginReturnsTokens(t *testing.T) {
	svc := &stubAuthService{loginResult: &authsvc.LoginResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &users.UserDTO{ID: uuid.New(), Email: "ana@example.com"},
	}}

	body := `{"email":"ana@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Data authsvc.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.AccessToken != "access" || payload.Data.RefreshToken != "refresh" {
		t.Fatalf("expected token pair, got %+v", payload.Data)
	}
}

func TestAuthLoginMapsBadCredentials(t *testing.T) {
	svc := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	body := `{"email":"ana@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshAcceptsExpiredAccessToken(t *testing.T) {
	cfg := authTestJWTConfig()
	userID := uuid.New()
	accessID := session.NewAccessID()

	// Minted well in the past so the token is expired by the time the
	// handler parses it.
	token, err := pkgAuth.MintAccessToken(cfg, time.Now().Add(-24*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleBuyer,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc := &stubAuthService{refreshResult: &authsvc.RefreshResponse{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
	}}

	body := `{"refresh_token":"opaque-refresh-token"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	AuthRefresh(svc, cfg, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastRefresh.UserID != userID {
		t.Fatalf("expected claims user forwarded, got %s", svc.lastRefresh.UserID)
	}
	if svc.lastRefresh.AccessID != accessID {
		t.Fatalf("expected access id forwarded, got %q", svc.lastRefresh.AccessID)
	}
	if svc.lastRefresh.RefreshToken != "opaque-refresh-token" {
		t.Fatalf("expected refresh token forwarded, got %q", svc.lastRefresh.RefreshToken)
	}
}

func TestAuthRefreshRequiresAuthorizationHeader(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"refresh_token":"opaque-refresh-token"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	AuthRefresh(svc, authTestJWTConfig(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if svc.lastRefresh.RefreshToken != "" {
		t.Fatal("service must not be called without credentials")
	}
}

func TestAuthLogoutRevokesPresentedSession(t *testing.T) {
	cfg := authTestJWTConfig()
	userID := uuid.New()
	accessID := session.NewAccessID()

	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleBuyer,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	AuthLogout(svc, cfg, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastLogout.UserID != userID || svc.lastLogout.AccessID != accessID {
		t.Fatalf("expected session identity forwarded, got %+v", svc.lastLogout)
	}
}

func TestAuthLogoutRejectsExpiredToken(t *testing.T) {
	cfg := authTestJWTConfig()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now().Add(-24*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleBuyer,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	AuthLogout(svc, cfg, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
