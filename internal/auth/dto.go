package auth

import (
	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/internal/users"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
)

// RegisterRequest creates an account with a fixed role. The role never
// changes after registration.
type RegisterRequest struct {
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8"`
	DisplayName string         `json:"display_name" validate:"required"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role" validate:"required"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest carries the refresh token presented for rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshInput combines the parsed (possibly expired) access claims with
// the presented refresh token.
type RefreshInput struct {
	UserID       uuid.UUID
	Role         enums.UserRole
	AccessID     string
	RefreshToken string
}

// RefreshResponse returns the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LogoutInput identifies the session to revoke. Buyer logouts also
// discard the active cart.
type LogoutInput struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}
