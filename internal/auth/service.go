package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Loxess-crl/carrito-compras/internal/cart"
	"github.com/Loxess-crl/carrito-compras/internal/users"
	pkgauth "github.com/Loxess-crl/carrito-compras/pkg/auth"
	"github.com/Loxess-crl/carrito-compras/pkg/auth/session"
	"github.com/Loxess-crl/carrito-compras/pkg/config"
	dbpkg "github.com/Loxess-crl/carrito-compras/pkg/db"
	"github.com/Loxess-crl/carrito-compras/pkg/db/models"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox/payloads"
	"github.com/Loxess-crl/carrito-compras/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, input RefreshInput) (*RefreshResponse, error)
	Logout(ctx context.Context, input LogoutInput) error
}

type userRepository interface {
	Create(ctx context.Context, tx *gorm.DB, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID, reason string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Carts          cartClearer
	TX             txRunner
	Outbox         outboxPublisher
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	users       userRepository
	session     sessionManager
	carts       cartClearer
	tx          txRunner
	outbox      outboxPublisher
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		carts:       params.Carts,
		tx:          params.TX,
		outbox:      params.Outbox,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates the account. Email uniqueness is enforced by the
// database; a duplicate reports a conflict, not an internal error.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err = s.users.Create(ctx, tx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			Phone:        req.Phone,
			Role:         req.Role,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_users_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: created.ID, Role: string(created.Role)},
			Data: payloads.UserRegisteredEvent{
				UserID: created.ID,
				Role:   created.Role,
				Email:  created.Email,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit user registered")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.verifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	accessToken, err := s.mintAccess(now, user.ID, user.Role, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

// Refresh rotates the session bound to the presented token pair and
// mints a fresh access token with the same identity and role.
func (s *service) Refresh(ctx context.Context, input RefreshInput) (*RefreshResponse, error) {
	if input.UserID == uuid.Nil || strings.TrimSpace(input.AccessID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing")
	}
	if strings.TrimSpace(input.RefreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refresh token required")
	}

	newAccessID, refreshToken, err := s.session.Rotate(ctx, input.AccessID, input.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	accessToken, err := s.mintAccess(time.Now().UTC(), input.UserID, input.Role, newAccessID)
	if err != nil {
		return nil, err
	}

	return &RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout revokes the session. Buyer logouts also discard the active
// cart, so the next session starts empty.
func (s *service) Logout(ctx context.Context, input LogoutInput) error {
	if input.UserID == uuid.Nil || strings.TrimSpace(input.AccessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing")
	}

	if err := s.session.Revoke(ctx, input.AccessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}

	if input.Role == enums.UserRoleBuyer {
		if err := s.carts.Clear(ctx, input.UserID, cart.ClearReasonLogout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
	}
	return nil
}

// verifyCredentials resolves the user by email and checks the password.
// Every failure mode reports the same message so callers cannot probe
// which emails exist.
func (s *service) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	unauthorized := pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)

	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, unauthorized
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, unauthorized
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, unauthorized
	}
	return user, nil
}

func (s *service) mintAccess(now time.Time, userID uuid.UUID, role enums.UserRole, accessID string) (string, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}
