package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/api/middleware"
	"github.com/Loxess-crl/carrito-compras/api/responses"
	ordersvc "github.com/Loxess-crl/carrito-compras/internal/orders"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
)

// Checkout converts the buyer's active cart into a pending order.
func Checkout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), ordersvc.CheckoutInput{
			UserID:    userID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func actorFromContext(r *http.Request) (uuid.UUID, enums.UserRole, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	if rawUser == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown actor role")
	}
	return userID, role, nil
}
