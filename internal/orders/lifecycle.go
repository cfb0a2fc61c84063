package orders

import (
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
)

// transitionRoles is the single authorization table for the lifecycle.
// The key is the target state; the value is the only role allowed to
// move an order into it. Pending is absent because orders are born
// pending at checkout, never moved into it.
var transitionRoles = map[enums.OrderState]enums.UserRole{
	enums.OrderStateConfirmed: enums.UserRoleBusiness,
	enums.OrderStateEnRoute:   enums.UserRoleDelivery,
	enums.OrderStateDelivered: enums.UserRoleDelivery,
}

// Advance validates a requested lifecycle transition. Adjacency is
// checked before authorization: a request that skips or rewinds states
// reports a state conflict even when the actor could never perform it.
// Requesting the state the order is already in succeeds; the caller is
// expected to skip the write in that case.
func Advance(current, target enums.OrderState, actor enums.UserRole) error {
	if !current.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order state").
			WithDetails(map[string]any{"state": current.String()})
	}
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown target state").
			WithDetails(map[string]any{"state": target.String()})
	}

	if target == current {
		return nil
	}

	next, ok := current.Next()
	if !ok || next != target {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed from current state").
			WithDetails(map[string]any{
				"current": current.String(),
				"target":  target.String(),
			})
	}

	if transitionRoles[target] != actor {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot perform this transition").
			WithDetails(map[string]any{
				"target": target.String(),
				"role":   actor.String(),
			})
	}
	return nil
}
