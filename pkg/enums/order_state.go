package enums

import "fmt"

// OrderState tracks the delivery lifecycle of an order. The sequence is
// linear and one-directional: pending → confirmed → en_route → delivered.
type OrderState string

const (
	OrderStatePending   OrderState = "pending"
	OrderStateConfirmed OrderState = "confirmed"
	OrderStateEnRoute   OrderState = "en_route"
	OrderStateDelivered OrderState = "delivered"
)

var validOrderStates = []OrderState{
	OrderStatePending,
	OrderStateConfirmed,
	OrderStateEnRoute,
	OrderStateDelivered,
}

var nextOrderState = map[OrderState]OrderState{
	OrderStatePending:   OrderStateConfirmed,
	OrderStateConfirmed: OrderStateEnRoute,
	OrderStateEnRoute:   OrderStateDelivered,
}

// String implements fmt.Stringer.
func (o OrderState) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderState.
func (o OrderState) IsValid() bool {
	for _, candidate := range validOrderStates {
		if candidate == o {
			return true
		}
	}
	return false
}

// Next returns the immediate successor state. ok is false for the
// terminal state and for unknown values.
func (o OrderState) Next() (OrderState, bool) {
	next, ok := nextOrderState[o]
	return next, ok
}

// IsTerminal reports whether no further transition exists from this state.
func (o OrderState) IsTerminal() bool {
	_, ok := nextOrderState[o]
	return !ok && o.IsValid()
}

// ParseOrderState converts raw input into an OrderState.
func ParseOrderState(value string) (OrderState, error) {
	for _, candidate := range validOrderStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order state %q", value)
}
