package checkout

import (
	"errors"
	"fmt"
)

// State is a step of the checkout flow.
type State string

const (
	StateIdle            State = "idle"
	StateAddressSelected State = "address_selected"
	StateCouponApplied   State = "coupon_applied"
	StateConfirming      State = "confirming"
	StateSubmitted       State = "submitted"
	StateFailed          State = "failed"
)

// Event moves the flow between states.
type Event string

const (
	EventSelectAddress Event = "select_address"
	EventApplyCoupon   Event = "apply_coupon"
	EventRemoveCoupon  Event = "remove_coupon"
	EventConfirm       Event = "confirm"
	EventSucceed       Event = "succeed"
	EventFail          Event = "fail"
	EventRecover       Event = "recover"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("checkout: invalid state transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventSelectAddress: StateAddressSelected,
	},
	StateAddressSelected: {
		EventSelectAddress: StateAddressSelected,
		EventApplyCoupon:   StateCouponApplied,
		EventConfirm:       StateConfirming,
	},
	StateCouponApplied: {
		EventSelectAddress: StateCouponApplied,
		EventApplyCoupon:   StateCouponApplied,
		EventRemoveCoupon:  StateAddressSelected,
		EventConfirm:       StateConfirming,
	},
	StateConfirming: {
		EventSucceed: StateSubmitted,
		EventFail:    StateFailed,
	},
	StateFailed: {
		EventRecover: StateAddressSelected,
	},
}

// Transition returns the state reached from "from" on ev.
func Transition(from State, ev Event) (State, error) {
	if from == "" {
		from = StateIdle
	}
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
}

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateSubmitted
}
