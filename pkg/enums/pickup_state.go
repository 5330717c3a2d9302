package enums

import "fmt"

// PickupState is the lifecycle state of a scheduled pickup. The numeric codes
// are part of the wire format and must not be reordered.
type PickupState int

const (
	PickupProgrammed PickupState = 0
	PickupFulfilled  PickupState = 1
	PickupExpired    PickupState = 2
	PickupCancelled  PickupState = 3
)

var pickupStateNames = map[PickupState]string{
	PickupProgrammed: "programmed",
	PickupFulfilled:  "fulfilled",
	PickupExpired:    "expired",
	PickupCancelled:  "cancelled",
}

func (s PickupState) String() string {
	if name, ok := pickupStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsValid reports whether the value is one of the four canonical states.
func (s PickupState) IsValid() bool {
	_, ok := pickupStateNames[s]
	return ok
}

// IsTerminal reports whether the state freezes the pickup. Terminal pickups
// never change state again and their stock effects are settled.
func (s PickupState) IsTerminal() bool {
	return s == PickupFulfilled || s == PickupExpired || s == PickupCancelled
}

// CanTransitionTo reports whether the guarded state machine allows moving
// from s to next. Only programmed pickups may move, and only to a terminal
// state.
func (s PickupState) CanTransitionTo(next PickupState) bool {
	if s != PickupProgrammed {
		return false
	}
	return next.IsValid() && next.IsTerminal()
}

// ParsePickupState converts a raw numeric code into PickupState.
func ParsePickupState(code int) (PickupState, error) {
	state := PickupState(code)
	if !state.IsValid() {
		return 0, fmt.Errorf("invalid pickup state %d", code)
	}
	return state, nil
}
