package order

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Action is a lifecycle operation applied to an order.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionShip    Action = "ship"
	ActionDeliver Action = "deliver"
	ActionCancel  Action = "cancel"
)

// target is the status an action moves to when it is legal.
func (a Action) target() Status {
	switch a {
	case ActionConfirm:
		return StatusConfirmed
	case ActionShip:
		return StatusShipped
	case ActionDeliver:
		return StatusDelivered
	case ActionCancel:
		return StatusCancelled
	}
	return ""
}

// actionFor maps a requested status onto the action that reaches it.
func actionFor(target Status) (Action, bool) {
	switch target {
	case StatusConfirmed:
		return ActionConfirm, true
	case StatusShipped:
		return ActionShip, true
	case StatusDelivered:
		return ActionDeliver, true
	case StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

// transitions is the complete lifecycle graph: from-state x action -> to-state.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionShip:   StatusShipped,
		ActionCancel: StatusCancelled,
	},
	StatusShipped: {
		ActionDeliver: StatusDelivered,
		ActionCancel:  StatusCancelled,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var (
	ErrInvalidState    = errors.New("invalid order state transition")
	ErrRevertToPending = errors.New("order status cannot be reverted to Pending")
)

// InvalidStateError reports an action that is illegal from the current status.
type InvalidStateError struct {
	Current   Status
	Attempted Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.Current, e.Attempted)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// Next looks up the status reached by applying action from the given status.
func Next(from Status, action Action) (Status, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", &InvalidStateError{Current: from, Attempted: action.target()}
	}
	return to, nil
}

// CanTransition reports whether action is legal from the given status.
func CanTransition(from Status, action Action) bool {
	_, ok := transitions[from][action]
	return ok
}
