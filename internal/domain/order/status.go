package order

import (
	"fmt"

	"github.com/xenking/promo-engine/internal/domain"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses.
const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
)

var next = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPaid,
	StatusPaid:      StatusFulfilled,
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusPaid, StatusFulfilled, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// CanTransition reports whether the order may move from s to to.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	return to == StatusCancelled || next[s] == to
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == domain.ErrInvalidInput }
