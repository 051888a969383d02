// Package payment drives the payment page: an explicit state machine plus the
// controller that talks to the payment API and settles the local session.
package payment

import (
	"errors"
	"fmt"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/metrics"
)

var ErrIllegalTransition = errors.New("illegal transition of payment status")

// Machine starts in pending. It is not safe for concurrent use.
type Machine struct {
	status domain.PaymentStatus
}

func NewMachine() *Machine {
	return &Machine{status: domain.PaymentStatusPending}
}

func (m *Machine) Status() domain.PaymentStatus {
	return m.status
}

// Transition moves to next. processing -> processing is accepted as a no-op.
func (m *Machine) Transition(next domain.PaymentStatus) error {
	if m.status == next && next == domain.PaymentStatusProcessing {
		return nil
	}
	if !domain.CanTransitionTo(m.status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.status, next)
	}
	metrics.PaymentTransitions.WithLabelValues(m.status.String(), next.String()).Inc()
	m.status = next
	return nil
}
