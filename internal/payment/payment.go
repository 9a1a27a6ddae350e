// Package payment wraps the opaque external payment collaborator and the
// upgrade flow it unlocks. The entitlement engine itself knows nothing
// about payments; the plan transition is only requested here, after the
// confirmer has said yes.
package payment

import (
	"context"
	"strings"
	"time"

	"veritas/internal/common"
	"veritas/internal/logging"
	"veritas/internal/users"
)

// Confirmer is the external payment trigger. Confirm reports whether the
// payment went through.
type Confirmer interface {
	Confirm(ctx context.Context, cardNumber string) (bool, error)
}

// Upgrader is the slice of the entitlement engine the flow needs.
type Upgrader interface {
	UpgradeToPro(ctx context.Context, userID string) (*users.Session, error)
}

// Service runs the confirm-then-upgrade flow.
type Service struct {
	confirmer Confirmer
	upgrader  Upgrader
	log       logging.Logger
}

func NewService(confirmer Confirmer, upgrader Upgrader, log logging.Logger) *Service {
	return &Service{confirmer: confirmer, upgrader: upgrader, log: log}
}

// Upgrade confirms payment and, only then, switches the user to Pro.
// A declined or failed payment surfaces as ErrPaymentNotConfirmed and
// leaves the plan untouched.
func (s *Service) Upgrade(ctx context.Context, userID, cardNumber string) (*users.Session, error) {
	ok, err := s.confirmer.Confirm(ctx, cardNumber)
	if err != nil {
		s.log.Warn(ctx, "payment confirmation failed", "error", err)
		return nil, common.ErrPaymentNotConfirmed
	}
	if !ok {
		return nil, common.ErrPaymentNotConfirmed
	}

	return s.upgrader.UpgradeToPro(ctx, userID)
}

// MockConfirmer simulates the external payment processor: it accepts any
// plausibly shaped card number after a short processing delay.
type MockConfirmer struct {
	Delay time.Duration
}

func (m *MockConfirmer) Confirm(ctx context.Context, cardNumber string) (bool, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cardNumber)
	if len(digits) < 12 {
		return false, nil
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return true, nil
}
