package policy

import (
	"errors"
	"time"
)

var ErrInvalidSchedule = errors.New("appointment start is not after now")

type Method string

const (
	// MethodCard settles at checkout time.
	MethodCard Method = "card"
	// MethodBankVoucher settles out-of-band, typically within days.
	MethodBankVoucher Method = "bank_voucher"
)

// Policy is the outcome of selecting payment methods for an appointment:
// which methods the checkout may offer, how long the payment session stays
// open, and whether (and for how long) the slot must be held in the meantime.
type Policy struct {
	Methods           []Method
	PaymentWindow     time.Duration
	ReservationWindow time.Duration
	NeedsReservation  bool
}

func (p Policy) AllowsDelayed() bool {
	for _, m := range p.Methods {
		if m == MethodBankVoucher {
			return true
		}
	}
	return false
}

// Config carries the tunable windows. Provider limits bound the delayed
// payment window because the provider refuses sessions outside them.
type Config struct {
	InstantThreshold     time.Duration
	InstantPaymentWindow time.Duration
	ReservationWindow    time.Duration
	ProviderMinWindow    time.Duration
	ProviderMaxWindow    time.Duration
}

type Selector struct {
	cfg Config
}

func NewSelector(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// Select decides the method set and windows from time-until-appointment.
// Appointments within the instant threshold get card-only checkout: a
// delayed voucher cannot settle fast enough to safely hold a near-term slot
// without risking abandonment-driven unavailability.
func (s *Selector) Select(now, appointmentStart time.Time) (Policy, error) {
	until := appointmentStart.Sub(now)
	if until <= 0 {
		return Policy{}, ErrInvalidSchedule
	}

	if until <= s.cfg.InstantThreshold {
		return Policy{
			Methods:          []Method{MethodCard},
			PaymentWindow:    s.cfg.InstantPaymentWindow,
			NeedsReservation: false,
		}, nil
	}

	window := clamp(until, s.cfg.ProviderMinWindow, s.cfg.ProviderMaxWindow)
	return Policy{
		Methods:           []Method{MethodCard, MethodBankVoucher},
		PaymentWindow:     window,
		ReservationWindow: s.cfg.ReservationWindow,
		NeedsReservation:  true,
	}, nil
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func MethodStrings(methods []Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}
