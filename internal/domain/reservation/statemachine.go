package reservation

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrUnknownStatus        = errors.New("reservation: unknown status")
	ErrUnknownPaymentStatus = errors.New("reservation: unknown payment status")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusRejected:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", ErrUnknownStatus
	}
	return s, nil
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(statusTransitions[s], next)
}

func (s Status) IsTerminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// Occupies reports whether a reservation in this status blocks its dates.
// Completed stays keep their dates; only rejected and cancelled ones free them.
func (s Status) Occupies() bool {
	return s.Valid() && s != StatusRejected && s != StatusCancelled
}

// IsActive is true while the stay is still in progress of being arranged or held.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusConfirmed
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {PaymentPending},
	PaymentRefunded: {},
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", ErrUnknownPaymentStatus
	}
	return s, nil
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[s], next)
}
