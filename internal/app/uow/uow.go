package uow

import (
	"context"
	"errors"

	"habita/internal/app/outbox"
	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
)

// ErrTransient marks a commit that lost a race with another writer and may succeed on retry.
var ErrTransient = errors.New("uow: transient commit failure")

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Properties() domainproperty.Repository
	Availability() domainavailability.Repository
	Reservations() domainreservation.Repository
	// Outbox stages event records that become visible only if the unit commits.
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// IsTransient reports whether err, or anything it wraps, is a retryable commit failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}
