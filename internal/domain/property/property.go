package property

import (
	"context"
	"errors"
	"strings"
	"time"

	"habita/internal/domain/shared/money"
	"habita/internal/domain/user"
)

var (
	ErrIDRequired    = errors.New("property: id is required")
	ErrHostRequired  = errors.New("property: host is required")
	ErrGuestsLimit   = errors.New("property: max guests must be at least 1")
	ErrNightlyRate   = errors.New("property: price per night must be non-negative")
	ErrNotFound      = errors.New("property: not found")
	ErrTitleRequired = errors.New("property: title is required")
)

type ID string

// Property is the read-only view of a rentable unit the booking engine needs:
// who hosts it, what a night costs and how many guests fit.
type Property struct {
	ID            ID
	Host          user.ID
	Title         string
	PricePerNight money.Money
	MaxGuests     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
	ListByHost(ctx context.Context, host user.ID) ([]*Property, error)
	Save(ctx context.Context, property *Property) error
}

type CreateParams struct {
	ID            ID
	Host          user.ID
	Title         string
	PricePerNight money.Money
	MaxGuests     int
	Now           time.Time
}

func New(params CreateParams) (*Property, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.MaxGuests < 1 {
		return nil, ErrGuestsLimit
	}
	if params.PricePerNight.Amount < 0 {
		return nil, ErrNightlyRate
	}
	if _, err := money.New(params.PricePerNight.Amount, params.PricePerNight.Currency); err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Property{
		ID:            params.ID,
		Host:          params.Host,
		Title:         strings.TrimSpace(params.Title),
		PricePerNight: params.PricePerNight,
		MaxGuests:     params.MaxGuests,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *Property) HostedBy(id user.ID) bool {
	return p != nil && id != "" && p.Host == id
}

func (p *Property) Fits(guests int) bool {
	return guests >= 1 && guests <= p.MaxGuests
}
