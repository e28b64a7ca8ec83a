package pricing

import (
	"context"
	"errors"
	"math"
	"math/bits"
	"time"

	"habita/internal/domain/property"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/money"
)

var (
	ErrInvalidRange    = errors.New("pricing: checkout must be after checkin")
	ErrInvalidDiscount = errors.New("pricing: discount must be between 0 and 100")
	ErrInvalidNights   = errors.New("pricing: nights must be positive")
	ErrNegativePrice   = errors.New("pricing: price per night cannot be negative")
	ErrCurrencyUnset   = errors.New("pricing: currency must be defined")
	ErrPropertyMissing = errors.New("pricing: property is required")
	ErrAmountOverflow  = errors.New("pricing: stay total is too large")
)

// Discount is a percentage kept in basis points: 1250 is 12.5%.
type Discount int64

const (
	NoDiscount  Discount = 0
	MaxDiscount Discount = 10000
)

// DiscountFromPercent accepts values in [0,100] and rejects anything else.
func DiscountFromPercent(percent float64) (Discount, error) {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > 100 {
		return 0, ErrInvalidDiscount
	}
	return Discount(math.Round(percent * 100)), nil
}

func (d Discount) Validate() error {
	if d < NoDiscount || d > MaxDiscount {
		return ErrInvalidDiscount
	}
	return nil
}

func (d Discount) Percent() float64 {
	return float64(d) / 100
}

// ClampDiscount bounds a percent for display. Acceptance always goes through DiscountFromPercent.
func ClampDiscount(percent float64) float64 {
	switch {
	case math.IsNaN(percent), percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}

// ComputeNights counts calendar dates between checkin and checkout.
func ComputeNights(checkIn, checkOut time.Time) (int, error) {
	r, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return 0, ErrInvalidRange
	}
	return r.Nights(), nil
}

func rangeNights(r daterange.DateRange) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, ErrInvalidRange
	}
	return r.Nights(), nil
}

// ComputeTotal returns pricePerNight * nights * (1 - discount), rounded half-up to the minor unit.
// A subtotal that does not fit in int64 fails with ErrAmountOverflow; the discount step runs in
// 128 bits and cannot overflow.
func ComputeTotal(pricePerNight money.Money, nights int, discount Discount) (money.Money, error) {
	if pricePerNight.Currency == "" {
		return money.Money{}, ErrCurrencyUnset
	}
	if pricePerNight.Amount < 0 {
		return money.Money{}, ErrNegativePrice
	}
	if nights < 1 {
		return money.Money{}, ErrInvalidNights
	}
	if err := discount.Validate(); err != nil {
		return money.Money{}, err
	}
	subtotal, err := Subtotal(pricePerNight, nights)
	if err != nil {
		return money.Money{}, err
	}
	hi, lo := bits.Mul64(uint64(subtotal.Amount), uint64(MaxDiscount-discount))
	lo, carry := bits.Add64(lo, uint64(MaxDiscount)/2, 0)
	hi += carry
	total, _ := bits.Div64(hi, lo, uint64(MaxDiscount))
	return money.Money{Amount: int64(total), Currency: subtotal.Currency}, nil
}

// Subtotal is pricePerNight * nights, or ErrAmountOverflow when that exceeds int64.
func Subtotal(pricePerNight money.Money, nights int) (money.Money, error) {
	if pricePerNight.Amount < 0 {
		return money.Money{}, ErrNegativePrice
	}
	if nights < 1 {
		return money.Money{}, ErrInvalidNights
	}
	hi, lo := bits.Mul64(uint64(pricePerNight.Amount), uint64(nights))
	if hi != 0 || lo > math.MaxInt64 {
		return money.Money{}, ErrAmountOverflow
	}
	return money.Money{Amount: int64(lo), Currency: pricePerNight.Currency}, nil
}

// Breakdown is the priced view of a stay.
type Breakdown struct {
	Nights    int         `json:"nights"`
	Nightly   money.Money `json:"nightly"`
	Subtotal  money.Money `json:"subtotal"`
	Discount  Discount    `json:"discount_bp"`
	Reduction money.Money `json:"reduction"`
	Total     money.Money `json:"total"`
}

func (b *Breakdown) Validate() error {
	if b.Nightly.Currency == "" {
		return ErrCurrencyUnset
	}
	if b.Nights <= 0 {
		return ErrInvalidNights
	}
	return b.Discount.Validate()
}

func (b *Breakdown) RecalculateTotal() error {
	if err := b.Validate(); err != nil {
		return err
	}
	total, err := ComputeTotal(b.Nightly, b.Nights, b.Discount)
	if err != nil {
		return err
	}
	subtotal, err := Subtotal(b.Nightly, b.Nights)
	if err != nil {
		return err
	}
	b.Subtotal = subtotal
	reduction, err := b.Subtotal.Sub(total)
	if err != nil {
		return err
	}
	b.Reduction = reduction
	b.Total = total
	return nil
}

type QuoteInput struct {
	Property *property.Property
	Range    daterange.DateRange
	Discount Discount
}

type Calculator interface {
	Quote(ctx context.Context, input QuoteInput) (Breakdown, error)
}

// Standard prices a stay from the property's nightly rate.
type Standard struct{}

func (Standard) Quote(_ context.Context, input QuoteInput) (Breakdown, error) {
	if input.Property == nil {
		return Breakdown{}, ErrPropertyMissing
	}
	nights, err := rangeNights(input.Range)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		Nights:   nights,
		Nightly:  input.Property.PricePerNight,
		Discount: input.Discount,
	}
	if err := b.RecalculateTotal(); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}
