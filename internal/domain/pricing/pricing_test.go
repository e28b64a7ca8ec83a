package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"habita/internal/domain/property"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/money"
)

func TestComputeNights(t *testing.T) {
	in := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		out     time.Time
		want    int
		wantErr error
	}{
		{name: "three nights", out: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), want: 3},
		{name: "late checkout same calendar gap", out: time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC), want: 3},
		{name: "same day", out: in, wantErr: ErrInvalidRange},
		{name: "reversed", out: in.AddDate(0, 0, -1), wantErr: ErrInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeNights(in, tc.out)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Fatalf("expected %d nights, got %d", tc.want, got)
			}
		})
	}
}

func TestComputeTotal(t *testing.T) {
	nightly := money.Must(10000, "USD")
	cases := []struct {
		name     string
		nights   int
		percent  float64
		want     int64
		wantErr  error
		price    money.Money
		usePrice bool
	}{
		{name: "no discount", nights: 3, want: 30000},
		{name: "ten percent", nights: 3, percent: 10, want: 27000},
		{name: "half cent rounds up", nights: 1, percent: 50, price: money.Must(999, "USD"), usePrice: true, want: 500},
		{name: "fractional percent", nights: 2, percent: 12.5, want: 17500},
		{name: "full discount floors at zero", nights: 2, percent: 100, want: 0},
		{name: "zero nights", nights: 0, wantErr: ErrInvalidNights},
		{name: "large subtotal stays exact", nights: 200000, percent: 10, price: money.Must(5_000_000_000, "USD"), usePrice: true, want: 900_000_000_000_000},
		{name: "subtotal overflow", nights: 3, price: money.Must(math.MaxInt64/2, "USD"), usePrice: true, wantErr: ErrAmountOverflow},
		{name: "negative price", nights: 1, price: money.Money{Amount: -1, Currency: "USD"}, usePrice: true, wantErr: ErrNegativePrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price := nightly
			if tc.usePrice {
				price = tc.price
			}
			d, err := DiscountFromPercent(tc.percent)
			if err != nil {
				t.Fatalf("discount: %v", err)
			}
			got, err := ComputeTotal(price, tc.nights, d)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if err == nil && got.Amount != tc.want {
				t.Fatalf("expected total %d, got %d", tc.want, got.Amount)
			}
		})
	}
}

func TestDiscountOutOfRangeIsRejected(t *testing.T) {
	for _, percent := range []float64{-0.01, 100.5, math.NaN(), math.Inf(1)} {
		if _, err := DiscountFromPercent(percent); !errors.Is(err, ErrInvalidDiscount) {
			t.Fatalf("percent %v: expected ErrInvalidDiscount, got %v", percent, err)
		}
	}
	if _, err := ComputeTotal(money.Must(100, "USD"), 1, Discount(10001)); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected raw basis points above 100%% to fail, got %v", err)
	}
	if got := ClampDiscount(140); got != 100 {
		t.Fatalf("expected clamp to 100, got %v", got)
	}
	if got := ClampDiscount(-3); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestStandardQuote(t *testing.T) {
	p, err := property.New(property.CreateParams{
		ID:            "prop-1",
		Host:          "host-1",
		Title:         "Loft",
		PricePerNight: money.Must(10000, "USD"),
		MaxGuests:     4,
	})
	if err != nil {
		t.Fatalf("property: %v", err)
	}
	r, err := daterange.Parse("2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	quote, err := Standard{}.Quote(context.Background(), QuoteInput{Property: p, Range: r, Discount: 2500})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Nights != 3 || quote.Subtotal.Amount != 30000 || quote.Total.Amount != 22500 || quote.Reduction.Amount != 7500 {
		t.Fatalf("unexpected breakdown %+v", quote)
	}
	if _, err := (Standard{}).Quote(context.Background(), QuoteInput{Range: r}); !errors.Is(err, ErrPropertyMissing) {
		t.Fatalf("expected ErrPropertyMissing, got %v", err)
	}
}
