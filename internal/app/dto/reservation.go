package dto

import (
	"time"

	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	"habita/internal/domain/shared/daterange"
)

type PropertySnapshot struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	HostID        string   `json:"host_id"`
	PricePerNight MoneyDTO `json:"price_per_night"`
	MaxGuests     int      `json:"max_guests"`
}

type Reservation struct {
	ID              string            `json:"id"`
	PropertyID      string            `json:"property_id"`
	UserID          string            `json:"user_id"`
	Property        *PropertySnapshot `json:"property,omitempty"`
	CheckIn         string            `json:"checkin"`
	CheckOut        string            `json:"checkout"`
	GuestCount      int               `json:"guest_count"`
	Nights          int               `json:"nights"`
	DiscountPercent float64           `json:"discount_percent"`
	TotalAmount     MoneyDTO          `json:"total_amount"`
	Comment         string            `json:"comment,omitempty"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	IsActive        bool              `json:"is_active"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int64             `json:"version"`
}

type ReservationCollection struct {
	Items []Reservation `json:"items"`
	Total int           `json:"total"`
}

func MapReservation(r *domainreservation.Reservation, p *domainproperty.Property) Reservation {
	out := Reservation{
		ID:              string(r.ID),
		PropertyID:      string(r.PropertyID),
		UserID:          string(r.UserID),
		CheckIn:         daterange.FormatDay(r.Range.CheckIn),
		CheckOut:        daterange.FormatDay(r.Range.CheckOut),
		GuestCount:      r.Guests,
		Nights:          r.Nights,
		DiscountPercent: r.Discount.Percent(),
		TotalAmount:     MapMoney(r.Total),
		Comment:         r.Comment,
		Status:          string(r.Status),
		PaymentStatus:   string(r.PaymentStatus),
		IsActive:        r.IsActive(),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
	if p != nil {
		out.Property = &PropertySnapshot{
			ID:            string(p.ID),
			Title:         p.Title,
			HostID:        string(p.Host),
			PricePerNight: MapMoney(p.PricePerNight),
			MaxGuests:     p.MaxGuests,
		}
	}
	return out
}
