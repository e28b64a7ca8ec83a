package dto

import (
	"habita/internal/domain/availability"
	"habita/internal/domain/shared/daterange"
)

type OccupiedDates struct {
	PropertyID         string   `json:"property_id"`
	Dates              []string `json:"dates"`
	ActiveReservations int      `json:"total_reservations"`
}

type RebuildResult struct {
	PropertyID string `json:"property_id"`
	Blocks     int    `json:"blocks"`
	Version    int64  `json:"version"`
}

func MapOccupiedDates(cal *availability.Calendar) OccupiedDates {
	out := OccupiedDates{Dates: []string{}}
	if cal == nil {
		return out
	}
	out.PropertyID = string(cal.PropertyID)
	for d := range cal.OccupiedDates() {
		out.Dates = append(out.Dates, daterange.FormatDay(d))
	}
	out.ActiveReservations = cal.ActiveCount()
	return out
}
