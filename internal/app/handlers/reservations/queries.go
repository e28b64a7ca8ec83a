package reservations

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"habita/internal/app/dto"
	handlersupport "habita/internal/app/handlers/support"
	"habita/internal/app/policies"
	"habita/internal/app/queries"
	"habita/internal/app/uow"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	"habita/internal/domain/shared/fault"
)

const defaultListLimit = 100

type GetReservationHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetReservationHandler) Handle(ctx context.Context, q GetReservationQuery) (dto.Reservation, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reservation{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	res, err := loadReservation(execCtx, unit, q.ReservationID)
	if err != nil {
		return dto.Reservation{}, err
	}
	prop, err := loadProperty(execCtx, unit, res.PropertyID)
	if err != nil {
		return dto.Reservation{}, err
	}
	rel := domainreservation.RelationOf(q.Actor, res.UserID, prop.Host)
	if err := domainreservation.Authorize(rel, domainreservation.ActionView); err != nil {
		return dto.Reservation{}, err
	}
	return dto.MapReservation(res, prop), nil
}

// ListReservationsHandler returns what the actor may see: everything for admins,
// otherwise their own reservations plus those on properties they host.
type ListReservationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListReservationsHandler) Handle(ctx context.Context, q ListReservationsQuery) (dto.ReservationCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	filter := domainreservation.Filter{Limit: q.Limit}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if q.Status != "" {
		status, err := domainreservation.ParseStatus(q.Status)
		if err != nil {
			return dto.ReservationCollection{}, fault.Validation("status", err)
		}
		filter.Status = status
	}
	if id := strings.TrimSpace(q.PropertyID); id != "" {
		filter.PropertyIDs = []domainproperty.ID{domainproperty.ID(id)}
	}

	var items []*domainreservation.Reservation
	if q.Actor.IsAdmin() {
		items, err = unit.Reservations().List(execCtx, filter)
		if err != nil {
			return dto.ReservationCollection{}, err
		}
	} else {
		items, err = h.visible(execCtx, unit, q, filter)
		if err != nil {
			return dto.ReservationCollection{}, err
		}
	}

	props := make(map[domainproperty.ID]*domainproperty.Property)
	out := dto.ReservationCollection{Items: make([]dto.Reservation, 0, len(items))}
	for _, res := range items {
		prop, ok := props[res.PropertyID]
		if !ok {
			found, err := unit.Properties().ByID(execCtx, res.PropertyID)
			switch {
			case err == nil:
				prop = found
			case !errors.Is(err, domainproperty.ErrNotFound):
				return dto.ReservationCollection{}, err
			}
			props[res.PropertyID] = prop
		}
		out.Items = append(out.Items, dto.MapReservation(res, prop))
	}
	out.Total = len(out.Items)
	return out, nil
}

func (h *ListReservationsHandler) visible(ctx context.Context, unit uow.UnitOfWork, q ListReservationsQuery, base domainreservation.Filter) ([]*domainreservation.Reservation, error) {
	own := base
	own.UserID = q.Actor.ID
	items, err := unit.Reservations().List(ctx, own)
	if err != nil {
		return nil, err
	}

	hosted, err := unit.Properties().ListByHost(ctx, q.Actor.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]domainproperty.ID, 0, len(hosted))
	for _, p := range hosted {
		if len(base.PropertyIDs) > 0 && !slices.Contains(base.PropertyIDs, p.ID) {
			continue
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return items, nil
	}
	onHosted := base
	onHosted.PropertyIDs = ids
	more, err := unit.Reservations().List(ctx, onHosted)
	if err != nil {
		return nil, err
	}

	seen := make(map[domainreservation.ID]struct{}, len(items))
	for _, r := range items {
		seen[r.ID] = struct{}{}
	}
	for _, r := range more {
		if _, dup := seen[r.ID]; !dup {
			items = append(items, r)
		}
	}
	slices.SortFunc(items, func(a, b *domainreservation.Reservation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(items) > base.Limit {
		items = items[:base.Limit]
	}
	return items, nil
}

// GetOccupiedDatesHandler serves calendar reads, going through Cache when one is configured.
type GetOccupiedDatesHandler struct {
	UoWFactory uow.UoWFactory
	Cache      policies.OccupancyCache
	Logger     *slog.Logger
}

func (h *GetOccupiedDatesHandler) Handle(ctx context.Context, q GetOccupiedDatesQuery) (dto.OccupiedDates, error) {
	cacheable := false
	var generation int64
	if h.Cache != nil {
		cached, ok, err := h.Cache.Get(ctx, q.PropertyID)
		if err != nil {
			h.warn(ctx, "occupancy cache read failed", q.PropertyID, err)
		} else if ok {
			return cached, nil
		}
		// the generation must be read before the calendar
		if generation, err = h.Cache.Generation(ctx, q.PropertyID); err != nil {
			h.warn(ctx, "occupancy cache read failed", q.PropertyID, err)
		} else {
			cacheable = true
		}
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.OccupiedDates{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := loadProperty(execCtx, unit, domainproperty.ID(q.PropertyID))
	if err != nil {
		return dto.OccupiedDates{}, err
	}
	cal, err := unit.Availability().Calendar(execCtx, prop.ID)
	if err != nil {
		return dto.OccupiedDates{}, err
	}
	out := dto.MapOccupiedDates(cal)
	out.PropertyID = string(prop.ID)

	if cacheable {
		if err := h.Cache.Set(ctx, q.PropertyID, generation, out); err != nil {
			h.warn(ctx, "occupancy cache write failed", q.PropertyID, err)
		}
	}
	return out, nil
}

func (h *GetOccupiedDatesHandler) warn(ctx context.Context, msg, propertyID string, err error) {
	if h.Logger != nil {
		h.Logger.WarnContext(ctx, msg, "property_id", propertyID, "error", err)
	}
}

var (
	_ queries.Handler[GetReservationQuery, dto.Reservation]             = (*GetReservationHandler)(nil)
	_ queries.Handler[ListReservationsQuery, dto.ReservationCollection] = (*ListReservationsHandler)(nil)
	_ queries.Handler[GetOccupiedDatesQuery, dto.OccupiedDates]         = (*GetOccupiedDatesHandler)(nil)
)
