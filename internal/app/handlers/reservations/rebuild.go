package reservations

import (
	"context"
	"errors"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	handlersupport "habita/internal/app/handlers/support"
	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	"habita/internal/domain/shared/fault"
)

var ErrAdminOnly = errors.New("only admins may rebuild availability")

// RebuildAvailabilityHandler recomputes a property's calendar from its stored reservations.
type RebuildAvailabilityHandler struct {
	Deps
}

func (h *RebuildAvailabilityHandler) Handle(ctx context.Context, cmd RebuildAvailabilityCommand) (*dto.RebuildResult, error) {
	if !cmd.Actor.IsAdmin() {
		return nil, fault.Permission("actor", ErrAdminOnly)
	}
	unit, err := handlersupport.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()

	prop, err := loadProperty(ctx, unit, domainproperty.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	stored, err := unit.Reservations().ListByProperty(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	blocks := make([]domainavailability.Block, 0, len(stored))
	for _, res := range stored {
		if !res.OccupiesCalendar() {
			continue
		}
		blocks = append(blocks, domainavailability.Block{Range: res.Range, Reservation: string(res.ID), CreatedAt: res.CreatedAt})
	}

	cal, err := unit.Availability().Calendar(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	if err := cal.Rebuild(blocks, now); err != nil {
		return nil, conflictOnOverlap(err)
	}
	if err := unit.Availability().Save(ctx, cal); err != nil {
		return nil, err
	}
	if err := h.record(ctx, unit, cal.Drain()); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "availability rebuilt", "property_id", prop.ID, "blocks", len(blocks))
	return &dto.RebuildResult{PropertyID: string(prop.ID), Blocks: len(blocks), Version: cal.Version}, nil
}

var _ commands.Handler[RebuildAvailabilityCommand, *dto.RebuildResult] = (*RebuildAvailabilityHandler)(nil)
