package reservations

import (
	"context"
	"log/slog"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	"habita/internal/app/middleware"
	"habita/internal/app/policies"
)

// invalidateOccupancy drops the cached occupancy of the property a command touched once the
// command has committed, so that a caller reading right after a write sees it. It wraps the
// Transaction middleware. CacheInvalidator still runs on relayed events for writes made by
// other instances.
func invalidateOccupancy(cache policies.OccupancyCache, logger *slog.Logger) middleware.CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return invalidatingBus{next: next, cache: cache, logger: logger}
	}
}

type invalidatingBus struct {
	next   commands.Bus
	cache  policies.OccupancyCache
	logger *slog.Logger
}

func (b invalidatingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	res, err := b.next.Dispatch(ctx, cmd)
	if err != nil {
		return nil, err
	}
	propertyID := touchedProperty(res)
	if propertyID == "" {
		return res, nil
	}
	if err := b.cache.Invalidate(ctx, propertyID); err != nil && b.logger != nil {
		b.logger.WarnContext(ctx, "occupancy cache invalidation failed", "command", cmd.Key(), "property_id", propertyID, "error", err)
	}
	return res, nil
}

func touchedProperty(res any) string {
	switch v := res.(type) {
	case *dto.Reservation:
		if v != nil {
			return v.PropertyID
		}
	case *dto.RebuildResult:
		if v != nil {
			return v.PropertyID
		}
	}
	return ""
}
