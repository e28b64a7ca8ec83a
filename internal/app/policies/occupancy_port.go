package policies

import (
	"context"

	"habita/internal/app/dto"
)

// OccupancyCache keeps rendered occupied-date lists between reads.
// Every Invalidate bumps the property's generation; Set stores a value only while the
// generation still equals the one read before the calendar was loaded, so a slow reader
// cannot put back dates that a committed write already replaced.
type OccupancyCache interface {
	Get(ctx context.Context, propertyID string) (dto.OccupiedDates, bool, error)
	Generation(ctx context.Context, propertyID string) (int64, error)
	Set(ctx context.Context, propertyID string, generation int64, value dto.OccupiedDates) error
	Invalidate(ctx context.Context, propertyID string) error
}
