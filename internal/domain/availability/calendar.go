package availability

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"habita/internal/domain/property"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/events"
)

var (
	ErrOverlappingRange = errors.New("availability: dates unavailable")
	ErrRangeNotFound    = errors.New("availability: range not found")
	ErrReferenceMissing = errors.New("availability: reservation reference is required")
)

// Block is the occupied range of one reservation.
type Block struct {
	Range       daterange.DateRange
	Reservation string
	CreatedAt   time.Time
}

// Calendar is the per-property index of occupied ranges. Blocks never overlap and stay
// sorted by checkin, so occupancy reads are a single ordered walk.
type Calendar struct {
	PropertyID property.ID
	Blocks     []Block
	Version    int64
	events.EventRecorder
}

type Repository interface {
	// Calendar returns the stored calendar, or an empty one at version 0.
	Calendar(ctx context.Context, id property.ID) (*Calendar, error)
	Save(ctx context.Context, calendar *Calendar) error
}

func NewCalendar(id property.ID) *Calendar {
	return &Calendar{PropertyID: id}
}

// IsRangeFree reports whether r overlaps no block other than the one held by exclude.
func (c *Calendar) IsRangeFree(r daterange.DateRange, exclude string) bool {
	return len(c.Conflicts(r, exclude)) == 0
}

func (c *Calendar) Conflicts(r daterange.DateRange, exclude string) []Block {
	var out []Block
	for _, block := range c.Blocks {
		if !block.Range.CheckIn.Before(r.CheckOut) {
			break
		}
		if exclude != "" && block.Reservation == exclude {
			continue
		}
		if block.Range.Overlaps(r) {
			out = append(out, block)
		}
	}
	return out
}

func (c *Calendar) Reserve(reservationID string, r daterange.DateRange, now time.Time) error {
	if reservationID == "" {
		return ErrReferenceMissing
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if c.indexOf(reservationID) >= 0 {
		return c.Reschedule(reservationID, r, now)
	}
	if !c.IsRangeFree(r, "") {
		c.Record(OverbookingPreventedEvent(c.PropertyID, reservationID, r, now))
		return ErrOverlappingRange
	}
	c.insert(Block{Range: r, Reservation: reservationID, CreatedAt: now.UTC()})
	c.Record(BlockedEvent(c.PropertyID, reservationID, r, now))
	return nil
}

// Reschedule moves an existing block, checking the new range against every other block.
func (c *Calendar) Reschedule(reservationID string, r daterange.DateRange, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	idx := c.indexOf(reservationID)
	if idx < 0 {
		return ErrRangeNotFound
	}
	previous := c.Blocks[idx]
	if previous.Range.Equal(r) {
		return nil
	}
	if !c.IsRangeFree(r, reservationID) {
		c.Record(OverbookingPreventedEvent(c.PropertyID, reservationID, r, now))
		return ErrOverlappingRange
	}
	c.Blocks = slices.Delete(c.Blocks, idx, idx+1)
	c.insert(Block{Range: r, Reservation: reservationID, CreatedAt: previous.CreatedAt})
	c.Record(RescheduledEvent(c.PropertyID, reservationID, previous.Range, r, now))
	return nil
}

func (c *Calendar) Release(reservationID string, now time.Time) error {
	idx := c.indexOf(reservationID)
	if idx < 0 {
		return ErrRangeNotFound
	}
	removed := c.Blocks[idx]
	c.Blocks = slices.Delete(c.Blocks, idx, idx+1)
	c.Record(ReleasedEvent(c.PropertyID, reservationID, removed.Range, now))
	return nil
}

// Holds reports whether the reservation currently occupies the calendar.
func (c *Calendar) Holds(reservationID string) bool {
	return c.indexOf(reservationID) >= 0
}

// Rebuild replaces every block with the given ranges. The calendar is left untouched
// when two of them overlap.
func (c *Calendar) Rebuild(blocks []Block, now time.Time) error {
	next := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Reservation == "" {
			return ErrReferenceMissing
		}
		if err := b.Range.Validate(); err != nil {
			return err
		}
		next = append(next, b)
	}
	sortBlocks(next)
	for i := 1; i < len(next); i++ {
		if next[i-1].Range.Overlaps(next[i].Range) {
			return ErrOverlappingRange
		}
	}
	c.Blocks = next
	c.Record(RebuiltEvent(c.PropertyID, len(next), now))
	return nil
}

// OccupiedDates yields each blocked date once, ascending. The sequence can be ranged
// over repeatedly and reflects the blocks at the time of each iteration.
func (c *Calendar) OccupiedDates() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		var last time.Time
		for _, block := range c.Blocks {
			for d := range block.Range.Days() {
				if !last.IsZero() && !d.After(last) {
					continue
				}
				last = d
				if !yield(d) {
					return
				}
			}
		}
	}
}

func (c *Calendar) ActiveCount() int {
	return len(c.Blocks)
}

// Clone copies the blocks but not the pending events.
func (c *Calendar) Clone() *Calendar {
	if c == nil {
		return nil
	}
	return &Calendar{
		PropertyID: c.PropertyID,
		Blocks:     slices.Clone(c.Blocks),
		Version:    c.Version,
	}
}

func (c *Calendar) indexOf(reservationID string) int {
	if reservationID == "" {
		return -1
	}
	return slices.IndexFunc(c.Blocks, func(b Block) bool { return b.Reservation == reservationID })
}

func (c *Calendar) insert(block Block) {
	pos, _ := slices.BinarySearchFunc(c.Blocks, block, compareBlocks)
	c.Blocks = slices.Insert(c.Blocks, pos, block)
}

func sortBlocks(blocks []Block) {
	slices.SortFunc(blocks, compareBlocks)
}

func compareBlocks(a, b Block) int {
	if c := a.Range.CheckIn.Compare(b.Range.CheckIn); c != 0 {
		return c
	}
	return a.Range.CheckOut.Compare(b.Range.CheckOut)
}
