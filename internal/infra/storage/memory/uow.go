package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"habita/internal/app/outbox"
	"habita/internal/app/uow"
	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	domainuser "habita/internal/domain/user"
)

var (
	// ErrFactoryMisconfigured indicates a missing store.
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnly             = errors.New("memory: unit of work is read-only")
)

// Factory starts units against a shared Store.
type Factory struct {
	Store *Store
}

// Begin opens a unit that stages writes and validates them optimistically on Commit:
// every staged aggregate must still carry the version it was read at.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:        f.Store,
		readOnly:     opts.ReadOnly,
		calendars:    make(map[domainproperty.ID]stagedCalendar),
		reservations: make(map[domainreservation.ID]stagedReservation),
	}, nil
}

type stagedCalendar struct {
	value    *domainavailability.Calendar
	expected int64
}

type stagedReservation struct {
	value    *domainreservation.Reservation
	expected int64
}

// Unit is a uow.UnitOfWork backed by the in-memory Store.
type Unit struct {
	store    *Store
	readOnly bool

	mu           sync.Mutex
	done         bool
	calendars    map[domainproperty.ID]stagedCalendar
	reservations map[domainreservation.ID]stagedReservation
	records      []outbox.EventRecord
}

func (u *Unit) Properties() domainproperty.Repository { return propertyView{u} }

func (u *Unit) Availability() domainavailability.Repository { return calendarView{u} }

func (u *Unit) Reservations() domainreservation.Repository { return reservationView{u} }

func (u *Unit) Outbox() outbox.Outbox { return stagedOutbox{u} }

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(u.calendars) == 0 && len(u.reservations) == 0 && len(u.records) == 0 {
		return nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range u.calendars {
		var current int64
		if cal, ok := s.calendars[id]; ok {
			current = cal.Version
		}
		if current != staged.expected {
			return fmt.Errorf("%w: calendar %s at version %d, expected %d", uow.ErrTransient, id, current, staged.expected)
		}
	}
	for id, staged := range u.reservations {
		var current int64
		if r, ok := s.reservations[id]; ok {
			current = r.Version
		}
		if current != staged.expected {
			return fmt.Errorf("%w: reservation %s at version %d, expected %d", uow.ErrTransient, id, current, staged.expected)
		}
		if key := staged.value.RequestKey; key != "" {
			if owner, ok := s.requestKeys[requestKey(staged.value.UserID, key)]; ok && owner != id {
				return fmt.Errorf("%w: request key already used", uow.ErrTransient)
			}
		}
	}

	for id, staged := range u.calendars {
		s.calendars[id] = staged.value
	}
	for id, staged := range u.reservations {
		s.reservations[id] = staged.value
		if key := staged.value.RequestKey; key != "" {
			s.requestKeys[requestKey(staged.value.UserID, key)] = id
		}
	}
	s.relay.enqueue(u.records...)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.calendars = nil
	u.reservations = nil
	u.records = nil
	return nil
}

func (u *Unit) writable() error {
	if u.readOnly {
		return ErrReadOnly
	}
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

type propertyView struct{ u *Unit }

func (v propertyView) ByID(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	p, ok := v.u.store.property(id)
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	return p, nil
}

func (v propertyView) ListByHost(ctx context.Context, host domainuser.ID) ([]*domainproperty.Property, error) {
	return v.u.store.propertiesByHost(host), nil
}

// Save writes through immediately; properties are reference data, not part of the booking race.
func (v propertyView) Save(ctx context.Context, p *domainproperty.Property) error {
	if err := v.u.writable(); err != nil {
		return err
	}
	v.u.store.PutProperty(p)
	return nil
}

type calendarView struct{ u *Unit }

func (v calendarView) Calendar(ctx context.Context, id domainproperty.ID) (*domainavailability.Calendar, error) {
	v.u.mu.Lock()
	staged, ok := v.u.calendars[id]
	v.u.mu.Unlock()
	if ok {
		return staged.value.Clone(), nil
	}
	return v.u.store.calendar(id), nil
}

func (v calendarView) Save(ctx context.Context, cal *domainavailability.Calendar) error {
	if err := v.u.writable(); err != nil {
		return err
	}
	v.u.mu.Lock()
	defer v.u.mu.Unlock()
	expected := cal.Version
	if prev, ok := v.u.calendars[cal.PropertyID]; ok {
		expected = prev.expected
	}
	cal.Version = expected + 1
	v.u.calendars[cal.PropertyID] = stagedCalendar{value: cal.Clone(), expected: expected}
	return nil
}

type reservationView struct{ u *Unit }

func (v reservationView) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	v.u.mu.Lock()
	staged, ok := v.u.reservations[id]
	v.u.mu.Unlock()
	if ok {
		return staged.value.Snapshot(), nil
	}
	r, ok := v.u.store.reservation(id)
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return r, nil
}

func (v reservationView) ByRequestKey(ctx context.Context, userID domainuser.ID, key string) (*domainreservation.Reservation, error) {
	v.u.mu.Lock()
	for _, staged := range v.u.reservations {
		if staged.value.UserID == userID && staged.value.RequestKey == key {
			v.u.mu.Unlock()
			return staged.value.Snapshot(), nil
		}
	}
	v.u.mu.Unlock()
	r, ok := v.u.store.reservationByKey(userID, key)
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return r, nil
}

func (v reservationView) Save(ctx context.Context, r *domainreservation.Reservation) error {
	if err := v.u.writable(); err != nil {
		return err
	}
	v.u.mu.Lock()
	defer v.u.mu.Unlock()
	expected := r.Version
	if prev, ok := v.u.reservations[r.ID]; ok {
		expected = prev.expected
	}
	r.Version = expected + 1
	v.u.reservations[r.ID] = stagedReservation{value: r.Snapshot(), expected: expected}
	return nil
}

func (v reservationView) List(ctx context.Context, f domainreservation.Filter) ([]*domainreservation.Reservation, error) {
	out := make([]*domainreservation.Reservation, 0)
	for _, r := range v.merged() {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, newestFirst)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (v reservationView) ListByProperty(ctx context.Context, id domainproperty.ID) ([]*domainreservation.Reservation, error) {
	return v.List(ctx, domainreservation.Filter{PropertyIDs: []domainproperty.ID{id}})
}

// merged overlays this unit's staged reservations on the committed ones.
func (v reservationView) merged() []*domainreservation.Reservation {
	all := v.u.store.allReservations()
	v.u.mu.Lock()
	defer v.u.mu.Unlock()
	if len(v.u.reservations) == 0 {
		return all
	}
	out := make([]*domainreservation.Reservation, 0, len(all)+len(v.u.reservations))
	for _, r := range all {
		if _, staged := v.u.reservations[r.ID]; !staged {
			out = append(out, r)
		}
	}
	for _, staged := range v.u.reservations {
		out = append(out, staged.value.Snapshot())
	}
	return out
}

type stagedOutbox struct{ u *Unit }

func (o stagedOutbox) Add(ctx context.Context, rec outbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.mu.Lock()
	defer o.u.mu.Unlock()
	o.u.records = append(o.u.records, rec)
	return nil
}

var _ uow.UoWFactory = Factory{}
