package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"habita/internal/app/outbox"
	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	domainuser "habita/internal/domain/user"
)

// Store is the committed state shared by every in-memory unit of work.
type Store struct {
	mu           sync.RWMutex
	properties   map[domainproperty.ID]*domainproperty.Property
	calendars    map[domainproperty.ID]*domainavailability.Calendar
	reservations map[domainreservation.ID]*domainreservation.Reservation
	requestKeys  map[string]domainreservation.ID
	relay        *Outbox
}

func NewStore(relay *Outbox) *Store {
	if relay == nil {
		relay = NewOutbox(nil)
	}
	return &Store{
		properties:   make(map[domainproperty.ID]*domainproperty.Property),
		calendars:    make(map[domainproperty.ID]*domainavailability.Calendar),
		reservations: make(map[domainreservation.ID]*domainreservation.Reservation),
		requestKeys:  make(map[string]domainreservation.ID),
		relay:        relay,
	}
}

// PutProperty seeds a property outside of any unit of work.
func (s *Store) PutProperty(p *domainproperty.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.properties[p.ID] = &cp
}

func (s *Store) property(id domainproperty.ID) (*domainproperty.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *Store) propertiesByHost(host domainuser.ID) []*domainproperty.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domainproperty.Property, 0)
	for _, p := range s.properties {
		if p.Host == host {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domainproperty.Property) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func (s *Store) calendar(id domainproperty.ID) *domainavailability.Calendar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cal, ok := s.calendars[id]; ok {
		return cal.Clone()
	}
	return domainavailability.NewCalendar(id)
}

func (s *Store) reservation(id domainreservation.ID) (*domainreservation.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, false
	}
	return r.Snapshot(), true
}

func (s *Store) reservationByKey(userID domainuser.ID, key string) (*domainreservation.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.requestKeys[requestKey(userID, key)]
	if !ok {
		return nil, false
	}
	return s.reservations[id].Snapshot(), true
}

func (s *Store) allReservations() []*domainreservation.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domainreservation.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r.Snapshot())
	}
	return out
}

func requestKey(userID domainuser.ID, key string) string {
	return string(userID) + "\x00" + key
}

// matches applies a reservation filter without the limit.
func matches(r *domainreservation.Reservation, f domainreservation.Filter) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if len(f.PropertyIDs) > 0 && !slices.Contains(f.PropertyIDs, r.PropertyID) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

func newestFirst(a, b *domainreservation.Reservation) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(string(b.ID), string(a.ID))
}

// UserRepository keeps the actors directory.
type UserRepository struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]*domainuser.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[domainuser.ID]*domainuser.User)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func cloneUser(u *domainuser.User) *domainuser.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &cp
}

var (
	_ domainuser.Repository = (*UserRepository)(nil)
	_ outbox.Flusher        = (*Outbox)(nil)
)
