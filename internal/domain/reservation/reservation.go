package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"habita/internal/domain/pricing"
	"habita/internal/domain/property"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/events"
	"habita/internal/domain/shared/fault"
	"habita/internal/domain/shared/money"
	"habita/internal/domain/user"
)

const MaxCommentLength = 120

var (
	ErrNotFound          = errors.New("reservation: not found")
	ErrIDRequired        = errors.New("reservation: id is required")
	ErrUserRequired      = errors.New("reservation: user id is required")
	ErrPropertyRequired  = errors.New("reservation: property is required")
	ErrInvalidGuests     = errors.New("reservation: guest count must be at least 1")
	ErrTooManyGuests     = errors.New("reservation: guest count exceeds property capacity")
	ErrCommentTooLong    = fmt.Errorf("reservation: comment must be at most %d characters", MaxCommentLength)
	ErrQuoteMismatch     = errors.New("reservation: quote does not match the requested stay")
	ErrTerminal          = errors.New("reservation: reservation is closed; only payment corrections are accepted")
	ErrIllegalStatus     = errors.New("reservation: illegal status transition")
	ErrIllegalPayment    = errors.New("reservation: illegal payment status transition")
	ErrPropertyImmutable = errors.New("reservation: property cannot change after creation")
	ErrUserImmutable     = errors.New("reservation: user cannot change after creation")
)

type ID string

type Reservation struct {
	ID            ID
	PropertyID    property.ID
	UserID        user.ID
	Range         daterange.DateRange
	Guests        int
	Nights        int
	Discount      pricing.Discount
	Nightly       money.Money
	Total         money.Money
	Comment       string
	Status        Status
	PaymentStatus PaymentStatus
	RequestKey    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	UserID      user.ID
	PropertyIDs []property.ID
	Status      Status
	Limit       int
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Reservation, error)
	// ByRequestKey finds the reservation a user created with a client idempotency key.
	ByRequestKey(ctx context.Context, userID user.ID, key string) (*Reservation, error)
	Save(ctx context.Context, reservation *Reservation) error
	// List returns matches newest first.
	List(ctx context.Context, filter Filter) ([]*Reservation, error)
	ListByProperty(ctx context.Context, id property.ID) ([]*Reservation, error)
}

type CreateParams struct {
	ID         ID
	Property   *property.Property
	UserID     user.ID
	Range      daterange.DateRange
	Guests     int
	Quote      pricing.Breakdown
	Comment    string
	RequestKey string
	CreatedAt  time.Time
}

func New(params CreateParams) (*Reservation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if params.Property == nil {
		return nil, fault.NotFound("property_id", ErrPropertyRequired)
	}
	if strings.TrimSpace(string(params.UserID)) == "" {
		return nil, fault.Validation("user_id", ErrUserRequired)
	}
	if err := params.Range.Validate(); err != nil {
		return nil, fault.Validation("checkout", err)
	}
	if err := validateGuests(params.Property, params.Guests); err != nil {
		return nil, err
	}
	comment, err := normalizeComment(params.Comment)
	if err != nil {
		return nil, err
	}
	if err := checkQuote(params.Quote, params.Range); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	r := &Reservation{
		ID:            params.ID,
		PropertyID:    params.Property.ID,
		UserID:        params.UserID,
		Range:         params.Range,
		Guests:        params.Guests,
		Nights:        params.Quote.Nights,
		Discount:      params.Quote.Discount,
		Nightly:       params.Quote.Nightly,
		Total:         params.Quote.Total,
		Comment:       comment,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		RequestKey:    strings.TrimSpace(params.RequestKey),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.Record(CreatedEvent(r))
	return r, nil
}

// StayChange is a repriced set of stay attributes. The quote must already reflect Range and Discount.
type StayChange struct {
	Property *property.Property
	Range    daterange.DateRange
	Guests   int
	Quote    pricing.Breakdown
}

func (r *Reservation) ChangeStay(change StayChange, now time.Time) error {
	if r.Status.IsTerminal() {
		return fault.Transition("status", ErrTerminal)
	}
	if change.Property == nil || change.Property.ID != r.PropertyID {
		return fault.ImmutableField("property_id", ErrPropertyImmutable)
	}
	if err := change.Range.Validate(); err != nil {
		return fault.Validation("checkout", err)
	}
	if err := validateGuests(change.Property, change.Guests); err != nil {
		return err
	}
	if err := checkQuote(change.Quote, change.Range); err != nil {
		return err
	}
	if r.Range.Equal(change.Range) && r.Guests == change.Guests && r.Discount == change.Quote.Discount && r.Total == change.Quote.Total {
		return nil
	}
	previous := r.Range
	r.Range = change.Range
	r.Guests = change.Guests
	r.Nights = change.Quote.Nights
	r.Discount = change.Quote.Discount
	r.Nightly = change.Quote.Nightly
	r.Total = change.Quote.Total
	r.touch(now)
	r.Record(RescheduledEvent(r, previous))
	return nil
}

func (r *Reservation) UpdateComment(comment string, now time.Time) error {
	if r.Status.IsTerminal() {
		return fault.Transition("status", ErrTerminal)
	}
	normalized, err := normalizeComment(comment)
	if err != nil {
		return err
	}
	if normalized == r.Comment {
		return nil
	}
	r.Comment = normalized
	r.touch(now)
	return nil
}

// ChangeStatus moves the reservation along a legal edge. Setting the current status again is a no-op.
func (r *Reservation) ChangeStatus(to Status, now time.Time) error {
	if !to.Valid() {
		return fault.Validation("status", ErrUnknownStatus)
	}
	if to == r.Status {
		return nil
	}
	if !r.Status.CanTransitionTo(to) {
		return fault.Transition("status", fmt.Errorf("%w: %s -> %s", ErrIllegalStatus, r.Status, to))
	}
	old := r.Status
	r.Status = to
	r.touch(now)
	r.Record(StatusChangedEvent(r, old))
	return nil
}

// ChangePaymentStatus is allowed in every reservation status, including terminal ones.
func (r *Reservation) ChangePaymentStatus(to PaymentStatus, now time.Time) error {
	if !to.Valid() {
		return fault.Validation("payment_status", ErrUnknownPaymentStatus)
	}
	if to == r.PaymentStatus {
		return nil
	}
	if !r.PaymentStatus.CanTransitionTo(to) {
		return fault.Transition("payment_status", fmt.Errorf("%w: %s -> %s", ErrIllegalPayment, r.PaymentStatus, to))
	}
	old := r.PaymentStatus
	r.PaymentStatus = to
	r.touch(now)
	r.Record(PaymentStatusChangedEvent(r, old))
	return nil
}

// Snapshot copies the reservation without its pending events.
func (r *Reservation) Snapshot() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.EventRecorder = events.EventRecorder{}
	return &c
}

func (r *Reservation) IsActive() bool { return r.Status.IsActive() }

func (r *Reservation) OccupiesCalendar() bool { return r.Status.Occupies() }

func (r *Reservation) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}

func validateGuests(p *property.Property, guests int) error {
	if guests < 1 {
		return fault.Validation("guest_count", ErrInvalidGuests)
	}
	if !p.Fits(guests) {
		return fault.Validation("guest_count", fmt.Errorf("%w (max %d)", ErrTooManyGuests, p.MaxGuests))
	}
	return nil
}

func normalizeComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return "", fault.Validation("comment", ErrCommentTooLong)
	}
	return comment, nil
}

func checkQuote(q pricing.Breakdown, r daterange.DateRange) error {
	if q.Nights != r.Nights() || q.Nights < 1 {
		return fault.Validation("checkout", ErrQuoteMismatch)
	}
	if err := q.Discount.Validate(); err != nil {
		return fault.Validation("discount_percent", err)
	}
	if q.Total.Amount < 0 {
		return fault.Validation("total_amount", ErrQuoteMismatch)
	}
	return nil
}
