package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "habita/internal/app/outbox"
	"habita/internal/app/uow"
	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
	// Outbox persists event records in the same transaction as the aggregates.
	Outbox appoutbox.Outbox
}

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrOutboxNotConfigured     = errors.New("mongo: unit of work has no outbox")
)

// Begin starts a session. Write units also start a snapshot transaction; read-only units
// read with majority concern outside a transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	unit := &Unit{
		session:      session,
		outbox:       f.Outbox,
		properties:   NewPropertyRepository(f.DB),
		availability: NewCalendarRepository(f.DB),
		reservations: NewReservationRepository(f.DB),
	}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.inTxn = true
	return unit, nil
}

type Unit struct {
	session mongo.Session
	inTxn   bool
	outbox  appoutbox.Outbox

	properties   *PropertyRepository
	availability *CalendarRepository
	reservations *ReservationRepository
}

func (u *Unit) Properties() domainproperty.Repository {
	return u.properties
}

func (u *Unit) Availability() domainavailability.Repository {
	return u.availability
}

func (u *Unit) Reservations() domainreservation.Repository {
	return u.reservations
}

func (u *Unit) Outbox() appoutbox.Outbox {
	if u.outbox == nil {
		return missingOutbox{}
	}
	return u.outbox
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return classify(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

type missingOutbox struct{}

func (missingOutbox) Add(context.Context, appoutbox.EventRecord) error {
	return ErrOutboxNotConfigured
}
