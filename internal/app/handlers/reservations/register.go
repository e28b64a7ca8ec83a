package reservations

import (
	"time"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	"habita/internal/app/middleware"
	"habita/internal/app/outbox"
	"habita/internal/app/policies"
	"habita/internal/app/queries"
)

type Options struct {
	Deps
	Cache          policies.OccupancyCache
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Flusher        outbox.Flusher
	Retry          middleware.RetryPolicy
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Register builds both buses with every reservation handler and the middleware stack.
// Command order, outermost first: logging, idempotency, outbox flush, occupancy cache
// invalidation, validation, authorization, transaction.
func Register(opts Options) Buses {
	cmdBus := commands.NewInMemoryBus()
	update := &UpdateReservationHandler{Deps: opts.Deps}
	commands.RegisterHandler[CreateReservationCommand, *dto.Reservation](cmdBus, createReservationKey, &CreateReservationHandler{Deps: opts.Deps})
	commands.RegisterHandler[UpdateReservationCommand, *dto.Reservation](cmdBus, updateReservationKey, update)
	commands.RegisterHandler[TransitionStatusCommand, *dto.Reservation](cmdBus, transitionStatusKey, &TransitionStatusHandler{Updates: update})
	commands.RegisterHandler[RebuildAvailabilityCommand, *dto.RebuildResult](cmdBus, rebuildAvailabilityKey, &RebuildAvailabilityHandler{Deps: opts.Deps})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[GetReservationQuery, dto.Reservation](queryBus, getReservationKey, &GetReservationHandler{UoWFactory: opts.UoWFactory})
	queries.RegisterHandler[ListReservationsQuery, dto.ReservationCollection](queryBus, listReservationsKey, &ListReservationsHandler{UoWFactory: opts.UoWFactory})
	queries.RegisterHandler[GetOccupiedDatesQuery, dto.OccupiedDates](queryBus, getOccupiedDatesKey, &GetOccupiedDatesHandler{
		UoWFactory: opts.UoWFactory,
		Cache:      opts.Cache,
		Logger:     opts.Logger,
	})

	validator := middleware.NewStructValidator()
	retry := opts.Retry
	if retry.Logger == nil {
		retry.Logger = opts.Logger
	}

	cmdMiddleware := []middleware.CommandMiddleware{middleware.Logging(opts.Logger)}
	if opts.Idempotency != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Idempotency(opts.Idempotency, nil, opts.IdempotencyTTL))
	}
	if opts.Flusher != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.OutboxFlush(opts.Flusher, opts.Logger))
	}
	if opts.Cache != nil {
		cmdMiddleware = append(cmdMiddleware, invalidateOccupancy(opts.Cache, opts.Logger))
	}
	cmdMiddleware = append(cmdMiddleware,
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Transaction(opts.UoWFactory, nil, retry),
	)

	return Buses{
		Commands: middleware.ChainCommands(cmdBus, cmdMiddleware...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryLogging(opts.Logger),
			middleware.QueryValidation(validator),
			middleware.QueryAuthorization(middleware.RequireActor{}),
		),
	}
}
