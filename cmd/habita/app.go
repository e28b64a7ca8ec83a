package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"habita/internal/app/handlers/reservations"
	"habita/internal/app/middleware"
	appoutbox "habita/internal/app/outbox"
	"habita/internal/app/policies"
	"habita/internal/app/services/auth"
	"habita/internal/app/uow"
	domainpricing "habita/internal/domain/pricing"
	domainuser "habita/internal/domain/user"
	"habita/internal/infra/broker/kafka"
	rediscache "habita/internal/infra/cache/redis"
	"habita/internal/infra/config"
	mongodb "habita/internal/infra/db/mongo"
	"habita/internal/infra/fixtures"
	grpcserver "habita/internal/infra/grpc"
	ginserver "habita/internal/infra/http/gin"
	"habita/internal/infra/inbox"
	"habita/internal/infra/notify"
	"habita/internal/infra/obs"
	infraoutbox "habita/internal/infra/outbox"
	"habita/internal/infra/security"
	"habita/internal/infra/storage/memory"
	"habita/internal/infra/storage/s3"
	"habita/internal/infra/storage/scylla"
)

const inboxRetention = 7 * 24 * time.Hour

type runner struct {
	name string
	run  func(ctx context.Context) error
}

type application struct {
	factory  uow.UoWFactory
	auth     *auth.Service
	fanout   *appoutbox.Fanout
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	runners  []runner
	closers  []func(ctx context.Context) error
}

// storage is what a store backend contributes to the application.
type storage struct {
	factory     uow.UoWFactory
	flusher     appoutbox.Flusher
	users       domainuser.Repository
	idempotency middleware.IdempotencyStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{fanout: appoutbox.NewFanout(logger)}

	feed, err := app.notificationFeed(ctx, cfg, logger)
	if err != nil {
		return app, err
	}
	app.fanout.Subscribe(reservations.NotificationRelay{
		Notifier: policies.MultiNotifier{notify.LogNotifier{Logger: logger}, feed},
	})

	cache := app.occupancyCache(cfg)
	app.fanout.Subscribe(reservations.CacheInvalidator{Cache: cache})

	if cfg.S3Endpoint != "" {
		archive, err := s3.NewEventArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return app, fmt.Errorf("event archive: %w", err)
		}
		app.fanout.Subscribe(archive)
		app.check("s3", archive.Ping)
	}

	var store storage
	switch cfg.Store {
	case config.StoreMongo:
		store, err = app.mongoStorage(ctx, cfg, logger)
		if err != nil {
			return app, err
		}
	default:
		relay := memory.NewOutbox(app.fanout)
		store = storage{
			factory:     memory.Factory{Store: memory.NewStore(relay)},
			flusher:     relay,
			users:       memory.NewUserRepository(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}
	}
	app.factory = store.factory
	app.auth = &auth.Service{Users: store.users, Keys: security.BcryptHasher{}, Logger: logger}

	buses := reservations.Register(reservations.Options{
		Deps: reservations.Deps{
			UoWFactory: store.factory,
			Pricing:    domainpricing.Standard{},
			Encoder:    appoutbox.JSONEventEncoder{},
			Logger:     logger,
		},
		Cache:          cache,
		Idempotency:    store.idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Flusher:        store.flusher,
		Retry:          middleware.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxBackoff, Logger: logger},
	})

	app.handlers = ginserver.Handlers{
		Reservations:   &ginserver.ReservationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Notifications:  &ginserver.NotificationHandler{Feed: feed, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: app.auth, Logger: logger}.Handle,
	}
	if cfg.RateLimitRPS > 0 {
		app.handlers.RateLimiter = ginserver.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}
	app.health.Timeout = 2 * time.Second

	if cfg.GRPCAddr != "" {
		hs := grpcserver.NewHealthServer(cfg.GRPCAddr, app.health.Ready, logger)
		app.runners = append(app.runners, runner{name: "grpc-health", run: hs.Run})
	}
	return app, nil
}

// notificationFeed stores delivered notifications in Scylla when hosts are configured and in
// memory otherwise.
func (a *application) notificationFeed(ctx context.Context, cfg config.Config, logger *slog.Logger) (interface {
	policies.Notifier
	policies.NotificationFeed
}, error) {
	if len(cfg.ScyllaHosts) == 0 {
		return notify.NewMemoryFeed(0), nil
	}
	session, err := scylla.NewSession(ctx, scylla.Options{
		Hosts:    cfg.ScyllaHosts,
		Keyspace: cfg.ScyllaKeyspace,
		Timeout:  cfg.ScyllaTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("scylla: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		session.Close()
		return nil
	})
	feed := scylla.NewFeed(session)
	a.check("scylla", feed.Ping)
	return feed, nil
}

func (a *application) occupancyCache(cfg config.Config) policies.OccupancyCache {
	if cfg.RedisAddr == "" {
		return memory.NewOccupancyCache()
	}
	client := rediscache.NewClient(rediscache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	cache := rediscache.NewOccupancyCache(client, cfg.OccupancyCacheTTL)
	a.check("redis", cache.Ping)
	return cache
}

// mongoStorage wires the transactional store, the persistent outbox and its relay. Without
// brokers the worker delivers straight to the in-process fanout.
func (a *application) mongoStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.check("mongo", client.Ping)
	if err := client.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}
	outboxStore, err := infraoutbox.NewStore(ctx, client.DB)
	if err != nil {
		return storage{}, fmt.Errorf("outbox store: %w", err)
	}
	idempotency, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, fmt.Errorf("idempotency store: %w", err)
	}

	worker := &infraoutbox.Worker{
		Store:       outboxStore,
		Producer:    infraoutbox.LocalProducer{Sink: a.fanout},
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("habita-outbox"))
		if err != nil {
			return storage{}, fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
		worker.Producer = producer

		inboxStore, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID, inboxRetention)
		if err != nil {
			return storage{}, fmt.Errorf("inbox store: %w", err)
		}
		relay := &kafka.EventRelay{Inbox: inboxStore, Sink: a.fanout, Logger: logger}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, relay, logger)
		if err != nil {
			return storage{}, fmt.Errorf("kafka consumer: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
		topics := worker.Topics()
		a.runners = append(a.runners, runner{name: "kafka-consumer", run: func(ctx context.Context) error {
			return consumer.Run(ctx, topics)
		}})
	}
	a.runners = append(a.runners, runner{name: "outbox-worker", run: worker.Run})

	return storage{
		factory:     mongodb.Factory{DB: client.DB, Outbox: outboxStore},
		flusher:     outboxStore,
		users:       mongodb.NewUserRepository(client.DB),
		idempotency: idempotency,
	}, nil
}

func (a *application) check(name string, probe func(ctx context.Context) error) {
	a.health.Checks = append(a.health.Checks, obs.Check{Name: name, Probe: probe})
}

// seed loads the actor directory and property fixtures. Dev environments fall back to the
// demo directory when no files are configured.
func (a *application) seed(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	demoActors, demoProps := fixtures.Demo()
	actors, props := []fixtures.Actor(nil), []fixtures.Property(nil)
	if cfg.IsDev() {
		actors, props = demoActors, demoProps
	}
	if cfg.ActorsFile != "" {
		loaded, err := fixtures.LoadActors(cfg.ActorsFile)
		if err != nil {
			return err
		}
		actors = loaded
	}
	if cfg.PropertiesFixtures != "" {
		loaded, err := fixtures.LoadProperties(cfg.PropertiesFixtures)
		if err != nil {
			return err
		}
		props = loaded
	}
	now := time.Now()
	if err := fixtures.SeedActors(ctx, a.auth, actors, security.SecretGenerator{}, now, logger); err != nil {
		return err
	}
	if err := fixtures.SeedProperties(ctx, a.factory, props, now); err != nil {
		return err
	}
	logger.Info("directory loaded", "actors", len(actors), "properties", len(props))
	return nil
}

// close waits for in-flight event deliveries, then releases connections in reverse order.
func (a *application) close(ctx context.Context) {
	a.fanout.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}
