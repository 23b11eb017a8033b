package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"estate_tracker/internal/config"
	"estate_tracker/internal/matcher"
	"estate_tracker/internal/probe"
	"estate_tracker/internal/publisher"
	"estate_tracker/internal/service"
	"estate_tracker/internal/source/feed"
	"estate_tracker/internal/source/file"
	"estate_tracker/internal/storage/postgres"
)

// app holds the wired components shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	conn   *postgres.Conn
	rabbit *publisher.RabbitMQ

	changes *postgres.ChangeStore
	users   *service.UserService
	crawl   *service.CrawlService
	queue   *service.QueueBuilder
	removal *service.RemovalChecker
	// dispatch is nil unless the app was opened with a notifier.
	dispatch *service.Dispatcher
}

func loadApp(withNotifier bool) (*app, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.LogLevel)
	if enqueueAfterCrawl {
		cfg.Crawl.Enqueue = true
	}

	cityMode, err := matcher.ParseCityMode(cfg.Matching.CityMode)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	a := &app{cfg: cfg, logger: logger, db: db}
	a.conn = postgres.NewConn(db, cfg.Database.MaxAttempts)

	txManager := postgres.NewTransactionManager(a.conn)
	sources := postgres.NewSourceStore(a.conn)
	sellers := postgres.NewSellerStore(a.conn)
	listings := postgres.NewListingStore(a.conn)
	properties := postgres.NewPropertyStore(a.conn)
	rawData := postgres.NewRawDataStore(a.conn)
	images := postgres.NewImageStore(a.conn)
	errStore := postgres.NewErrorStore(a.conn)
	reports := postgres.NewReportStore(a.conn)
	users := postgres.NewUserStore(a.conn)
	queue := postgres.NewQueueStore(a.conn)
	a.changes = postgres.NewChangeStore(a.conn)

	a.users = service.NewUserService(users, txManager, logger)
	a.queue = service.NewQueueBuilder(listings, users, queue, txManager, matcher.New(cityMode), logger)
	a.crawl = service.NewCrawlService(
		newSource(cfg, logger),
		service.NewResolver(sources, sellers, logger),
		service.NewUpserter(listings, properties, errStore, logger),
		service.NewDetector(a.changes, listings, properties, errStore, txManager, logger),
		rawData,
		images,
		errStore,
		reports,
		a.queue,
		logger,
		cfg.Crawl,
		cfg.Queue,
	)
	a.removal = service.NewRemovalChecker(listings, probe.New(cfg.Removal.Timeout), logger, cfg.Removal)

	if withNotifier {
		a.rabbit, err = publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.dispatch = service.NewDispatcher(queue, a.rabbit, logger, cfg.Dispatch)
	}

	return a, nil
}

// newSource reads from a JSON lines file when feed.file is set and from the
// HTTP feed otherwise.
func newSource(cfg *config.Config, logger *slog.Logger) service.Source {
	if cfg.Feed.File != "" {
		return file.New(cfg.Feed.File, logger)
	}
	return feed.New(feed.Config{
		Name:           cfg.Feed.Name,
		BaseURL:        cfg.Feed.BaseURL,
		PageSize:       cfg.Feed.PageSize,
		Timeout:        cfg.Feed.Timeout,
		MaxAttempts:    cfg.Feed.Retry.MaxAttempts,
		InitialBackoff: cfg.Feed.Retry.InitialBackoff,
		MaxBackoff:     cfg.Feed.Retry.MaxBackoff,
	}, logger)
}

func (a *app) Close() {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
