package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/events"
	"github.com/thnhpht/ITS/internal/lock"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/persistence"
	"github.com/thnhpht/ITS/internal/queue"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/rules"
	"github.com/thnhpht/ITS/internal/service"
	"github.com/thnhpht/ITS/internal/worker"
)

// app holds the wired collaborators shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	pg      *persistence.Postgres
	redis   *persistence.Redis
	events  events.Dispatcher

	tickets   repository.TicketRepository
	deltas    repository.DeltaRepository
	taxonomy  *service.TaxonomyService
	recipient *service.RecipientService
	workflow  *service.WorkflowService
	processor *service.Processor
	lookup    *service.LookupService
	callbacks *service.CallbackService
}

func loadBase() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects to Postgres and the broker and wires the routing pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadBase()
	if err != nil {
		return nil, err
	}

	loc := cfg.App.Location()
	ruleSet, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Primary == nil {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Primary, cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rds, err := persistence.ConnectRedis(ctx, cfg.Redis, cfg.Queue.ConnectRetries, cfg.Queue.RetryDelay, logger)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		pg:      pg,
		redis:   rds,
		events:  events.NewInMemoryDispatcher(logger),
	}
	service.NewNotificationService(a.events, logger.Named("events")).RegisterHandlers()

	broker := queue.NewRedisQueue(rds.Client, cfg.Queue, logger)
	ref := repository.NewReferenceRepository(pg.Replica)
	a.tickets = repository.NewTicketRepository(pg.Primary)
	a.deltas = repository.NewDeltaRepository(pg.Primary)

	labelCache, err := service.NewLabelCache(ctx, cfg.Rules.LabelCacheTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("label cache: %w", err)
	}
	a.taxonomy = service.NewTaxonomyService(service.TaxonomyDependencies{Repo: ref, Cache: labelCache, Logger: logger})
	a.recipient = service.NewRecipientService(service.RecipientDependencies{Org: ref, Rules: ruleSet, Metrics: a.metrics, Logger: logger})
	sla := service.NewSLAService(service.SLADependencies{Repo: ref, Rules: ruleSet, Location: loc, Metrics: a.metrics, Logger: logger})
	templates := service.NewTemplateService(service.TemplateDependencies{Repo: ref, Logger: logger})

	a.workflow = service.NewWorkflowService(service.WorkflowDependencies{
		Tickets: a.tickets,
		SLA:     sla,
		Handoff: service.NewHandoffService(service.HandoffDependencies{
			Tickets: a.tickets, Templates: templates, Rules: ruleSet,
			Publisher: broker, Queue: cfg.Queue.APIQueue, Location: loc, Logger: logger,
		}),
		Mailer: service.NewEmailService(service.EmailDependencies{
			Templates: templates, Publisher: broker, Queue: cfg.Queue.MailQueue, Location: loc, Logger: logger,
		}),
		Events:  a.events,
		Metrics: a.metrics,
		Logger:  logger,
	})
	a.processor = service.NewProcessor(service.ProcessorDependencies{
		Deltas:     a.deltas,
		Reports:    repository.NewReportRepository(pg.Primary),
		Taxonomy:   a.taxonomy,
		Routing:    service.NewRoutingService(service.RoutingDependencies{Repo: ref, Logger: logger}),
		SLA:        sla,
		Recipients: a.recipient,
		Workflow:   a.workflow,
		Audit: service.NewAuditService(service.AuditDependencies{
			Deltas: a.deltas, History: repository.NewTicketHistoryRepository(pg.Primary),
			Taxonomy: a.taxonomy, Events: a.events, Logger: logger,
		}),
		Metrics: a.metrics,
		Logger:  logger,
	})
	a.lookup = service.NewLookupService(service.LookupDependencies{
		Tickets: a.tickets, Taxonomy: a.taxonomy, Recipients: a.recipient, Logger: logger,
	})
	a.callbacks = service.NewCallbackService(service.CallbackDependencies{
		Tickets: a.tickets, ImageHost: cfg.TicketAPI.ImageHost,
		Publisher: broker, LogQueue: cfg.Queue.APILogQueue,
		Events: a.events, Logger: logger,
	})
	return a, nil
}

// pollLock picks the lock backend for the poller.
func (a *app) pollLock() (lock.Locker, error) {
	switch a.cfg.Poller.LockBackend {
	case "", "file":
		return lock.NewFileLock(a.cfg.Poller.LockPath, a.cfg.Poller.LockStaleAfter, a.logger), nil
	case "redis":
		return lock.NewRedisLock(a.redis.Client, a.cfg.Poller.LockKey, a.cfg.Poller.LockStaleAfter), nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", a.cfg.Poller.LockBackend)
}

func (a *app) poller() (*worker.Poller, error) {
	lk, err := a.pollLock()
	if err != nil {
		return nil, err
	}
	return worker.NewPoller(worker.PollerDependencies{
		Lock:      lk,
		Source:    a.deltas,
		Processor: a.processor,
		Config:    a.cfg.Poller,
		Metrics:   a.metrics,
		Logger:    a.logger.Named("poller"),
	}), nil
}

func (a *app) Close() {
	a.redis.Close()
	a.pg.Close()
	_ = a.logger.Sync()
}
