package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/thnhpht/ITS/internal/api/http"
	"github.com/thnhpht/ITS/internal/api/http/handlers"
	"github.com/thnhpht/ITS/internal/auth"
	"github.com/thnhpht/ITS/internal/persistence"
	"github.com/thnhpht/ITS/internal/queue"
	"github.com/thnhpht/ITS/internal/service"
	"github.com/thnhpht/ITS/internal/ticketapi"
	"github.com/thnhpht/ITS/internal/worker"
)

func pollCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll pending ticket deltas and dispatch them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.poller()
			if err != nil {
				return err
			}
			if once {
				n, err := p.RunOnce(cmd.Context())
				if errors.Is(err, worker.ErrLocked) {
					a.logger.Info("another poller holds the lock")
					return nil
				}
				a.logger.Info("single cycle finished", zap.Int("deltas", n))
				return err
			}
			return p.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Deliver queued handoffs to the external ticketing system",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			broker := queue.NewRedisQueue(a.redis.Client, a.cfg.Queue, a.logger)
			calls := queue.NewCallLog(broker, a.cfg.Queue.APILogQueue, a.cfg.Queue.PublishTimeout, a.logger)
			consumer := worker.NewHandoffConsumer(worker.HandoffConsumerDependencies{
				Consumer: broker,
				Queue:    a.cfg.Queue.APIQueue,
				Tickets:  a.tickets,
				API:      ticketapi.NewClient(a.cfg.TicketAPI, calls, a.logger.Named("ticketapi")),
				Config:   a.cfg.TicketAPI,
				Retry:    a.cfg.Queue.RetryDelay,
				Metrics:  a.metrics,
				Logger:   a.logger.Named("consumer"),
			})
			return consumer.Run(cmd.Context())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tokens := auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.AccessTokenTTLMinutes)
			srv := fiber.New(fiber.Config{AppName: a.cfg.App.Name, DisableStartupMessage: true})
			httptransport.RegisterMiddlewares(srv, a.logger, a.metrics, a.cfg.App.RequestTimeout())
			httptransport.RegisterRoutes(srv, httptransport.RouteConfig{
				Health: handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, map[string]handlers.Pinger{
					"postgres": a.pg,
					"redis":    a.redis,
				}),
				Auth:           handlers.NewAuthHandler(service.NewAuthService(a.cfg.Auth, tokens)),
				Callback:       handlers.NewCallbackHandler(a.callbacks),
				Routing:        handlers.NewRoutingHandler(a.processor, a.workflow, a.lookup),
				AuthMiddleware: auth.NewAuthMiddleware(tokens),
				Metrics:        a.metrics,
			})

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("ops api listening", zap.String("addr", a.cfg.App.Addr()))
				errCh <- srv.Listen(a.cfg.App.Addr())
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				a.logger.Info("shutting down ops api")
				return srv.ShutdownWithTimeout(10 * time.Second)
			}
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the primary database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadBase()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if pg.Primary == nil {
				return fmt.Errorf("POSTGRES_DSN is required")
			}
			return persistence.RunMigrations(cmd.Context(), pg.Primary, cfg.Postgres.MigrationsDir, logger)
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for OPERATOR_PASSWORD_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) > 0 {
				password = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 uses the default)")
	cmd.Args = cobra.MaximumNArgs(1)
	return cmd
}
