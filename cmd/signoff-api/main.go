package main

import (
	"context"
	"os"

	"github.com/signoffhq/signoff/pkg/cmd"
	"github.com/signoffhq/signoff/pkg/log"
	"github.com/signoffhq/signoff/pkg/notification"
	"github.com/signoffhq/signoff/pkg/otelhelper"
	"github.com/signoffhq/signoff/pkg/reminder"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "signoff-api",
		Usage:                 "Create and manage approval sign-off chains",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for cache invalidation (empty disables it)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "reminder-schedule",
				Usage:   "Cron schedule for pending step reminders",
				Value:   "0 9 * * *",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "reminder-min-age",
				Usage:   "Minimum time since the last approval update before a reminder is sent",
				Value:   reminder.DefaultMinAge,
				Sources: cli.EnvVars("REMINDER_MIN_AGE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Signoff API")

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				if _, err := otelhelper.NewTracer(ctx, "signoff-api"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			invalidator := cmd.NewCacheInvalidator(command.String("redis-url"), logger)
			defer func() {
				if err := invalidator.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close cache invalidator", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				invalidator,
			)

			notifier := notification.NewNotifier(eventBus, notification.NewLogSender(logger), logger)
			if err := notifier.Start(ctx); err != nil {
				return err
			}

			reminders := reminder.New(
				api.ApprovalService(),
				command.String("reminder-schedule"),
				command.Duration("reminder-min-age"),
				logger,
			)
			if err := reminders.Start(ctx); err != nil {
				return err
			}

			defer reminders.Stop()

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
