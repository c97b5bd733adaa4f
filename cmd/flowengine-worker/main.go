package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/zapdesk/flowengine/pkg/ai"
	"github.com/zapdesk/flowengine/pkg/cmd"
	"github.com/zapdesk/flowengine/pkg/crm"
	"github.com/zapdesk/flowengine/pkg/engine"
	"github.com/zapdesk/flowengine/pkg/log"
	"github.com/zapdesk/flowengine/pkg/nodes"
	"github.com/zapdesk/flowengine/pkg/otelhelper"
	"github.com/zapdesk/flowengine/pkg/scheduler"
	"github.com/zapdesk/flowengine/pkg/trigger"
	"github.com/zapdesk/flowengine/pkg/webhook"
)

func main() {
	command := &cli.Command{
		Name:                  "flowengine-worker",
		Usage:                 "Execute conversation flow sessions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus transport (kafka, gochannel)",
				Value:    "kafka",
				Required: false,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for distributed conversation locks (in-process locks when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "crm-base-url",
				Usage:    "Base URL of the CRM internal API",
				Required: true,
				Sources:  cli.EnvVars("CRM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-api-token",
				Usage:   "Bearer token for the CRM internal API",
				Value:   "",
				Sources: cli.EnvVars("CRM_API_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ai-api-key",
				Usage:   "API key for the AI completion provider",
				Value:   "",
				Sources: cli.EnvVars("AI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "ai-base-url",
				Usage:   "Base URL of the AI completion provider",
				Value:   "",
				Sources: cli.EnvVars("AI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("flowengine-worker").With("worker_id", workerID)

	logger.InfoContext(ctx, "Initializing Flowengine Worker")

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "worker", logger)
	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	tracer, err := otelhelper.NewTracer(ctx, "flowengine-worker")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	crmClient := crm.NewClient(logger, command.String("crm-base-url"), command.String("crm-api-token"))

	aiOpts := []ai.Option{}
	if baseURL := command.String("ai-base-url"); baseURL != "" {
		aiOpts = append(aiOpts, ai.WithBaseURL(baseURL))
	}

	aiClient := ai.NewClient(logger, command.String("ai-api-key"), aiOpts...)

	registry := nodes.NewRegistry(nodes.Deps{
		AI:       aiClient,
		History:  crmClient,
		Webhooks: webhook.NewCaller(logger),
		Logger:   logger,
	})

	sched := scheduler.NewScheduler(
		persistence.TimerRepository(),
		persistence.SessionRepository(),
		eventBus,
		logger,
	)

	eng := engine.NewEngine(engine.Config{
		Persistence: persistence,
		Registry:    registry,
		Matcher:     trigger.NewMatcher(logger),
		Messenger:   crmClient,
		CRM:         crmClient,
		Email:       crmClient,
		Timers:      sched,
		Publisher:   eventBus,
		Locker:      newLocker(command.String("redis-url"), workerID),
		Logger:      logger,
		Tracer:      tracer,
	})

	worker := NewWorker(workerID, eng, eventBus, sched, logger)

	err = worker.Start(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Worker stopped with error", "error", err)
	}

	return nil
}

// newLocker picks the conversation locker: Redis leases when a URL is given,
// in-process mutexes otherwise.
func newLocker(redisURL, owner string) engine.Locker {
	if redisURL == "" {
		return engine.NewKeyedMutex()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic("invalid redis URL: " + err.Error())
	}

	return engine.NewRedisLocker(redis.NewClient(opts), owner)
}
