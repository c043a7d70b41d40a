package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_workflow_backend/internal/email"
	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/identity"
	"crm_workflow_backend/internal/leads"
	leadsadapters "crm_workflow_backend/internal/leads/adapters"
	"crm_workflow_backend/internal/messages"
	"crm_workflow_backend/internal/notification"
	"crm_workflow_backend/internal/scheduler"
	"crm_workflow_backend/platform/config"
	"crm_workflow_backend/platform/db"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	workflow := cfg.GetWorkflow()

	// Worker-side wiring: status notifications and the payment sweep need
	// the same modules as the API, without HTTP routes.
	identityModule := identity.NewModule(pool, val, log)
	identityModule.RegisterHandlers(eventBus)

	leadsReader := leads.NewReader(pool)
	messagesModule := messages.NewModule(pool, eventBus, val, messages.NewChannel(ctx, cfg, log), leadsReader, identityModule.Service(), cfg.GetThreadReplyDBFallback(), log)

	notificationModule := notification.NewModule(pool, val, workflow, leadsReader, identityModule.Service(), messagesModule.Service(), log)
	notificationModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(pool, eventBus, val, workflow, leads.Dependencies{
		Identity: leadsadapters.NewIdentityProviderAdapter(identityModule.Service()),
		Messages: messagesModule.Service(),
		Notifier: notificationModule,
	}, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, scheduler.WorkerDeps{
		Sweeper:   leadsModule.EscalationService(),
		Digest:    email.NewSender(cfg),
		Bus:       eventBus,
		Threshold: workflow.EscalationAfter(),
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	ticker := scheduler.NewPaymentSweepTicker(client, cfg.GetPaymentSweepInterval(), log)
	dispatcher := scheduler.NewNotificationOutboxDispatcher(client, notificationModule.Outbox(), cfg.GetOutboxPollInterval(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		ticker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	_ = g.Wait()

	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
