package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mana/internal/config"
	"mana/internal/database"
	"mana/internal/events"
	"mana/internal/logger"
	"mana/internal/notify"
	"mana/internal/router"
	"mana/internal/scheduler"
	"mana/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Worker error: %v", err)
	}
}

func run() error {
	log := logger.Named("worker")

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	svc := router.NewServices(db, appConfig, nil)
	alerts := services.NewAlertService(db, svc.User, svc.Report, svc.Audit, notify.New(appConfig))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New()
	if err := sched.Add("snapshots", appConfig.SnapshotCron, snapshotJob(svc.Snapshot)); err != nil {
		return err
	}
	if err := sched.Add("freeze-limits", appConfig.FreezeCron, freezeJob(svc.Budget)); err != nil {
		return err
	}
	sched.Start()
	log.Info("Maná worker started")

	errCh := make(chan error, 1)
	if appConfig.AMQPURL != "" {
		client, err := events.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		defer client.Close()

		go func() {
			errCh <- client.Consume(ctx, alertHandler(alerts))
		}()
	} else {
		log.Warn("AMQP_URL not set, budget alerts run only on demand")
	}

	select {
	case err = <-errCh:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down worker...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if stopErr := sched.Stop(stopCtx); stopErr != nil {
		log.Warnf("scheduler stop: %v", stopErr)
	}
	return err
}

// snapshotJob records every user's net worth at the UTC midnight of the run.
func snapshotJob(snapshots services.SnapshotServicer) scheduler.Job {
	return func(ctx context.Context) error {
		now := time.Now().UTC()
		recordedAt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		_, err := snapshots.ComputeAndRecordSnapshots(recordedAt)
		return err
	}
}

// freezeJob pins the limits of the month that just ended.
func freezeJob(budgets services.BudgetServicer) scheduler.Job {
	return func(ctx context.Context) error {
		year, month := previousMonth(time.Now().UTC())
		n, err := budgets.FreezeLimits(year, month)
		if err != nil {
			return err
		}
		logger.Get().Infow("budget limits frozen", "year", year, "month", int(month), "overrides_created", n)
		return nil
	}
}

// alertHandler re-evaluates the budgets of the month an event touched.
func alertHandler(alerts services.AlertServicer) func(context.Context, events.TransactionEvent) error {
	return func(ctx context.Context, e events.TransactionEvent) error {
		if e.UserID == "" || e.Date.IsZero() {
			logger.Get().Warnw("ignoring incomplete transaction event", "transaction_id", e.TransactionID)
			return nil
		}
		date := e.Date.UTC()
		_, err := alerts.CheckBudgets(ctx, e.UserID, date.Year(), date.Month())
		return err
	}
}

func previousMonth(now time.Time) (int, time.Month) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}
