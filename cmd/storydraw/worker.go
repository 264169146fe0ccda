package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/config"
	"github.com/JustinTDCT/StoryDraw/internal/db"
	"github.com/JustinTDCT/StoryDraw/internal/jobs"
	"github.com/JustinTDCT/StoryDraw/internal/notifications"
	"github.com/JustinTDCT/StoryDraw/internal/reads"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process background jobs (entry and draw notifications)",
	RunE:  runWorker,
}

func registerJobs(queue *jobs.Queue, entries jobs.EntryCounter, cfg *config.Config, log *zap.Logger) {
	notifier := notifications.NewEntryNotifier(notifications.NewWebhookSender(), notifications.Channel{
		Type: cfg.NotifyChannelType,
		URL:  cfg.NotifyWebhookURL,
	})
	if !cfg.NotificationsEnabled() {
		log.Info("notifications disabled, NOTIFY_WEBHOOK_URL is empty")
	}
	jobs.RegisterHandlers(queue, entries, notifier, log)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()
	cfg.MergeFromDB(ctx, repository.NewSettingsRepository(database.DB), log)

	queue := jobs.NewQueue(reads.Addr(cfg.RedisURL), cfg.WorkerConcurrency, log)
	defer queue.Close()
	registerJobs(queue, repository.NewRedemptionRepository(database.DB), cfg, log)
	return queue.Run(ctx)
}
