package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/api"
	"github.com/JustinTDCT/StoryDraw/internal/auth"
	"github.com/JustinTDCT/StoryDraw/internal/db"
	"github.com/JustinTDCT/StoryDraw/internal/jobs"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
	"github.com/JustinTDCT/StoryDraw/internal/reads"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
	"github.com/JustinTDCT/StoryDraw/internal/scheduler"
	"github.com/JustinTDCT/StoryDraw/internal/version"
)

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the draw scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also process background jobs in this process")
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ver, err := version.Load(versionFile)
	if err != nil {
		log.Warn("version file", zap.Error(err))
	}
	log.Info("storydraw starting", zap.String("version", ver.Version))

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()
	if applied, err := db.Migrate(ctx, database.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	} else if len(applied) > 0 {
		log.Info("migrations applied", zap.Strings("files", applied))
	}
	settings := repository.NewSettingsRepository(database.DB)
	cfg.MergeFromDB(ctx, settings, log)
	if !cfg.AdminEnabled() {
		log.Warn("admin routes disabled, ADMIN_PASSWORD_HASH is empty")
	}

	rdb, err := reads.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer rdb.Close()

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.VisitorTokenTTL)
	if err != nil {
		return err
	}

	queue := jobs.NewQueue(reads.Addr(cfg.RedisURL), cfg.WorkerConcurrency, log)
	defer queue.Close()

	redemptions := repository.NewRedemptionRepository(database.DB)
	readStore := reads.NewStore(rdb, cfg.ReadsTTL)
	schedule := lottery.DefaultDrawSchedule()

	hub := api.NewWSHub(log)
	events := api.NewEvents(hub, redemptions, queue, log)
	registry := lottery.NewRegistry(readStore, redemptions, lottery.Options{
		Threshold: cfg.ArticleReadThreshold,
		Grace:     cfg.DismissGrace,
		Schedule:  schedule,
		Submitter: lottery.NewSheetsClient(cfg.SiteURL, cfg.SubmitTimeout),
		Logger:    log,
	}, events.Hooks(), cfg.SessionTTL)
	go registry.Run(ctx, time.Minute)

	sched := scheduler.New(schedule, redemptions, hub, queue, log)
	sched.Start()
	defer sched.Stop()

	if withWorker {
		registerJobs(queue, redemptions, cfg, log)
		go func() {
			if err := queue.Run(ctx); err != nil {
				log.Error("job worker", zap.Error(err))
			}
		}()
	}

	srv := api.NewServer(cfg, api.Deps{
		Registry: registry,
		Reads:    readStore,
		Entries:  redemptions,
		Settings: settings,
		Tokens:   tokens,
		Hub:      hub,
		Checks: map[string]api.Pinger{
			"postgres": database,
			"redis":    redisPinger{rdb},
		},
		Version: ver.Version,
		Logger:  log,
	})

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.Int("port", cfg.Port), zap.String("sheets_endpoint", cfg.SiteURL+lottery.SheetsPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	registry.Shutdown()
	return nil
}
