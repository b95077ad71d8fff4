package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"venue-booking-backend/config"
	"venue-booking-backend/internal/api"
	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/db"
	"venue-booking-backend/internal/notification"
	"venue-booking-backend/internal/poller"
	"venue-booking-backend/internal/reminder"
	"venue-booking-backend/internal/store"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the upstream poller and the reminder workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			if configPath == "" {
				configPath = "./config/config.yaml" // Default path for local development
			}
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or ./config/config.yaml)")
	return cmd
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()
	log.Info("configuration loaded", "path", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		return errors.New("VAPID keys must be configured; generate them and add them to the config file or environment")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, log.With("component", "db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics("booking", prometheus.DefaultRegisterer)
	loc := cfg.Location()
	if loc.String() != cfg.Poller.Timezone {
		log.Warn("failed to load timezone, using UTC", "timezone", cfg.Poller.Timezone)
	}
	clk := clock.Real{Location: loc}
	appStore := store.NewGormStore(gormDB, log.With("component", "store"))

	kv, closeKV, err := newKeyValue(ctx, cfg, gormDB, log)
	if err != nil {
		return err
	}

	scheduler := reminder.NewScheduler(notification.NewCalendar(gormDB), kv, clk, log.With("component", "reminder"), m, reminder.Options{
		IOTimeout:   cfg.Reminder.IOTimeout,
		Concurrency: cfg.Reminder.Concurrency,
	})

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, loc, log.With("component", "push"), m)
	pool.Start(ctx)

	dispatcher := notification.NewDispatcher(gormDB, pool, clk, time.Duration(cfg.Reminder.AlarmGraceMins)*time.Minute, log.With("component", "dispatcher"), m)
	if err := dispatcher.Start(ctx, cfg.Reminder.DispatchSpec); err != nil {
		return err
	}

	pollerSvc := poller.NewService(&cfg.Poller, loc, appStore, scheduler, log.With("component", "poller"), m)
	go pollerSvc.Run(ctx)

	handler := api.NewHandler(appStore, gormDB, api.Options{
		Webpush:      &webpushOptions,
		Clock:        clk,
		SlotStep:     cfg.Schedule.SlotStep,
		PickerDays:   cfg.Schedule.PickerDays,
		OnTransition: scheduler.Submit,
		Logger:       log.With("component", "api"),
	})
	router := api.NewRouter(handler, cfg.Server, prometheus.DefaultGatherer)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", "error", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	log.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server Shutdown", "error", err)
	}
	dispatcher.Stop()
	cancel()
	scheduler.Wait()
	if err := closeKV(shutdownCtx); err != nil {
		log.Error("failed to close reminder record store", "error", err)
	}

	log.Info("server gracefully stopped")
	return nil
}

// newKeyValue selects where reminder records live. The returned func releases the backend
// once no reminder pass is running anymore.
func newKeyValue(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, log logger.Logger) (reminder.KeyValue, func(context.Context) error, error) {
	if cfg.Reminder.KVBackend != config.KVBackendMongo {
		return store.NewGormKV(gormDB), func(context.Context) error { return nil }, nil
	}
	client, err := db.NewMongoClient(ctx, &cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	log.Info("reminder records kept in mongo", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
	return store.NewMongoKV(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection), client.Disconnect, nil
}
