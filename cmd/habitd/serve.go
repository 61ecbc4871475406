package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/habitd/internal/backup"
	"github.com/dukerupert/habitd/internal/config"
	"github.com/dukerupert/habitd/internal/credential"
	"github.com/dukerupert/habitd/internal/database"
	"github.com/dukerupert/habitd/internal/habit"
	"github.com/dukerupert/habitd/internal/logging"
	"github.com/dukerupert/habitd/internal/mongostore"
	"github.com/dukerupert/habitd/internal/push"
	"github.com/dukerupert/habitd/internal/server"
	"github.com/dukerupert/habitd/internal/store"
)

type ServeCmd struct{}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(CLI.EnvFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	defer closeBackend()

	var opts server.Options
	var pushSvc *push.Service
	if backend.SQL != nil {
		if cfg.PushEnabled() {
			pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
			opts.Push = pushSvc
		}
		opts.StripeWebhookSecret = cfg.StripeWebhookSecret
	}

	cred := credential.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	srv := server.New(backend, cred, cfg.Location, opts, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: /ws connections are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var scheduler *habit.Scheduler
	if cfg.PrepareSchedule {
		scheduler = habit.NewScheduler(backend.Completions, cfg.Location, cfg.PrepareInterval, logger.With("component", "preparer"))
		scheduler.Start(bgCtx)
	}

	var notifier *push.Notifier
	if pushSvc != nil {
		notifier = push.NewNotifier(pushSvc, store.NewPushStore(backend.SQL), store.NewReminderStore(backend.SQL),
			cfg.PushInterval, logger.With("component", "push"))
		notifier.Start(bgCtx)
	}

	var backups *backup.Manager
	if backend.SQL != nil {
		backups = newBackupManager(cfg, backend.SQL, logger)
		backups.Start(bgCtx)
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("habitd starting", "addr", ":"+cfg.Port, "backend", cfg.Backend, "timezone", cfg.Location.String(),
			"push", pushSvc != nil, "backups", backups != nil && backups.Enabled())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}
	if notifier != nil {
		notifier.Stop()
	}
	if backups != nil {
		backups.Stop()
	}
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// openBackend opens the configured persistence engine and returns a function
// that releases it.
func openBackend(cfg config.Config) (server.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		client, db, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return server.Backend{}, nil, err
		}
		b := server.Backend{
			Users:       mongostore.NewUserStore(db),
			Habits:      mongostore.NewHabitStore(db),
			Completions: mongostore.NewCompletionStore(db),
			Ping:        func(ctx context.Context) error { return client.Ping(ctx, nil) },
		}
		return b, func() { client.Disconnect(context.Background()) }, nil
	default:
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return server.Backend{}, nil, err
		}
		return server.SQLiteBackend(db), func() { db.Close() }, nil
	}
}
