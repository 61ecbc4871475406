package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/habitd/internal/backup"
	"github.com/dukerupert/habitd/internal/config"
	"github.com/dukerupert/habitd/internal/database"
	"github.com/dukerupert/habitd/internal/logging"
	"github.com/dukerupert/habitd/internal/push"
	"github.com/dukerupert/habitd/internal/store"
)

type VAPIDKeysCmd struct{}

func (c *VAPIDKeysCmd) Run() error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("HABITD_VAPID_PUBLIC_KEY=%s\nHABITD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}

type BackupCmd struct {
	Timeout time.Duration `help:"Give up after this long." default:"10m"`
}

func (c *BackupCmd) Run() error {
	cfg, db, logger, err := openForBackup()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	m := newBackupManager(cfg, db, logger)
	b, err := m.RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(b.S3Key)
	return nil
}

type RestoreCmd struct {
	Key string `help:"Object key of the snapshot, as printed by the backup command." required:""`
	Out string `help:"Path of the database file to create." required:"" type:"path"`
}

func (c *RestoreCmd) Run() error {
	cfg, db, logger, err := openForBackup()
	if err != nil {
		return err
	}
	defer db.Close()

	m := newBackupManager(cfg, db, logger)
	if err := m.Restore(context.Background(), c.Key, c.Out); err != nil {
		return err
	}
	fmt.Printf("restored %s to %s; stop habitd and replace %s to use it\n", c.Key, c.Out, cfg.DBPath)
	return nil
}

func openForBackup() (config.Config, *sql.DB, *slog.Logger, error) {
	cfg, err := config.Load(CLI.EnvFile)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Backend != config.BackendSQLite {
		return cfg, nil, nil, errors.New("backups are only supported for the sqlite backend")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, logger, nil
}

func newBackupManager(cfg config.Config, db *sql.DB, logger *slog.Logger) *backup.Manager {
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		ScheduleHour:  cfg.Backup.Hour,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, store.NewBackupStore(db), logger.With("component", "backup"))
}
