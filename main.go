// Command hlc-import loads the accounts archive into the configured store.
//
// Configuration is read from the environment (see config.Load). The run
// exits with status 1 and a message naming the failing member on the first
// unrecoverable error.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/Skryldev/hlc-import/archive"
	"github.com/Skryldev/hlc-import/config"
	"github.com/Skryldev/hlc-import/db"
	"github.com/Skryldev/hlc-import/importer"
	"github.com/Skryldev/hlc-import/logging"
	"github.com/Skryldev/hlc-import/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("import failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	stats := &statementStats{}
	loader, closer, err := buildLoader(logger, cfg, stats)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	r, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	logger.Info("import started",
		"archive", cfg.Archive.Path,
		"members", len(r.Members()),
		"target", cfg.Load.Target,
		"mode", cfg.Load.Mode)

	im := importer.New(loader,
		importer.WithLogger(logger),
		importer.WithContinueOnError(cfg.Archive.ContinueOnError),
	)
	st, err := im.Run(ctx, r)

	logger.Info("import finished",
		"members", st.Members,
		"skipped", st.SkippedMembers,
		"accounts", st.Accounts,
		"interests", st.Interests,
		"likes", st.Likes,
		"statements", stats.count.Load(),
		"failed_statements", stats.failed.Load(),
		"db_time", time.Duration(stats.nanos.Load()),
		"duration", st.Duration)
	return err
}

// buildLoader connects to the store selected by LOAD_TARGET and LOAD_MODE.
func buildLoader(logger *slog.Logger, cfg config.Config, stats *statementStats) (importer.Loader, io.Closer, error) {
	if cfg.Load.Target == config.TargetRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping().Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return repo.NewRedisLoader(client, cfg.Load.BatchSize), client, nil
	}

	dbCfg := db.Config{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{Logger: logger, SlowQueryThreshold: 5 * time.Second}),
			db.NewMetricsHook(stats),
		},
	}

	var (
		d   *db.DB
		err error
	)
	if cfg.Load.Target == config.TargetMySQL {
		d, err = db.OpenWithDriver(config.TargetMySQL, db.DriverOptions{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			Database: cfg.MySQL.Database,
		}, dbCfg)
	} else {
		dbCfg.DriverName = cfg.Load.Target
		dbCfg.DSN = cfg.Load.DatabaseURL
		if cfg.Load.Target == config.TargetSQLite {
			// DATABASE_URL may carry the scheme cmd/migrate expects.
			dbCfg.DSN = strings.TrimPrefix(dbCfg.DSN, "sqlite3://")
			dbCfg.MaxOpenConns = 1
		}
		d, err = db.Open(dbCfg)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Load.Mode == config.ModeInfile {
		return repo.NewInfileLoader(d), d, nil
	}
	return repo.NewSQLLoader(d, cfg.Load.BatchSize), d, nil
}

// statementStats is the in-process collector behind the metrics hook.
type statementStats struct {
	count  atomic.Int64
	failed atomic.Int64
	nanos  atomic.Int64
}

func (s *statementStats) RecordQuery(_ string, d time.Duration, success bool) {
	s.count.Add(1)
	s.nanos.Add(int64(d))
	if !success {
		s.failed.Add(1)
	}
}
