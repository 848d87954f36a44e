// Package main is the entry point of the progress engine service.
//
// The process serves the HTTP API, keeps the leaderboard ranks fresh with a
// scheduled recalculation, and turns domain events into notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/studyquest/progress-engine/config"
	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/application/eventhandler"
	"github.com/studyquest/progress-engine/internal/application/query"
	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/internal/infrastructure/messaging"
	"github.com/studyquest/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/studyquest/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/studyquest/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/studyquest/progress-engine/internal/infrastructure/persistence/sqlite"
	"github.com/studyquest/progress-engine/internal/infrastructure/scheduler"
	"github.com/studyquest/progress-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/studyquest/progress-engine/internal/interface/http"
	"github.com/studyquest/progress-engine/internal/interface/http/handlers"
	"github.com/studyquest/progress-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// stores groups the primary store adapters.
type stores struct {
	topics       progress.Repository
	archive      progress.SessionArchive
	achievements goal.AchievementRepository
	missions     goal.MissionRepository
	entries      leaderboard.Repository
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg, os.Stdout)
	log.Info("starting progress engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.Database.Store,
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Primary store
	// ─────────────────────────────────────────────────────────────────────────
	var st stores
	switch cfg.Database.Store {
	case config.StorePostgres:
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		closers = append(closers, conn.Close)
		health.AddCheck("database", true, handlers.NewPingCheck(conn))

		st = stores{
			topics:       postgres.NewProgressRepository(conn),
			achievements: postgres.NewAchievementRepository(conn),
			missions:     postgres.NewMissionRepository(conn),
			entries:      postgres.NewLeaderboardRepository(conn),
		}
	default:
		log.Warn("using in-memory store, state is lost on restart")
		st = stores{
			topics:       memory.NewProgressRepository(),
			achievements: memory.NewAchievementRepository(),
			missions:     memory.NewMissionRepository(),
			entries:      memory.NewLeaderboardRepository(),
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Session archive
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Archive.Path != "" {
		archive, err := sqlite.Open(sqlite.Config{Path: cfg.Archive.Path})
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		closers = append(closers, func() { _ = archive.Close() })
		health.AddCheck("archive", false, handlers.NewPingCheck(archive))
		st.archive = archive
		log.Info("session archive opened", "path", cfg.Archive.Path)
	} else {
		st.archive = memory.NewSessionArchive()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Redis: lock, ranking mirror, event relay (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker       leaderboard.Locker = memory.NewLocker()
		rankingCache leaderboard.RankingCache
		cache        *redis.Cache
	)
	if cfg.Redis.Enabled {
		cache, err = redis.NewCache(ctx, redisConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, using in-process lock and no ranking mirror", "error", err)
		} else {
			closers = append(closers, func() { _ = cache.Close() })
			health.AddCheck("redis", false, handlers.NewPingCheck(cache))
			locker = redis.NewLocker(cache, cfg.Redis.LockTTL)
			breaker := circuitbreaker.RankingMirror(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			})
			rankingCache = redis.NewGuardedRankingCache(redis.NewRankingCache(cache, cfg.Redis.RankingTTL), breaker)
			log.Info("Redis connection established", "addr", redisConfig(cfg).Addr())
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event bus & notifications
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := setupEventBus(ctx, cfg, cache, log)
	if err != nil {
		return err
	}
	closers = append(closers, func() { _ = bus.Close() })

	if err := eventhandler.NewNotificationHandlers(nil, log).Register(bus); err != nil {
		return fmt.Errorf("failed to register notification handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	opts := []command.Option{command.WithLogger(log), command.WithPublisher(bus)}
	recalculate := command.NewRecalculateRanksHandler(st.entries, locker, rankingCache, opts...)

	deps := httpapi.Dependencies{
		RecordSession:       command.NewRecordSessionHandler(st.topics, st.archive, opts...),
		CreateGoal:          command.NewCreateGoalHandler(st.achievements, st.missions, opts...),
		UpdateAchievement:   command.NewUpdateAchievementProgressHandler(st.achievements, opts...),
		UpdateMission:       command.NewUpdateMissionProgressHandler(st.missions, opts...),
		UpdateRank:          command.NewUpdateRankHandler(st.entries, opts...),
		RecalculateRanks:    recalculate,
		GetTopicProgress:    query.NewGetTopicProgressHandler(st.topics),
		GetSessionHistory:   query.NewGetSessionHistoryHandler(st.topics, st.archive),
		GetUserSummary:      query.NewGetUserSummaryHandler(st.topics, st.achievements, st.missions),
		GetLeaderboardEntry: query.NewGetLeaderboardEntryHandler(st.entries, log),
		GetTop:              query.NewGetTopHandler(st.entries, rankingCache, log),
		HealthChecker:       health,
		Logger:              log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched, err := setupScheduler(cfg, recalculate, log)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		closers = append(closers, func() { _ = sched.Stop() })
		deps.Scheduler = sched
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP server & graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpConfig(cfg), deps)
	errCh := server.StartAsync()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging and installs it as the default.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func connectPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}
	return conn, nil
}

func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// eventBus is the subset both bus implementations share.
type eventBus interface {
	shared.EventBus
	Close() error
}

func setupEventBus(ctx context.Context, cfg *config.Config, cache *redis.Cache, log *slog.Logger) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log

	if cache == nil || !cfg.Redis.EventRelay {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client: cache.Client(),
		Local:  local,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start event relay: %w", err)
	}
	log.Info("event relay enabled")
	return bus, nil
}

func setupScheduler(cfg *config.Config, recalc jobs.RankRecalculator, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	jobCfg := jobs.DefaultRecalculateRanksConfig()
	jobCfg.Series = cfg.Scheduler.Series
	jobCfg.Timeout = cfg.Scheduler.JobTimeout

	schedule := scheduler.Every(cfg.Scheduler.RecalculateInterval)
	if cfg.Scheduler.RecalculateCron != "" {
		schedule = scheduler.Schedule{Cron: cfg.Scheduler.RecalculateCron}
	}

	if err := sched.Register(jobs.NewRecalculateRanksJob(recalc, log, jobCfg), schedule); err != nil {
		return nil, fmt.Errorf("failed to register recalculation job: %w", err)
	}

	sched.OnJobComplete(func(res scheduler.JobResult) {
		if !res.Success {
			log.Warn("scheduled job failed", "job", res.JobName, "error", res.Error)
		}
	})
	return sched, nil
}

func httpConfig(cfg *config.Config) httpapi.Config {
	hc := httpapi.DefaultConfig()
	hc.Host = cfg.HTTP.Host
	hc.Port = cfg.HTTP.Port
	hc.ReadTimeout = cfg.HTTP.ReadTimeout
	hc.WriteTimeout = cfg.HTTP.WriteTimeout
	hc.IdleTimeout = cfg.HTTP.IdleTimeout
	hc.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hc.APIKeyHeader = cfg.HTTP.APIKeyHeader
	hc.APIKeyHashes = cfg.HTTP.APIKeyHashes
	hc.JWTSecret = cfg.HTTP.JWTSecret
	return hc
}
