package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/internal/config"
	"github.com/MrEthical07/goStage/internal/rate"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/internal/server"
	"github.com/MrEthical07/goStage/password"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
)

func main() {
	var (
		envFile = flag.String("config", "", "path to an env file; defaults to ./.env when present")
		dev     = flag.Bool("dev", false, "use an embedded miniredis when REDIS_ADDR is empty")
	)
	flag.Parse()

	cfg, err := loadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *dev); err != nil {
		logger.Fatal("stage-server stopped", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadWithPath(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.App.Name)), nil
}

func run(cfg *config.Config, logger *zap.Logger, dev bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, stages, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, closeRedis, err := openRedis(cfg, logger, dev)
	if err != nil {
		return err
	}
	defer closeRedis()

	signer, err := token.NewSigner(token.SignerConfig{
		TTL:           cfg.JWT.TTL,
		SigningMethod: token.MethodHS256,
		PrivateKey:    []byte(cfg.JWT.Secret),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}

	hasher, err := password.New(password.DefaultConfig())
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    true,
		BufferSize: 1024,
		DropIfFull: true,
	}, audit.NewZapSink(logger.Named("audit")))
	defer dispatcher.Close()

	var limiter *rate.Limiter
	if redisClient != nil {
		limiter = rate.New(redisClient, rate.Config{
			MaxAttempts: cfg.Login.MaxAttempts,
			Window:      cfg.Login.Window,
			PerIP:       cfg.Login.PerIP,
			Prefix:      "gostage:",
		})
	} else {
		logger.Warn("login throttling disabled, REDIS_ADDR is empty")
	}

	srv, err := server.New(server.Config{
		UploadDir:      cfg.Uploads.Dir,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	}, server.Deps{
		Users:   users,
		Stages:  stages,
		Signer:  signer,
		Hasher:  hasher,
		Engine:  stage.NewEngine(),
		Limiter: limiter,
		Audit:   dispatcher,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting stage server",
			zap.String("addr", httpServer.Addr),
			zap.String("environment", cfg.App.Environment),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down stage server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Users, repository.Stages, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL is empty, using in-memory storage")
		return repository.NewMemoryUsers(), repository.NewMemoryStages(), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Database.Migrate {
		if err := repository.Migrate(connectCtx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
	}

	logger.Info("Connected to postgres", zap.Int32("max_conns", poolCfg.MaxConns))
	return repository.NewPostgresUsers(pool), repository.NewPostgresStages(pool), pool.Close, nil
}

func openRedis(cfg *config.Config, logger *zap.Logger, dev bool) (redis.UniversalClient, func(), error) {
	addr := cfg.Redis.Addr
	if addr == "" && !dev {
		return nil, func() {}, nil
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		logger.Info("Using embedded miniredis", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("Using redis", zap.String("addr", addr))
	return client, func() { _ = client.Close() }, nil
}
