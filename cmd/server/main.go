package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/api"
	"github.com/perimeterlab/fieldalert/internal/app"
	"github.com/perimeterlab/fieldalert/internal/app/maintenance"
	iauth "github.com/perimeterlab/fieldalert/internal/auth"
	"github.com/perimeterlab/fieldalert/internal/database"
	"github.com/perimeterlab/fieldalert/internal/push"
	"github.com/perimeterlab/fieldalert/internal/tokens"
	"github.com/perimeterlab/fieldalert/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fieldalert-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	tokenStore, closeTokens := initialiseTokenStore(cfg, db, log)
	defer closeTokens()

	gateway := initialisePushGateway(cfg, log)

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		cleaner, cleanErr := maintenance.NewCleaner(db,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithTokenMaxAge(cfg.Maintenance.TokenMaxAge),
			maintenance.WithBlockRetention(cfg.Maintenance.BlockRetention),
		)
		if cleanErr != nil {
			return fmt.Errorf("initialise maintenance jobs: %w", cleanErr)
		}
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			<-cleaner.Stop().Done()
		}()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		JWT:           jwtService,
		Tokens:        tokenStore,
		Gateway:       gateway,
		LookupTimeout: cfg.Server.LookupTimeout,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

// initialiseTokenStore prefers Redis when configured, falling back to the
// database store so token registration keeps working without a cache tier.
func initialiseTokenStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) (tokens.Store, func()) {
	if cfg.Tokens.Redis.Enabled {
		store, err := tokens.NewRedisStore(cfg.Tokens.RedisStoreConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database token store", zap.Error(err))
		} else {
			log.Info("redis token store connected", zap.String("addr", cfg.Tokens.Redis.Address))
			return store, func() { _ = store.Close() }
		}
	}
	return tokens.NewDatabaseStore(db), func() {}
}

// initialisePushGateway returns nil when push is disabled or misconfigured;
// the dispatcher then runs in degraded mode while ingestion continues.
func initialisePushGateway(cfg *app.Config, log *zap.Logger) push.Gateway {
	if !cfg.Push.Enabled {
		log.Info("push delivery disabled by configuration")
		return nil
	}

	client, err := push.NewClient(cfg.Push.ClientConfig(), logger.WithModule("push"))
	if err != nil {
		log.Warn("push gateway unavailable; alerts will be stored without delivery", zap.Error(err))
		return nil
	}
	return client
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
