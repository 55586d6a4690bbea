package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/api"
	"github.com/facegate/facegate/internal/api/handler"
	"github.com/facegate/facegate/internal/core/face"
	"github.com/facegate/facegate/internal/core/service"
	"github.com/facegate/facegate/internal/infrastructure/config"
	mongodb "github.com/facegate/facegate/internal/infrastructure/db/mongo"
	redisdb "github.com/facegate/facegate/internal/infrastructure/db/redis"
	"github.com/facegate/facegate/internal/infrastructure/detector"
	"github.com/facegate/facegate/internal/infrastructure/upload"
	"github.com/facegate/facegate/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	format, err := cfg.Format()
	if err != nil {
		return err
	}

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "facegate",
	})
	if err != nil {
		return err
	}
	defer disconnect(log, "mongodb", func() error { return mongoClient.Disconnect(context.Background()) })

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer disconnect(log, "redis", rdb.Close)

	cascade, err := detector.NewCascade(cfg.Face.CascadePath)
	if err != nil {
		return err
	}
	defer disconnect(log, "cascade", cascade.Close)

	accounts := mongodb.NewAccountRepository(db)
	templates := service.NewTemplateStore(accounts, format, log.With().Str("component", "templates").Logger())
	sessions := service.NewSessionService(redisdb.NewSessionStore(rdb), cfg.JWTSecret, cfg.SessionTTL)

	authService := service.NewAuthService(
		accounts,
		templates,
		service.NewMatchEngine(templates, log.With().Str("component", "matcher").Logger()),
		face.NewExtractor(cascade, format),
		service.BcryptHasher{},
		sessions,
		format,
		log.With().Str("component", "auth").Logger(),
	)

	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Sessions:    sessions,
		Stager:      upload.NewStager(cfg.Upload.Dir, cfg.Upload.MaxBytes),
		Checks: []handler.DependencyCheck{
			{Name: "mongodb", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		Log: log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Int("template_format", format.Version).
			Float64("threshold", format.Threshold).
			Str("cascade", cascade.Path()).
			Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// bootstrap loads configuration and initialises the process logger.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "facegate",
		Version: Version,
	})
	return cfg, log, nil
}

func disconnect(log zerolog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warn().Err(err).Str("dependency", name).Msg("close failed")
	}
}
