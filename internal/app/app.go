package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nkosarev/url-shortener/internal/analytics"
	api "github.com/nkosarev/url-shortener/internal/api/http"
	"github.com/nkosarev/url-shortener/internal/config"
	"github.com/nkosarev/url-shortener/internal/database/postgres"
	"github.com/nkosarev/url-shortener/internal/service"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	secrets := config.NewSecretCache(config.EnvProvider, cfg.Secrets.CacheTTL)
	if pw, err := secrets.Get(ctx, "POSTGRES_PASSWORD"); err == nil {
		cfg.Postgres.Password = pw
	}
	if pw, err := secrets.Get(ctx, "REDIS_PASSWORD"); err == nil {
		cfg.Redis.Password = pw
	}

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	pool := analytics.NewPool(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.MaxIdle, cfg.Redis.IdleTimeout)
	defer pool.Close()

	logger := httplog.NewLogger("url-shortener", httplog.Options{
		LogLevel: logLevel(cfg.Env),
		Concise:  cfg.Env != config.EnvProd,
	})

	urlRepo := postgres.NewURLRepository(db)
	emitter := analytics.NewEmitter(pool, cfg.Redis.Stream)
	urlSvc := service.NewURLService(urlRepo, emitter, logger.Logger)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc, cfg.BaseURL),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		// Let in-flight click recordings finish before the pool closes.
		urlSvc.Wait()

		return nil
	})

	return g.Wait()
}

func logLevel(env string) slog.Level {
	switch env {
	case config.EnvProd:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
