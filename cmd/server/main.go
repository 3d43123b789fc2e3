package main // Entry point package

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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/config"
	"github.com/iliyamo/moviestore/internal/database"
	"github.com/iliyamo/moviestore/internal/document"
	"github.com/iliyamo/moviestore/internal/handler"
	"github.com/iliyamo/moviestore/internal/logger"
	"github.com/iliyamo/moviestore/internal/middleware"
	"github.com/iliyamo/moviestore/internal/queue"
	"github.com/iliyamo/moviestore/internal/repository"
	"github.com/iliyamo/moviestore/internal/router"
	queue_publisher "github.com/iliyamo/moviestore/internal/service"
	"github.com/iliyamo/moviestore/internal/utils"
)

func main() {
	operator := flag.String("issue-operator-token", "", "print an OPERATOR token for the named operator and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.IsDev())

	if *operator != "" {
		tok, err := utils.NewOperatorToken(cfg.JWT.Secret, *operator, time.Duration(cfg.JWT.OperatorTTLMin)*time.Minute)
		if err != nil {
			log.Fatal().Err(err).Msg("issue operator token")
		}
		fmt.Println(tok.Token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	db, dialect, err := database.Open(ctx, database.Options{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN}, log)
	if err != nil {
		return err
	}
	defer db.Close()

	docs, err := openDocuments(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = docs.Close(cctx)
	}()

	deps := access.Deps{
		Planner:    repository.NewPlanner(db, dialect, log),
		Documents:  docs,
		BcryptCost: cfg.Bcrypt.Cost,
		Log:        log,
	}
	checks := map[string]handler.Check{"relational": db.PingContext}

	// The cache is optional: without it every read goes to the store.
	if cfg.Cache.Enabled {
		c, err := cache.Open(ctx, cfg.CacheOptions(utils.OperatorGuard{Secret: cfg.JWT.Secret}), log)
		if err != nil {
			log.Warn().Err(err).Msg("cache unavailable; serving from the store only")
		} else {
			defer c.Close()
			deps.Cache = c
			checks["cache"] = c.Ping
			if cfg.RabbitMQ.URL != "" {
				deps.Publisher = queue_publisher.New(cfg.RabbitMQ.URL, log)
				go func() {
					if err := queue.StartInvalidationConsumer(ctx, cfg.RabbitMQ.URL, c, log); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("invalidation consumer stopped")
					}
				}()
			}
		}
	}

	svc := access.New(deps)
	accessTTL := time.Duration(cfg.JWT.AccessTTLMin) * time.Minute
	h := router.Handlers{
		Health:   &handler.HealthHandler{Checks: checks},
		Movies:   handler.NewMovieHandler(svc),
		Users:    handler.NewUserHandler(svc, cfg.JWT.Secret, accessTTL),
		Comments: handler.NewCommentHandler(svc),
		Admin:    handler.NewAdminHandler(svc),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.Logger(log))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			return nil
		},
	}))
	router.RegisterRoutes(e, h)
	router.RegisterProtected(e, h, cfg.JWT.Secret)

	addr := ":" + cfg.App.Port
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.App.Env).Str("db", cfg.DB.Driver).Msg("listening")
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return e.Shutdown(sctx)
}

// openDocuments connects the document store, or falls back to the
// in-process backend when no Mongo URI is configured.
func openDocuments(ctx context.Context, cfg config.Config, log zerolog.Logger) (*document.Store, error) {
	if cfg.Mongo.URI == "" {
		log.Warn().Msg("MONGO_URI not set; movie documents live in memory")
		return document.NewStore(document.NewMemoryBackend(), log), nil
	}
	b, err := document.DialMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	return document.NewStore(b, log), nil
}
