package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/citylibrary/libraryops-backend/api/routes"
	"github.com/citylibrary/libraryops-backend/internal/catalog"
	"github.com/citylibrary/libraryops-backend/internal/chat"
	"github.com/citylibrary/libraryops-backend/internal/lending"
	"github.com/citylibrary/libraryops-backend/internal/members"
	"github.com/citylibrary/libraryops-backend/internal/notify"
	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/config"
	"github.com/citylibrary/libraryops-backend/pkg/db"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
	"github.com/citylibrary/libraryops-backend/pkg/metrics"
	"github.com/citylibrary/libraryops-backend/pkg/migrate"
	"github.com/citylibrary/libraryops-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency protection disabled")
	}

	lendingMetrics := metrics.NewLendingMetrics(prometheus.DefaultRegisterer)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	memberService, err := members.NewService(members.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create member service", err)
		os.Exit(1)
	}

	lendingService, err := lending.NewService(lending.ServiceParams{
		Repo:    lending.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Config:  cfg.Lending,
		Logger:  logg,
		Metrics: lendingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lending service", err)
		os.Exit(1)
	}

	reportingService, err := reporting.NewService(reporting.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create reporting service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.ServiceParams{
		Reports: reportingService,
		Library: cfg.Library,
		Lending: cfg.Lending,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	notifyService, err := notify.NewService(notify.ServiceParams{
		Repo:    notify.NewRepository(dbClient.DB()),
		Mailer:  notify.NewMailer(cfg.Mail, logg),
		Library: cfg.Library,
		Lending: cfg.Lending,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	routerParams := routes.RouterParams{
		Logger:        logg,
		Catalog:       catalogService,
		Members:       memberService,
		Lending:       lendingService,
		Reporting:     reportingService,
		Chat:          chatService,
		Notifications: notifyService,
		DBPinger:      dbClient,
	}
	if redisClient != nil {
		routerParams.CachePinger = redisClient
		routerParams.IdempotencyStore = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(routerParams),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}
}
