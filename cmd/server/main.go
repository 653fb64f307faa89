package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/ticket-autobuy/internal/checkout"
	"github.com/iliyamo/ticket-autobuy/internal/config"
	"github.com/iliyamo/ticket-autobuy/internal/database"
	"github.com/iliyamo/ticket-autobuy/internal/handler"
	"github.com/iliyamo/ticket-autobuy/internal/logging"
	"github.com/iliyamo/ticket-autobuy/internal/middleware"
	"github.com/iliyamo/ticket-autobuy/internal/queue"
	"github.com/iliyamo/ticket-autobuy/internal/repository"
	"github.com/iliyamo/ticket-autobuy/internal/router"
	"github.com/iliyamo/ticket-autobuy/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	if cfg.JWTSecret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	logger, closeLog, err := logging.New("server", cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog.Close()

	db, err := database.Open(cfg.Database())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger)

	dispatcher, err := checkout.NewDispatcher(checkout.Options{
		URL:     cfg.CheckoutURL,
		APIKey:  cfg.CheckoutAPIKey,
		Timeout: cfg.OutboundTimeout,
	})
	if err != nil {
		log.Fatalf("checkout: %v", err)
	}
	listings := repository.NewListingRepo(db)
	pipeline := service.NewPipeline(service.Deps{
		Listings:   listings,
		References: repository.NewReferenceRepo(db),
		Rules:      repository.NewApprovalRuleRepo(db),
		Dispatcher: dispatcher,
		Publisher:  service.NewPublisher(cfg.RabbitURL, logger),
		Logger:     logger,
	})

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	router.RegisterRoutes(e, db)
	router.RegisterListings(e, handler.NewListingHandler(listings, pipeline), cfg.JWTSecret,
		middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logsDir := cfg.LogDir
		if logsDir == "" {
			logsDir = "logs"
		}
		if err := queue.StartListingConsumer(ctx, cfg.RabbitURL, logsDir, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("listing-consumer: stopped", "err", err)
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info("server: listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: shutdown", "err", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
