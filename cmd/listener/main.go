// Command listener polls the announcement feed and runs every new listing
// through validation, enrichment, approval and checkout.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/ticket-autobuy/internal/checkout"
	"github.com/iliyamo/ticket-autobuy/internal/config"
	"github.com/iliyamo/ticket-autobuy/internal/database"
	"github.com/iliyamo/ticket-autobuy/internal/feed"
	"github.com/iliyamo/ticket-autobuy/internal/logging"
	"github.com/iliyamo/ticket-autobuy/internal/marketplace"
	"github.com/iliyamo/ticket-autobuy/internal/repository"
	"github.com/iliyamo/ticket-autobuy/internal/service"
)

func main() {
	cfg := config.Load()
	logger, closeLog, err := logging.New("listener", cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("listener: exiting", "err", err)
		closeLog.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()

	refs, err := repository.NewCachedReferenceStore(repository.NewReferenceRepo(db), cfg.ReferenceCacheTTL)
	if err != nil {
		return err
	}
	defer refs.Close()

	dispatcher, err := checkout.NewDispatcher(checkout.Options{
		URL:     cfg.CheckoutURL,
		APIKey:  cfg.CheckoutAPIKey,
		Timeout: cfg.OutboundTimeout,
	})
	if err != nil {
		return err
	}

	deps := service.Deps{
		Listings:   repository.NewListingRepo(db),
		References: refs,
		Rules:      repository.NewApprovalRuleRepo(db),
		Dispatcher: dispatcher,
		Publisher:  service.NewPublisher(cfg.RabbitURL, logger),
		Logger:     logger,
	}
	if cfg.MarketplaceBaseURL != "" {
		client, err := marketplace.NewClient(marketplace.ClientOptions{
			BaseURL:  cfg.MarketplaceBaseURL,
			APIKey:   cfg.MarketplaceAPIKey,
			Timeout:  cfg.OutboundTimeout,
			MaxPages: cfg.MarketplaceMaxPages,
		})
		if err != nil {
			return err
		}
		rdb := config.NewRedisClient(config.LoadRedisConfig(), logger)
		if rdb != nil {
			defer rdb.Close()
		}
		deps.Enricher = marketplace.NewEnricher(client, marketplace.NewPriceCache(rdb, cfg.PriceCacheTTL), logger)
	} else {
		logger.Warn("listener: MARKETPLACE_BASE_URL not set; ROI enrichment disabled")
	}
	pipeline := service.NewPipeline(deps)

	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	poller := feed.NewPoller(source, pipeline, logger, feed.PollerOptions{
		Interval:    cfg.Feed.PollInterval,
		PageLimit:   cfg.Feed.PageLimit,
		SkipInvalid: cfg.Feed.SkipInvalid,
	})
	return poller.Run(ctx)
}

func newSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (feed.Source, error) {
	fc := cfg.Feed
	if fc.Transport == "websocket" {
		ws, err := feed.NewWebsocketSource(fc.WSURL, fc.BotToken, logger)
		if err != nil {
			return nil, err
		}
		go func() { _ = ws.Run(ctx) }()
		return ws, nil
	}
	return feed.NewRESTSource(feed.RESTOptions{
		BaseURL:   fc.APIURL,
		ChannelID: fc.ChannelID,
		Token:     fc.BotToken,
		Timeout:   cfg.OutboundTimeout,
	})
}
