package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wayfinder-hq/wayfinder-router/pkg/adapters"
	"github.com/wayfinder-hq/wayfinder-router/pkg/api"
	"github.com/wayfinder-hq/wayfinder-router/pkg/blockchain"
	"github.com/wayfinder-hq/wayfinder-router/pkg/config"
	"github.com/wayfinder-hq/wayfinder-router/pkg/health"
	"github.com/wayfinder-hq/wayfinder-router/pkg/knowledge"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/parser"
	"github.com/wayfinder-hq/wayfinder-router/pkg/pricefeed"
	"github.com/wayfinder-hq/wayfinder-router/pkg/registry"
	"github.com/wayfinder-hq/wayfinder-router/pkg/resilience"
	"github.com/wayfinder-hq/wayfinder-router/pkg/router"
	"github.com/wayfinder-hq/wayfinder-router/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LogColoring, cfg.LogLevel)
	stdLogger.Info("Starting wayfinder router")

	// Record store
	var recordStore store.Store
	switch cfg.StoreDriver {
	case "mysql":
		recordStore, err = store.NewMySQLStore(cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("Failed to open record store: %v", err)
		}
	default:
		recordStore = store.NewMemoryStore()
	}
	defer recordStore.Close()

	// Knowledge base
	kb := knowledge.NewBase(knowledge.DefaultEntries, 3)
	if cfg.KnowledgePath != "" {
		loaded, err := knowledge.Load(cfg.KnowledgePath, 3)
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}
		kb = loaded
	}

	// Parser with its price oracle
	feed := pricefeed.NewHTTPFeed(cfg.PriceEndpoint, cfg.PriceCacheTTL, stdLogger)
	intentParser := parser.New(feed, kb, parser.Config{
		DefaultChain:        cfg.DefaultChain,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, stdLogger)

	// Venue registry
	venues := registry.New(cfg.Preferences)
	for _, adapter := range []adapters.Adapter{
		adapters.NewOpenOcean(cfg.OpenOceanEndpoint, stdLogger),
		adapters.NewKyberSwap(cfg.KyberEndpoint, stdLogger),
		adapters.NewMeson(cfg.MesonEndpoint, stdLogger),
		adapters.NewX402(cfg.X402Endpoint, stdLogger),
	} {
		if err := venues.Register(adapter); err != nil {
			log.Fatalf("Failed to register venue: %v", err)
		}
	}

	// Resilience wrapper gating every venue call
	wrapper := resilience.NewWrapper(resilience.Settings{
		Breaker: resilience.BreakerSettings{
			FailureThreshold: cfg.BreakerThreshold,
			Window:           cfg.BreakerWindow,
			Cooldown:         cfg.BreakerCooldown,
			MaxCooldown:      cfg.BreakerMaxWait,
		},
		RateLimiter: resilience.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		},
		QuoteCacheTTL: cfg.QuoteCacheTTL,
	}, stdLogger)

	// On-chain settlement confirmation
	chainClient := blockchain.NewClient(cfg.RPCEndpoints, stdLogger)
	defer chainClient.Close()

	commandRouter := router.New(intentParser, venues, wrapper, recordStore, kb, stdLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := router.NewService(commandRouter, chainClient, recordStore, router.DefaultServiceSettings(), stdLogger)
	service.Start(ctx)

	// Health and metrics server
	healthServer := health.NewServer(cfg.MetricsPort, venues, wrapper, cfg.MetricsAPIKey)
	go healthServer.Start()

	// Command API
	apiServer := api.NewServer(cfg.APIPort, commandRouter, stdLogger)
	go apiServer.Start()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	stdLogger.Notice("Received signal %v, shutting down", sig)
	cancel()
}
