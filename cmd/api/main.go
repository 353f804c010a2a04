package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmoralesdev/contentmint-backend/api/routes"
	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/contentgrant"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/internal/purchases"
	"github.com/rmoralesdev/contentmint-backend/internal/settlement"
	"github.com/rmoralesdev/contentmint-backend/internal/users"
	"github.com/rmoralesdev/contentmint-backend/pkg/chain"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/metrics"
	"github.com/rmoralesdev/contentmint-backend/pkg/migrate"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox"
	"github.com/rmoralesdev/contentmint-backend/pkg/redis"
	"github.com/rmoralesdev/contentmint-backend/pkg/storage/gcs"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer gcsClient.Close()

	chainClient, err := chain.NewClient(context.Background(), cfg.Chain, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap chain custody client", err)
		os.Exit(1)
	}

	listingRepo := listings.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	commissionRepo := ledger.NewCommissionRepository(dbClient.DB())
	affiliateRepo := affiliates.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	listingService, err := listings.NewService(listingRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create listing service", err)
		os.Exit(1)
	}

	affiliateService, err := affiliates.NewService(affiliateRepo, listingRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliate service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledgerRepo, commissionRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	grantService, err := contentgrant.NewService(gcsClient, cfg.GCS.BuyerPrefix, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create content grant service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(
		dbClient,
		chainClient,
		ledgerRepo,
		commissionRepo,
		affiliateRepo,
		outboxService,
		metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Settlement,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	purchaseService, err := purchases.NewService(
		dbClient,
		listingRepo,
		ledgerRepo,
		commissionRepo,
		affiliateRepo,
		userRepo,
		grantService,
		settlementService,
		outboxService,
		logg,
		cfg.Purchase,
		cfg.Settlement,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			listingService,
			affiliateService,
			purchaseService,
			ledgerService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
