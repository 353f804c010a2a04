package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmoralesdev/contentmint-backend/api/controllers"
	"github.com/rmoralesdev/contentmint-backend/api/middleware"
	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/internal/purchases"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/redis"
	"github.com/rmoralesdev/contentmint-backend/pkg/storage/gcs"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	listingService listings.Service,
	affiliateService affiliates.Service,
	purchaseService purchases.Service,
	ledgerService ledger.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	purchasePolicy := middleware.NewRateLimitPolicy("purchase", time.Minute, 30)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/listings", controllers.ListActiveListings(listingService, logg))
		r.Get("/listings/{listingID}", controllers.GetListing(listingService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/listings", func(r chi.Router) {
			r.Post("/", controllers.CreateListing(listingService, logg))
			r.Get("/mine", controllers.ListMyListings(listingService, logg))
			r.Get("/{listingID}", controllers.GetListing(listingService, logg))
			r.Patch("/{listingID}", controllers.UpdateListing(listingService, logg))
			r.Delete("/{listingID}", controllers.DeactivateListing(listingService, logg))

			r.Route("/{listingID}/affiliates", func(r chi.Router) {
				r.Post("/", controllers.EnrollAffiliate(affiliateService, logg))
				r.Get("/", controllers.ListListingAffiliates(affiliateService, logg))
			})

			r.With(middleware.RateLimit(purchasePolicy, redisClient, logg)).
				Post("/{listingID}/purchase", controllers.Purchase(purchaseService, logg))
		})

		r.Route("/v1/affiliates", func(r chi.Router) {
			r.Get("/mine", controllers.ListMyAffiliations(affiliateService, logg))
			r.Post("/{affiliateID}/suspend", controllers.SuspendAffiliate(affiliateService, logg))
			r.Get("/{affiliateID}/commissions", controllers.ListAffiliateCommissions(ledgerService, affiliateService, logg))
		})

		r.Route("/v1/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListMyTransactions(ledgerService, logg))
			r.Get("/{transactionID}", controllers.GetTransaction(ledgerService, logg))
			r.Get("/{transactionID}/commission", controllers.GetPurchaseCommission(ledgerService, logg))
		})
	})

	return r
}
