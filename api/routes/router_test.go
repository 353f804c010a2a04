package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/internal/purchases"
	pkgauth "github.com/rmoralesdev/contentmint-backend/pkg/auth"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubListingService struct {
	listActive func(ctx context.Context, limit int) ([]models.Listing, error)
}

func (s stubListingService) Create(ctx context.Context, input listings.CreateListingInput) (*models.Listing, error) {
	return &models.Listing{ID: uuid.New(), SellerID: input.SellerID, Title: input.Title, Price: input.Price}, nil
}

func (s stubListingService) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
}

func (s stubListingService) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Listing, error) {
	return nil, nil
}

func (s stubListingService) ListActive(ctx context.Context, limit int) ([]models.Listing, error) {
	if s.listActive != nil {
		return s.listActive(ctx, limit)
	}
	return []models.Listing{}, nil
}

func (s stubListingService) Update(ctx context.Context, sellerID, listingID uuid.UUID, input listings.UpdateListingInput) (*models.Listing, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
}

func (s stubListingService) Deactivate(ctx context.Context, sellerID, listingID uuid.UUID) error {
	return nil
}

type stubAffiliateService struct{}

func (stubAffiliateService) Enroll(ctx context.Context, input affiliates.EnrollInput) (*models.Affiliate, error) {
	return &models.Affiliate{ID: uuid.New(), ListingID: input.ListingID, AffiliateUserID: input.UserID}, nil
}

func (stubAffiliateService) GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
}

func (stubAffiliateService) FindActiveByListingAndCode(ctx context.Context, listingID uuid.UUID, code string) (*models.Affiliate, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
}

func (stubAffiliateService) ListByListing(ctx context.Context, ownerID, listingID uuid.UUID, limit int) ([]models.Affiliate, error) {
	return nil, nil
}

func (stubAffiliateService) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Affiliate, error) {
	return nil, nil
}

func (stubAffiliateService) Suspend(ctx context.Context, ownerID, affiliateID uuid.UUID) error {
	return nil
}

type stubPurchaseService struct {
	purchase func(ctx context.Context, input purchases.PurchaseInput) (*purchases.PurchaseResult, error)
}

func (s stubPurchaseService) Purchase(ctx context.Context, input purchases.PurchaseInput) (*purchases.PurchaseResult, error) {
	if s.purchase != nil {
		return s.purchase(ctx, input)
	}
	listingID := input.ListingID
	return &purchases.PurchaseResult{
		Transaction: &models.Transaction{
			ID:        uuid.New(),
			Type:      enums.TransactionTypePurchase,
			BuyerID:   input.BuyerID,
			ListingID: &listingID,
			Amount:    decimal.NewFromInt(10),
			Currency:  "USDC",
			Status:    enums.TransactionStatusCompleted,
		},
	}, nil
}

type stubLedgerService struct{}

func (stubLedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (stubLedgerService) ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Transaction, error) {
	return []models.Transaction{}, nil
}

func (stubLedgerService) GetCommissionForPurchase(ctx context.Context, transactionID uuid.UUID) (*models.Commission, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
}

func (stubLedgerService) ListAffiliateCommissions(ctx context.Context, affiliateID uuid.UUID, limit int) ([]models.Commission, error) {
	return nil, nil
}

func (stubLedgerService) Transition(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, metadata json.RawMessage) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret-secret-secret-secret",
			Issuer:            "contentmint-test",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubPinger{},
		stubListingService{},
		stubAffiliateService{},
		stubPurchaseService{},
		stubLedgerService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	wallet := "0xbuyer"
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:        userID,
		Role:          enums.UserRoleMember,
		WalletAddress: &wallet,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestPublicListingsDoNotRequireAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/public/listings", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public listings got %d", resp.Code)
	}
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	router := newTestRouter(testConfig())

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, live)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestPurchaseRouteRequiresAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/purchase", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestTransactionLookupReturnsNotFound(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
