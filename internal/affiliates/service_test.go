package affiliates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

type stubAffiliateRepo struct {
	affiliate     *models.Affiliate
	createErr     error
	created       []*models.Affiliate
	statusUpdates []enums.AffiliateStatus
}

func (s *stubAffiliateRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubAffiliateRepo) Create(_ context.Context, affiliate *models.Affiliate) error {
	if s.createErr != nil {
		return s.createErr
	}
	if affiliate.ID == uuid.Nil {
		affiliate.ID = uuid.New()
	}
	s.created = append(s.created, affiliate)
	return nil
}

func (s *stubAffiliateRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Affiliate, error) {
	if s.affiliate == nil || s.affiliate.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
	}
	return s.affiliate, nil
}

func (s *stubAffiliateRepo) FindActiveByListingAndCode(context.Context, uuid.UUID, string) (*models.Affiliate, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
}

func (s *stubAffiliateRepo) ListByListing(context.Context, uuid.UUID, int) ([]models.Affiliate, error) {
	return nil, nil
}

func (s *stubAffiliateRepo) ListByUser(context.Context, uuid.UUID, int) ([]models.Affiliate, error) {
	return nil, nil
}

func (s *stubAffiliateRepo) IncrementTotals(context.Context, uuid.UUID, decimal.Decimal) error {
	return nil
}

func (s *stubAffiliateRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status enums.AffiliateStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

type stubListingRepo struct {
	listing *models.Listing
}

func (s *stubListingRepo) WithTx(*gorm.DB) listings.Repository { return s }

func (s *stubListingRepo) Create(context.Context, *models.Listing) error { return nil }

func (s *stubListingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return s.listing, nil
}

func (s *stubListingRepo) ListBySeller(context.Context, uuid.UUID, int) ([]models.Listing, error) {
	return nil, nil
}

func (s *stubListingRepo) ListActive(context.Context, int) ([]models.Listing, error) {
	return nil, nil
}

func (s *stubListingRepo) Update(context.Context, *models.Listing) error { return nil }

func (s *stubListingRepo) UpdateStatus(context.Context, uuid.UUID, enums.ListingStatus) error {
	return nil
}

func (s *stubListingRepo) FindItem(context.Context, uuid.UUID) (*models.ContentItem, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content item not found")
}

func activeListing(sellerID uuid.UUID) *models.Listing {
	return &models.Listing{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Status:           enums.ListingStatusActive,
		AffiliateEnabled: true,
		CommissionRate:   decimal.NewFromInt(10),
	}
}

func newAffiliateService(t *testing.T, repo *stubAffiliateRepo, listingRepo *stubListingRepo) Service {
	t.Helper()
	svc, err := NewService(repo, listingRepo)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestEnrollDefaultsToListingRate(t *testing.T) {
	sellerID := uuid.New()
	listing := activeListing(sellerID)
	repo := &stubAffiliateRepo{}
	svc := newAffiliateService(t, repo, &stubListingRepo{listing: listing})

	affiliate, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:     listing.ID,
		UserID:        uuid.New(),
		WalletAddress: "0xaffiliate",
	})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if !affiliate.CommissionRate.Equal(listing.CommissionRate) {
		t.Fatalf("rate should default to the listing's, got %s", affiliate.CommissionRate)
	}
	if affiliate.Code == "" {
		t.Fatalf("referral code should be generated")
	}
	if affiliate.Status != enums.AffiliateStatusActive {
		t.Fatalf("new affiliate should be active")
	}
	if affiliate.OwnerID != sellerID {
		t.Fatalf("owner should be the listing seller")
	}
}

func TestEnrollWithExplicitCodeAndRate(t *testing.T) {
	listing := activeListing(uuid.New())
	repo := &stubAffiliateRepo{}
	svc := newAffiliateService(t, repo, &stubListingRepo{listing: listing})

	rate := decimal.NewFromInt(25)
	affiliate, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:      listing.ID,
		UserID:         uuid.New(),
		WalletAddress:  "0xaffiliate",
		Code:           "SPRING25",
		CommissionRate: &rate,
	})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if affiliate.Code != "SPRING25" {
		t.Fatalf("code %q", affiliate.Code)
	}
	if !affiliate.CommissionRate.Equal(rate) {
		t.Fatalf("rate %s", affiliate.CommissionRate)
	}
}

func TestEnrollRejectsSellerSelfEnrollment(t *testing.T) {
	sellerID := uuid.New()
	listing := activeListing(sellerID)
	svc := newAffiliateService(t, &stubAffiliateRepo{}, &stubListingRepo{listing: listing})

	_, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:     listing.ID,
		UserID:        sellerID,
		WalletAddress: "0xseller",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnrollRejectsInactiveListing(t *testing.T) {
	listing := activeListing(uuid.New())
	listing.Status = enums.ListingStatusInactive
	svc := newAffiliateService(t, &stubAffiliateRepo{}, &stubListingRepo{listing: listing})

	_, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:     listing.ID,
		UserID:        uuid.New(),
		WalletAddress: "0xaffiliate",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestEnrollRejectsListingWithoutAffiliates(t *testing.T) {
	listing := activeListing(uuid.New())
	listing.AffiliateEnabled = false
	svc := newAffiliateService(t, &stubAffiliateRepo{}, &stubListingRepo{listing: listing})

	_, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:     listing.ID,
		UserID:        uuid.New(),
		WalletAddress: "0xaffiliate",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestEnrollRejectsOutOfRangeRate(t *testing.T) {
	listing := activeListing(uuid.New())
	svc := newAffiliateService(t, &stubAffiliateRepo{}, &stubListingRepo{listing: listing})

	rate := decimal.NewFromInt(101)
	_, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:      listing.ID,
		UserID:         uuid.New(),
		WalletAddress:  "0xaffiliate",
		CommissionRate: &rate,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnrollMapsDuplicateCodeToConflict(t *testing.T) {
	listing := activeListing(uuid.New())
	repo := &stubAffiliateRepo{createErr: &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_affiliates_listing_code",
	}}
	svc := newAffiliateService(t, repo, &stubListingRepo{listing: listing})

	_, err := svc.Enroll(context.Background(), EnrollInput{
		ListingID:     listing.ID,
		UserID:        uuid.New(),
		WalletAddress: "0xaffiliate",
		Code:          "TAKEN",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSuspend(t *testing.T) {
	ownerID := uuid.New()
	affiliate := &models.Affiliate{ID: uuid.New(), OwnerID: ownerID, Status: enums.AffiliateStatusActive}
	repo := &stubAffiliateRepo{affiliate: affiliate}
	svc := newAffiliateService(t, repo, &stubListingRepo{})

	if err := svc.Suspend(context.Background(), ownerID, affiliate.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != enums.AffiliateStatusSuspended {
		t.Fatalf("expected suspended status update, got %+v", repo.statusUpdates)
	}
}

func TestSuspendIsIdempotent(t *testing.T) {
	ownerID := uuid.New()
	affiliate := &models.Affiliate{ID: uuid.New(), OwnerID: ownerID, Status: enums.AffiliateStatusSuspended}
	repo := &stubAffiliateRepo{affiliate: affiliate}
	svc := newAffiliateService(t, repo, &stubListingRepo{})

	if err := svc.Suspend(context.Background(), ownerID, affiliate.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if len(repo.statusUpdates) != 0 {
		t.Fatalf("no status update expected for a suspended affiliate")
	}
}

func TestSuspendRejectsOtherOwner(t *testing.T) {
	affiliate := &models.Affiliate{ID: uuid.New(), OwnerID: uuid.New(), Status: enums.AffiliateStatusActive}
	repo := &stubAffiliateRepo{affiliate: affiliate}
	svc := newAffiliateService(t, repo, &stubListingRepo{})

	err := svc.Suspend(context.Background(), uuid.New(), affiliate.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
