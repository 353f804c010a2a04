package affiliates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	dbpkg "github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

const codeBytes = 4

// EnrollInput captures the data required to enroll an affiliate on a listing.
type EnrollInput struct {
	ListingID      uuid.UUID
	UserID         uuid.UUID
	WalletAddress  string
	Code           string
	CommissionRate *decimal.Decimal
}

// Service exposes affiliate enrollment and lookup operations.
type Service interface {
	Enroll(ctx context.Context, input EnrollInput) (*models.Affiliate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	FindActiveByListingAndCode(ctx context.Context, listingID uuid.UUID, code string) (*models.Affiliate, error)
	ListByListing(ctx context.Context, ownerID, listingID uuid.UUID, limit int) ([]models.Affiliate, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Affiliate, error)
	Suspend(ctx context.Context, ownerID, affiliateID uuid.UUID) error
}

type service struct {
	repo        Repository
	listingRepo listings.Repository
}

// NewService wires an affiliate service with the provided repositories.
func NewService(repo Repository, listingRepo listings.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("affiliate repository required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	return &service{repo: repo, listingRepo: listingRepo}, nil
}

func (s *service) Enroll(ctx context.Context, input EnrollInput) (*models.Affiliate, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.WalletAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet address required")
	}

	listing, err := s.listingRepo.FindByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "listing is not active")
	}
	if !listing.AffiliateEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "listing does not accept affiliates")
	}
	if listing.SellerID == input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sellers cannot refer their own listings")
	}

	rate := listing.CommissionRate
	if input.CommissionRate != nil {
		rate = *input.CommissionRate
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 100")
		}
	}

	code := strings.TrimSpace(input.Code)
	if code == "" {
		code, err = generateCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating referral code")
		}
	}

	affiliate := &models.Affiliate{
		ListingID:       input.ListingID,
		Code:            code,
		AffiliateUserID: input.UserID,
		OwnerID:         listing.SellerID,
		WalletAddress:   input.WalletAddress,
		CommissionRate:  rate,
		Status:          enums.AffiliateStatusActive,
		TotalEarnings:   decimal.Zero,
	}
	if err := s.repo.Create(ctx, affiliate); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_affiliates_listing_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "referral code already in use for this listing")
		}
		return nil, err
	}
	return affiliate, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) FindActiveByListingAndCode(ctx context.Context, listingID uuid.UUID, code string) (*models.Affiliate, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	return s.repo.FindActiveByListingAndCode(ctx, listingID, code)
}

func (s *service) ListByListing(ctx context.Context, ownerID, listingID uuid.UUID, limit int) ([]models.Affiliate, error) {
	if ownerID == uuid.Nil || listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id and listing id required")
	}
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	return s.repo.ListByListing(ctx, listingID, limit)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Affiliate, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *service) Suspend(ctx context.Context, ownerID, affiliateID uuid.UUID) error {
	if ownerID == uuid.Nil || affiliateID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id and affiliate id required")
	}
	affiliate, err := s.repo.FindByID(ctx, affiliateID)
	if err != nil {
		return err
	}
	if affiliate.OwnerID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "affiliate belongs to another seller")
	}
	if affiliate.Status == enums.AffiliateStatusSuspended {
		return nil
	}
	return s.repo.UpdateStatus(ctx, affiliateID, enums.AffiliateStatusSuspended)
}

func generateCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
