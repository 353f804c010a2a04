package listings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

var maxCommissionRate = decimal.NewFromInt(100)

// CreateListingInput captures the data required to publish a listing.
type CreateListingInput struct {
	SellerID         uuid.UUID
	ItemID           uuid.UUID
	Title            string
	Description      *string
	Price            decimal.Decimal
	AffiliateEnabled bool
	CommissionRate   decimal.Decimal
}

// UpdateListingInput carries the mutable listing fields. Nil fields are left
// untouched.
type UpdateListingInput struct {
	Title            *string
	Description      *string
	Price            *decimal.Decimal
	AffiliateEnabled *bool
	CommissionRate   *decimal.Decimal
}

// Service exposes listing lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateListingInput) (*models.Listing, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Listing, error)
	ListActive(ctx context.Context, limit int) ([]models.Listing, error)
	Update(ctx context.Context, sellerID, listingID uuid.UUID, input UpdateListingInput) (*models.Listing, error)
	Deactivate(ctx context.Context, sellerID, listingID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires a listing service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateListingInput) (*models.Listing, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThan(maxCommissionRate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 100")
	}
	if input.AffiliateEnabled && input.CommissionRate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate listings need a commission rate")
	}

	item, err := s.repo.FindItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "item belongs to another seller")
	}

	listing := &models.Listing{
		SellerID:         input.SellerID,
		ItemID:           input.ItemID,
		Title:            input.Title,
		Description:      input.Description,
		Price:            input.Price,
		Status:           enums.ListingStatusActive,
		AffiliateEnabled: input.AffiliateEnabled,
		CommissionRate:   input.CommissionRate,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Listing, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.repo.ListBySeller(ctx, sellerID, limit)
}

func (s *service) ListActive(ctx context.Context, limit int) ([]models.Listing, error) {
	return s.repo.ListActive(ctx, limit)
}

// Update applies partial changes to a seller's own listing. Already-sold
// transactions keep the price they were recorded with; updates only affect
// future purchases.
func (s *service) Update(ctx context.Context, sellerID, listingID uuid.UUID, input UpdateListingInput) (*models.Listing, error) {
	if sellerID == uuid.Nil || listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and listing id required")
	}

	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	if listing.Status == enums.ListingStatusInactive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "inactive listings cannot be updated")
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		listing.Title = *input.Title
	}
	if input.Description != nil {
		listing.Description = input.Description
	}
	if input.Price != nil {
		if !input.Price.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		listing.Price = *input.Price
	}
	if input.AffiliateEnabled != nil {
		listing.AffiliateEnabled = *input.AffiliateEnabled
	}
	if input.CommissionRate != nil {
		if input.CommissionRate.IsNegative() || input.CommissionRate.GreaterThan(maxCommissionRate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 100")
		}
		listing.CommissionRate = *input.CommissionRate
	}
	if listing.AffiliateEnabled && listing.CommissionRate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate listings need a commission rate")
	}

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Deactivate retires a listing. Rows stay behind for ledger references; the
// listing simply stops accepting purchases.
func (s *service) Deactivate(ctx context.Context, sellerID, listingID uuid.UUID) error {
	if sellerID == uuid.Nil || listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id and listing id required")
	}
	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.SellerID != sellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	if listing.Status == enums.ListingStatusInactive {
		return nil
	}
	return s.repo.UpdateStatus(ctx, listingID, enums.ListingStatusInactive)
}
