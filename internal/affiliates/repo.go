package affiliates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

// Repository manages persistence for affiliate enrollments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, affiliate *models.Affiliate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	FindActiveByListingAndCode(ctx context.Context, listingID uuid.UUID, code string) (*models.Affiliate, error)
	ListByListing(ctx context.Context, listingID uuid.UUID, limit int) ([]models.Affiliate, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Affiliate, error)
	IncrementTotals(ctx context.Context, id uuid.UUID, earned decimal.Decimal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AffiliateStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an affiliate repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&affiliate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repository) FindActiveByListingAndCode(ctx context.Context, listingID uuid.UUID, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND code = ? AND status = ?", listingID, code, enums.AffiliateStatusActive).
		First(&affiliate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate code not found")
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repository) ListByListing(ctx context.Context, listingID uuid.UUID, limit int) ([]models.Affiliate, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Affiliate
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Affiliate, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Affiliate
	err := r.db.WithContext(ctx).
		Where("affiliate_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// IncrementTotals bumps the denormalized earnings counters atomically.
func (r *repository) IncrementTotals(ctx context.Context, id uuid.UUID, earned decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_earnings": gorm.Expr("total_earnings + ?", earned),
			"total_sales":    gorm.Expr("total_sales + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AffiliateStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
	}
	return nil
}
