package listings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

// Repository manages persistence for marketplace listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Listing, error)
	ListActive(ctx context.Context, limit int) ([]models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ListingStatus) error
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.ContentItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, err
	}
	return &listing, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListActive(ctx context.Context, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ListingStatusActive).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ListingStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.ContentItem, error) {
	var item models.ContentItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content item not found")
		}
		return nil, err
	}
	return &item, nil
}
