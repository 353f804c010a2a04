package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

// Repository manages persistence for ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	HasCompletedPurchase(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, metadata json.RawMessage) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) HasCompletedPurchase(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("listing_id = ? AND buyer_id = ? AND type = ? AND status = ?",
			listingID, buyerID, enums.TransactionTypePurchase, enums.TransactionStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, metadata json.RawMessage) error {
	updates := map[string]any{"status": status}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
