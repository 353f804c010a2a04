package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

// CommissionRepository manages persistence for commission records.
type CommissionRepository interface {
	WithTx(tx *gorm.DB) CommissionRepository
	Create(ctx context.Context, commission *models.Commission) error
	FindByOriginalTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Commission, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, limit int) ([]models.Commission, error)
}

type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository returns a commission repository bound to the provided database.
func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

func (r *commissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &commissionRepository{db: tx}
}

func (r *commissionRepository) Create(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *commissionRepository) FindByOriginalTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).
		Where("original_transaction_id = ?", transactionID).
		First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
		}
		return nil, err
	}
	return &commission, nil
}

func (r *commissionRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.CommissionStatusPaid,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
	}
	return nil
}

func (r *commissionRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ?", id).
		Update("status", enums.CommissionStatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
	}
	return nil
}

func (r *commissionRepository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, limit int) ([]models.Commission, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Commission
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
