package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

// Commission links an affiliate to the originating purchase transaction and to
// its own payout transaction. Amount is computed once at creation and never
// recomputed.
type Commission struct {
	ID                      uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AffiliateID             uuid.UUID              `gorm:"column:affiliate_id;type:uuid;not null;index"`
	OriginalTransactionID   uuid.UUID              `gorm:"column:original_transaction_id;type:uuid;not null;uniqueIndex"`
	CommissionTransactionID uuid.UUID              `gorm:"column:commission_transaction_id;type:uuid;not null"`
	Rate                    decimal.Decimal        `gorm:"column:rate;type:numeric(5,2);not null"`
	Amount                  decimal.Decimal        `gorm:"column:amount;type:numeric(18,6);not null"`
	Status                  enums.CommissionStatus `gorm:"column:status;type:commission_status_enum;not null;default:'pending'"`
	PaidAt                  *time.Time             `gorm:"column:paid_at"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
