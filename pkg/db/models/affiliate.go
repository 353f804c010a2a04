package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

// Affiliate is a referral relationship scoped to one listing. TotalEarnings
// and TotalSales are denormalized counters, incremented atomically by the
// settlement step only and never decremented; adjustments happen through
// compensating ledger entries.
type Affiliate struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID       uuid.UUID             `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:ux_affiliates_listing_code"`
	Code            string                `gorm:"column:code;not null;uniqueIndex:ux_affiliates_listing_code"`
	AffiliateUserID uuid.UUID             `gorm:"column:affiliate_user_id;type:uuid;not null;index"`
	OwnerID         uuid.UUID             `gorm:"column:owner_id;type:uuid;not null"`
	WalletAddress   string                `gorm:"column:wallet_address;not null"`
	CommissionRate  decimal.Decimal       `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	Status          enums.AffiliateStatus `gorm:"column:status;type:affiliate_status_enum;not null;default:'active'"`
	TotalEarnings   decimal.Decimal       `gorm:"column:total_earnings;type:numeric(18,6);not null;default:0"`
	TotalSales      int64                 `gorm:"column:total_sales;not null;default:0"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
