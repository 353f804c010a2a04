package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

// Listing is a marketplace-published reference to a content item with a price.
// Listings are never deleted once a completed transaction references them;
// sellers retire them by flipping Status to inactive.
type Listing struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	ItemID           uuid.UUID           `gorm:"column:item_id;type:uuid;not null"`
	Title            string              `gorm:"column:title;not null"`
	Description      *string             `gorm:"column:description"`
	Price            decimal.Decimal     `gorm:"column:price;type:numeric(18,6);not null"`
	Currency         string              `gorm:"column:currency;not null;default:'USDC'"`
	Status           enums.ListingStatus `gorm:"column:status;type:listing_status_enum;not null;default:'active'"`
	AffiliateEnabled bool                `gorm:"column:affiliate_enabled;not null;default:false"`
	CommissionRate   decimal.Decimal     `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
