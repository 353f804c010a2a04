package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

// PurchaseCompletedEvent is emitted once a purchase transaction reaches completed.
type PurchaseCompletedEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	ListingID     uuid.UUID         `json:"listing_id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	SellerID      uuid.UUID         `json:"seller_id"`
	ItemID        uuid.UUID         `json:"item_id"`
	Amount        decimal.Decimal   `json:"amount"`
	PaymentFlow   enums.PaymentFlow `json:"payment_flow"`
	AffiliateCode string            `json:"affiliate_code,omitempty"`
	CompletedAt   time.Time         `json:"completed_at"`
}

// CommissionSettledEvent reports a commission payout confirmed on the rail.
type CommissionSettledEvent struct {
	CommissionID          uuid.UUID       `json:"commission_id"`
	CommissionTxID        uuid.UUID       `json:"commission_transaction_id"`
	OriginalTransactionID uuid.UUID       `json:"original_transaction_id"`
	AffiliateID           uuid.UUID       `json:"affiliate_id"`
	Amount                decimal.Decimal `json:"amount"`
	TxHash                string          `json:"tx_hash"`
	SettledAt             time.Time       `json:"settled_at"`
}

// CommissionFailedEvent reports a commission payout the rail rejected or that
// could not be submitted.
type CommissionFailedEvent struct {
	CommissionID          uuid.UUID       `json:"commission_id"`
	CommissionTxID        uuid.UUID       `json:"commission_transaction_id"`
	OriginalTransactionID uuid.UUID       `json:"original_transaction_id"`
	AffiliateID           uuid.UUID       `json:"affiliate_id"`
	Amount                decimal.Decimal `json:"amount"`
	Reason                string          `json:"reason"`
	FailedAt              time.Time       `json:"failed_at"`
}

// ContentGrantedEvent signals the buyer now holds a copy of the purchased item.
type ContentGrantedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	ItemID        uuid.UUID `json:"item_id"`
	StorageKey    string    `json:"storage_key"`
	GrantedAt     time.Time `json:"granted_at"`
}
