package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

// Transaction is an immutable-once-completed ledger entry. Rows are created by
// the purchase orchestrator and only transition status through its
// reconciliation step; nothing deletes them.
//
// The partial unique index ux_transactions_completed_purchase (listing_id,
// buyer_id where type = 'purchase' and status = 'completed') is the duplicate
// purchase guard under concurrent retries.
type Transaction struct {
	ID                  uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Type                enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	BuyerID             uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID            uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	ItemID              uuid.UUID               `gorm:"column:item_id;type:uuid;not null"`
	ListingID           *uuid.UUID              `gorm:"column:listing_id;type:uuid;index"`
	Amount              decimal.Decimal         `gorm:"column:amount;type:numeric(18,6);not null"`
	Currency            string                  `gorm:"column:currency;not null;default:'USDC'"`
	Status              enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`
	PaymentFlow         enums.PaymentFlow       `gorm:"column:payment_flow;type:payment_flow_enum;not null;default:'direct'"`
	ParentTransactionID *uuid.UUID              `gorm:"column:parent_transaction_id;type:uuid;index"`
	RecipientWallet     *string                 `gorm:"column:recipient_wallet"`
	Metadata            json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
