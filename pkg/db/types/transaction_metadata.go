package dbtypes

import (
	"encoding/json"
	"fmt"
)

// Transaction metadata is stored as jsonb but modeled as one closed variant per
// transaction outcome so the fields that exist for each status stay enforceable
// in code rather than in an open map.

// PurchaseMetadata annotates the purchase transaction written at checkout time.
type PurchaseMetadata struct {
	BuyerWallet   string `json:"buyer_wallet"`
	AffiliateCode string `json:"affiliate_code,omitempty"`
}

// SettlementMetadata annotates a payout-side transaction whose on-chain
// transfer succeeded.
type SettlementMetadata struct {
	Success     bool            `json:"success"`
	TxHash      string          `json:"tx_hash"`
	Network     string          `json:"network"`
	Token       string          `json:"token"`
	Payer       string          `json:"payer"`
	PaymentFlow string          `json:"payment_flow"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// SettlementFailureMetadata annotates a payout-side transaction whose on-chain
// transfer failed or was never attempted.
type SettlementFailureMetadata struct {
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason"`
}

// MarshalMetadata serializes a metadata variant for storage.
func MarshalMetadata(v any) (json.RawMessage, error) {
	switch v.(type) {
	case PurchaseMetadata, *PurchaseMetadata,
		SettlementMetadata, *SettlementMetadata,
		SettlementFailureMetadata, *SettlementFailureMetadata:
	default:
		return nil, fmt.Errorf("unsupported transaction metadata type %T", v)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction metadata: %w", err)
	}
	return payload, nil
}
