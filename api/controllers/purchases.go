package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/api/responses"
	"github.com/rmoralesdev/contentmint-backend/api/validators"
	"github.com/rmoralesdev/contentmint-backend/internal/purchases"
	"github.com/rmoralesdev/contentmint-backend/internal/settlement"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
)

type purchaseRequest struct {
	BuyerWallet   string `json:"buyer_wallet" validate:"required,min=4,max=128"`
	AffiliateCode string `json:"affiliate_code,omitempty" validate:"omitempty,min=3,max=32,alphanum"`
}

type purchaseResponse struct {
	TransactionID uuid.UUID           `json:"transaction_id"`
	ListingID     uuid.UUID           `json:"listing_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Status        string              `json:"status"`
	GrantedKey    string              `json:"granted_key,omitempty"`
	GrantPending  bool                `json:"grant_pending,omitempty"`
	Commission    *commissionSummary  `json:"commission,omitempty"`
}

type commissionSummary struct {
	CommissionTransactionID uuid.UUID       `json:"commission_transaction_id"`
	PayoutTransactionID     uuid.UUID       `json:"payout_transaction_id"`
	CommissionAmount        decimal.Decimal `json:"commission_amount"`
	SellerAmount            decimal.Decimal `json:"seller_amount"`
	Settlement              *settlementSummary `json:"settlement,omitempty"`
}

type settlementSummary struct {
	Commission   legSummary `json:"commission"`
	SellerPayout legSummary `json:"seller_payout"`
}

type legSummary struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Settled       bool      `json:"settled"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Purchase executes the buy flow for a listing on behalf of the caller.
func Purchase(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Purchase(r.Context(), purchases.PurchaseInput{
			ListingID:     listingID,
			BuyerID:       buyerID,
			BuyerWallet:   payload.BuyerWallet,
			AffiliateCode: payload.AffiliateCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPurchaseResponse(result))
	}
}

func newPurchaseResponse(result *purchases.PurchaseResult) purchaseResponse {
	if result == nil || result.Transaction == nil {
		return purchaseResponse{}
	}
	resp := purchaseResponse{
		TransactionID: result.Transaction.ID,
		Amount:        result.Transaction.Amount,
		Currency:      result.Transaction.Currency,
		Status:        string(result.Transaction.Status),
		GrantedKey:    result.GrantedKey,
		GrantPending:  result.GrantFailed,
	}
	if result.Transaction.ListingID != nil {
		resp.ListingID = *result.Transaction.ListingID
	}
	if result.Commission != nil {
		resp.Commission = &commissionSummary{
			CommissionTransactionID: result.Commission.CommissionTransactionID,
			PayoutTransactionID:     result.Commission.PayoutTransactionID,
			CommissionAmount:        result.Commission.CommissionAmount,
			SellerAmount:            result.Commission.SellerAmount,
			Settlement:              newSettlementSummary(result.Commission.Settlement),
		}
	}
	return resp
}

func newSettlementSummary(outcome *settlement.Outcome) *settlementSummary {
	if outcome == nil {
		return nil
	}
	return &settlementSummary{
		Commission:   newLegSummary(outcome.Commission),
		SellerPayout: newLegSummary(outcome.SellerPayout),
	}
}

func newLegSummary(leg settlement.LegOutcome) legSummary {
	return legSummary{
		TransactionID: leg.TransactionID,
		Settled:       leg.Settled,
		TxHash:        leg.TxHash,
		Reason:        leg.Reason,
	}
}
