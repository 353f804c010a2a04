package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/api/responses"
	"github.com/rmoralesdev/contentmint-backend/api/validators"
	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
)

type transactionResponse struct {
	TransactionID       uuid.UUID       `json:"transaction_id"`
	Type                string          `json:"type"`
	BuyerID             uuid.UUID       `json:"buyer_id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	ListingID           *uuid.UUID      `json:"listing_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Status              string          `json:"status"`
	PaymentFlow         string          `json:"payment_flow"`
	ParentTransactionID *uuid.UUID      `json:"parent_transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

func newTransactionResponse(tx *models.Transaction) transactionResponse {
	if tx == nil {
		return transactionResponse{}
	}
	return transactionResponse{
		TransactionID:       tx.ID,
		Type:                string(tx.Type),
		BuyerID:             tx.BuyerID,
		SellerID:            tx.SellerID,
		ListingID:           tx.ListingID,
		Amount:              tx.Amount,
		Currency:            tx.Currency,
		Status:              string(tx.Status),
		PaymentFlow:         string(tx.PaymentFlow),
		ParentTransactionID: tx.ParentTransactionID,
		CreatedAt:           tx.CreatedAt,
	}
}

type commissionResponse struct {
	CommissionID            uuid.UUID       `json:"commission_id"`
	AffiliateID             uuid.UUID       `json:"affiliate_id"`
	OriginalTransactionID   uuid.UUID       `json:"original_transaction_id"`
	CommissionTransactionID uuid.UUID       `json:"commission_transaction_id"`
	Rate                    decimal.Decimal `json:"rate"`
	Amount                  decimal.Decimal `json:"amount"`
	Status                  string          `json:"status"`
	PaidAt                  *time.Time      `json:"paid_at,omitempty"`
}

func newCommissionResponse(c *models.Commission) commissionResponse {
	if c == nil {
		return commissionResponse{}
	}
	return commissionResponse{
		CommissionID:            c.ID,
		AffiliateID:             c.AffiliateID,
		OriginalTransactionID:   c.OriginalTransactionID,
		CommissionTransactionID: c.CommissionTransactionID,
		Rate:                    c.Rate,
		Amount:                  c.Amount,
		Status:                  string(c.Status),
		PaidAt:                  c.PaidAt,
	}
}

// GetTransaction fetches one of the caller's ledger rows.
func GetTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tx, err := svc.GetTransaction(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tx.BuyerID != callerID && tx.SellerID != callerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))
			return
		}

		responses.WriteSuccess(w, newTransactionResponse(tx))
	}
}

// ListMyTransactions returns the caller's purchase history.
func ListMyTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListBuyerTransactions(r.Context(), buyerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]transactionResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newTransactionResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"transactions": out})
	}
}

// GetPurchaseCommission returns the commission attached to a purchase the caller took part in.
func GetPurchaseCommission(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactionID, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tx, err := svc.GetTransaction(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tx.BuyerID != callerID && tx.SellerID != callerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))
			return
		}

		commission, err := svc.GetCommissionForPurchase(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCommissionResponse(commission))
	}
}

// ListAffiliateCommissions returns the commission history for one of the caller's affiliate enrollments.
func ListAffiliateCommissions(ledgerSvc ledger.Service, affiliateSvc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		affiliateID, err := pathUUID(r, "affiliateID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		affiliate, err := affiliateSvc.GetByID(r.Context(), affiliateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if affiliate.AffiliateUserID != callerID && affiliate.OwnerID != callerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := ledgerSvc.ListAffiliateCommissions(r.Context(), affiliateID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]commissionResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newCommissionResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"commissions": out})
	}
}
