package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/api/responses"
	"github.com/rmoralesdev/contentmint-backend/api/validators"
	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
)

type enrollAffiliateRequest struct {
	WalletAddress  string           `json:"wallet_address" validate:"required,min=4,max=128"`
	Code           string           `json:"code,omitempty" validate:"omitempty,min=3,max=32,alphanum"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
}

type affiliateResponse struct {
	AffiliateID    uuid.UUID       `json:"affiliate_id"`
	ListingID      uuid.UUID       `json:"listing_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Code           string          `json:"code"`
	WalletAddress  string          `json:"wallet_address"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Status         string          `json:"status"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	TotalSales     int64           `json:"total_sales"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newAffiliateResponse(affiliate *models.Affiliate) affiliateResponse {
	if affiliate == nil {
		return affiliateResponse{}
	}
	return affiliateResponse{
		AffiliateID:    affiliate.ID,
		ListingID:      affiliate.ListingID,
		UserID:         affiliate.AffiliateUserID,
		Code:           affiliate.Code,
		WalletAddress:  affiliate.WalletAddress,
		CommissionRate: affiliate.CommissionRate,
		Status:         string(affiliate.Status),
		TotalEarnings:  affiliate.TotalEarnings,
		TotalSales:     affiliate.TotalSales,
		CreatedAt:      affiliate.CreatedAt,
	}
}

// EnrollAffiliate registers the caller as a referrer for a listing.
func EnrollAffiliate(svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "affiliate service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload enrollAffiliateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		affiliate, err := svc.Enroll(r.Context(), affiliates.EnrollInput{
			ListingID:      listingID,
			UserID:         userID,
			WalletAddress:  payload.WalletAddress,
			Code:           payload.Code,
			CommissionRate: payload.CommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newAffiliateResponse(affiliate))
	}
}

// ListListingAffiliates returns the affiliates enrolled on a listing the caller owns.
func ListListingAffiliates(svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByListing(r.Context(), ownerID, listingID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]affiliateResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newAffiliateResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"affiliates": out})
	}
}

// ListMyAffiliations returns every listing the caller refers for.
func ListMyAffiliations(svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]affiliateResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newAffiliateResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"affiliates": out})
	}
}

// SuspendAffiliate disables a referrer on a listing the caller owns.
func SuspendAffiliate(svc affiliates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		affiliateID, err := pathUUID(r, "affiliateID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Suspend(r.Context(), ownerID, affiliateID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "suspended"})
	}
}
