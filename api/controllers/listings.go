package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/api/middleware"
	"github.com/rmoralesdev/contentmint-backend/api/responses"
	"github.com/rmoralesdev/contentmint-backend/api/validators"
	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
)

const maxListingPageSize = 100

type createListingRequest struct {
	ItemID           uuid.UUID       `json:"item_id" validate:"required,uuid4"`
	Title            string          `json:"title" validate:"required,min=1,max=200"`
	Description      *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price            decimal.Decimal `json:"price" validate:"required"`
	AffiliateEnabled bool            `json:"affiliate_enabled"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
}

type listingResponse struct {
	ListingID        uuid.UUID       `json:"listing_id"`
	SellerID         uuid.UUID       `json:"seller_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	Title            string          `json:"title"`
	Description      *string         `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	AffiliateEnabled bool            `json:"affiliate_enabled"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newListingResponse(listing *models.Listing) listingResponse {
	if listing == nil {
		return listingResponse{}
	}
	return listingResponse{
		ListingID:        listing.ID,
		SellerID:         listing.SellerID,
		ItemID:           listing.ItemID,
		Title:            listing.Title,
		Description:      listing.Description,
		Price:            listing.Price,
		Currency:         listing.Currency,
		Status:           string(listing.Status),
		AffiliateEnabled: listing.AffiliateEnabled,
		CommissionRate:   listing.CommissionRate,
		CreatedAt:        listing.CreatedAt,
	}
}

// CreateListing publishes a content item for sale on behalf of the caller.
func CreateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		sellerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), listings.CreateListingInput{
			SellerID:         sellerID,
			ItemID:           payload.ItemID,
			Title:            payload.Title,
			Description:      payload.Description,
			Price:            payload.Price,
			AffiliateEnabled: payload.AffiliateEnabled,
			CommissionRate:   payload.CommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newListingResponse(listing))
	}
}

// GetListing fetches a single listing by its identifier.
func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.GetByID(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newListingResponse(listing))
	}
}

// ListActiveListings returns the marketplace browse feed.
func ListActiveListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListActive(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]listingResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newListingResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"listings": out})
	}
}

// ListMyListings returns the caller's listings, active or not.
func ListMyListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListBySeller(r.Context(), sellerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]listingResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newListingResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"listings": out})
	}
}

type updateListingRequest struct {
	Title            *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description      *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	AffiliateEnabled *bool            `json:"affiliate_enabled,omitempty"`
	CommissionRate   *decimal.Decimal `json:"commission_rate,omitempty"`
}

// UpdateListing applies partial changes to one of the caller's listings.
func UpdateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Update(r.Context(), sellerID, listingID, listings.UpdateListingInput{
			Title:            payload.Title,
			Description:      payload.Description,
			Price:            payload.Price,
			AffiliateEnabled: payload.AffiliateEnabled,
			CommissionRate:   payload.CommissionRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newListingResponse(listing))
	}
}

// DeactivateListing takes a listing off the marketplace.
func DeactivateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), sellerID, listingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "inactive"})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing caller identity")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller identity")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
