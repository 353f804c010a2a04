package listings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

type stubRepo struct {
	listing       *models.Listing
	item          *models.ContentItem
	created       []*models.Listing
	updated       []*models.Listing
	statusUpdates []enums.ListingStatus
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) Create(_ context.Context, listing *models.Listing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	s.created = append(s.created, listing)
	return nil
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return s.listing, nil
}

func (s *stubRepo) ListBySeller(context.Context, uuid.UUID, int) ([]models.Listing, error) {
	return nil, nil
}

func (s *stubRepo) ListActive(context.Context, int) ([]models.Listing, error) {
	return nil, nil
}

func (s *stubRepo) Update(_ context.Context, listing *models.Listing) error {
	s.updated = append(s.updated, listing)
	return nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, _ uuid.UUID, status enums.ListingStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *stubRepo) FindItem(_ context.Context, itemID uuid.UUID) (*models.ContentItem, error) {
	if s.item == nil || s.item.ID != itemID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content item not found")
	}
	return s.item, nil
}

func newListingService(t *testing.T, repo *stubRepo) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func validCreateInput(sellerID, itemID uuid.UUID) CreateListingInput {
	return CreateListingInput{
		SellerID:         sellerID,
		ItemID:           itemID,
		Title:            "Sample pack vol. 2",
		Price:            decimal.NewFromInt(30),
		AffiliateEnabled: true,
		CommissionRate:   decimal.NewFromInt(15),
	}
}

func TestCreateListing(t *testing.T) {
	sellerID := uuid.New()
	item := &models.ContentItem{ID: uuid.New(), OwnerID: sellerID, StorageKey: "items/pack.zip"}
	repo := &stubRepo{item: item}
	svc := newListingService(t, repo)

	listing, err := svc.Create(context.Background(), validCreateInput(sellerID, item.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if listing.Status != enums.ListingStatusActive {
		t.Fatalf("new listing should be active, got %s", listing.Status)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 created listing")
	}
}

func TestCreateListingValidation(t *testing.T) {
	sellerID := uuid.New()
	item := &models.ContentItem{ID: uuid.New(), OwnerID: sellerID}
	repo := &stubRepo{item: item}
	svc := newListingService(t, repo)

	cases := []struct {
		name   string
		mutate func(*CreateListingInput)
	}{
		{"missing seller", func(in *CreateListingInput) { in.SellerID = uuid.Nil }},
		{"missing item", func(in *CreateListingInput) { in.ItemID = uuid.Nil }},
		{"missing title", func(in *CreateListingInput) { in.Title = "" }},
		{"zero price", func(in *CreateListingInput) { in.Price = decimal.Zero }},
		{"negative rate", func(in *CreateListingInput) { in.CommissionRate = decimal.NewFromInt(-1) }},
		{"rate above 100", func(in *CreateListingInput) { in.CommissionRate = decimal.NewFromInt(101) }},
		{"affiliate without rate", func(in *CreateListingInput) {
			in.AffiliateEnabled = true
			in.CommissionRate = decimal.Zero
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput(sellerID, item.ID)
			tc.mutate(&input)
			if _, err := svc.Create(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateListingRejectsForeignItem(t *testing.T) {
	item := &models.ContentItem{ID: uuid.New(), OwnerID: uuid.New()}
	repo := &stubRepo{item: item}
	svc := newListingService(t, repo)

	_, err := svc.Create(context.Background(), validCreateInput(uuid.New(), item.ID))
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateListing(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Title:            "Old title",
		Price:            decimal.NewFromInt(20),
		Status:           enums.ListingStatusActive,
		AffiliateEnabled: true,
		CommissionRate:   decimal.NewFromInt(10),
	}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	newPrice := decimal.NewFromInt(35)
	updated, err := svc.Update(context.Background(), sellerID, listing.ID, UpdateListingInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Price.Equal(newPrice) {
		t.Fatalf("price %s", updated.Price)
	}
	if updated.Title != "Old title" {
		t.Fatalf("untouched fields must survive, title %q", updated.Title)
	}
	if len(repo.updated) != 1 {
		t.Fatalf("expected 1 persisted update")
	}
}

func TestUpdateListingValidation(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Status:           enums.ListingStatusActive,
		Price:            decimal.NewFromInt(20),
		AffiliateEnabled: true,
		CommissionRate:   decimal.NewFromInt(10),
	}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	zero := decimal.Zero
	over := decimal.NewFromInt(101)
	empty := ""

	cases := []struct {
		name  string
		input UpdateListingInput
	}{
		{"zero price", UpdateListingInput{Price: &zero}},
		{"rate above 100", UpdateListingInput{CommissionRate: &over}},
		{"empty title", UpdateListingInput{Title: &empty}},
		{"affiliate without rate", UpdateListingInput{CommissionRate: &zero}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(context.Background(), sellerID, listing.ID, tc.input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(repo.updated) != 0 {
		t.Fatalf("rejected updates must not persist")
	}
}

func TestUpdateListingRejectsInactive(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{ID: uuid.New(), SellerID: sellerID, Status: enums.ListingStatusInactive}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	title := "New title"
	_, err := svc.Update(context.Background(), sellerID, listing.ID, UpdateListingInput{Title: &title})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateListingRejectsOtherSeller(t *testing.T) {
	listing := &models.Listing{ID: uuid.New(), SellerID: uuid.New(), Status: enums.ListingStatusActive}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	title := "New title"
	_, err := svc.Update(context.Background(), uuid.New(), listing.ID, UpdateListingInput{Title: &title})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeactivateListing(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{ID: uuid.New(), SellerID: sellerID, Status: enums.ListingStatusActive}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	if err := svc.Deactivate(context.Background(), sellerID, listing.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != enums.ListingStatusInactive {
		t.Fatalf("expected inactive status update, got %+v", repo.statusUpdates)
	}
}

func TestDeactivateListingIsIdempotent(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{ID: uuid.New(), SellerID: sellerID, Status: enums.ListingStatusInactive}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	if err := svc.Deactivate(context.Background(), sellerID, listing.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if len(repo.statusUpdates) != 0 {
		t.Fatalf("no status update expected for an inactive listing")
	}
}

func TestDeactivateListingRejectsOtherSeller(t *testing.T) {
	listing := &models.Listing{ID: uuid.New(), SellerID: uuid.New(), Status: enums.ListingStatusActive}
	repo := &stubRepo{listing: listing}
	svc := newListingService(t, repo)

	err := svc.Deactivate(context.Background(), uuid.New(), listing.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
