package contentgrant

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/storage/gcs"
)

// objectCopier is the slice of the GCS client the granter needs.
type objectCopier interface {
	CopyObject(ctx context.Context, src, dst gcs.ObjectRef) error
	StatObject(ctx context.Context, ref gcs.ObjectRef) (int64, error)
}

// GrantInput identifies the purchase and the object being granted.
type GrantInput struct {
	TransactionID uuid.UUID
	BuyerID       uuid.UUID
	ItemID        uuid.UUID
	StorageKey    string
}

// GrantResult reports where the buyer's copy landed.
type GrantResult struct {
	StorageKey string
}

// Service copies purchased objects into the buyer's namespace.
type Service interface {
	Grant(ctx context.Context, input GrantInput) (*GrantResult, error)
}

type service struct {
	storage     objectCopier
	buyerPrefix string
	logg        *logger.Logger
}

// NewService wires a content grant service backed by object storage.
func NewService(storage objectCopier, buyerPrefix string, logg *logger.Logger) (Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("object storage required")
	}
	if buyerPrefix == "" {
		buyerPrefix = "purchases"
	}
	return &service{storage: storage, buyerPrefix: buyerPrefix, logg: logg}, nil
}

// Grant copies the seller's object to a buyer-scoped key. The copy is
// idempotent: rerunning a grant for the same purchase overwrites the same
// destination with identical bytes.
func (s *service) Grant(ctx context.Context, input GrantInput) (*GrantResult, error) {
	if input.TransactionID == uuid.Nil || input.BuyerID == uuid.Nil || input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction, buyer and item ids required")
	}
	if input.StorageKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage key required")
	}

	if _, err := s.storage.StatObject(ctx, gcs.ObjectRef{Key: input.StorageKey}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGrantFailed, err, "source object unavailable")
	}

	dstKey := s.destinationKey(input)
	err := s.storage.CopyObject(ctx,
		gcs.ObjectRef{Key: input.StorageKey},
		gcs.ObjectRef{Key: dstKey},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGrantFailed, err, "copying object to buyer namespace")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id": input.TransactionID.String(),
			"buyer_id":       input.BuyerID.String(),
			"storage_key":    dstKey,
		})
		s.logg.Info(logCtx, "content granted")
	}

	return &GrantResult{StorageKey: dstKey}, nil
}

func (s *service) destinationKey(input GrantInput) string {
	base := path.Base(input.StorageKey)
	return path.Join(s.buyerPrefix, input.BuyerID.String(), input.ItemID.String(), base)
}
