package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

// Service exposes read access and guarded status transitions over the ledger.
type Service interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Transaction, error)
	GetCommissionForPurchase(ctx context.Context, transactionID uuid.UUID) (*models.Commission, error)
	ListAffiliateCommissions(ctx context.Context, affiliateID uuid.UUID, limit int) ([]models.Commission, error)
	Transition(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, metadata json.RawMessage) error
}

type service struct {
	repo        Repository
	commissions CommissionRepository
}

// NewService wires a ledger service with the provided repositories.
func NewService(repo Repository, commissions CommissionRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if commissions == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	return &service{repo: repo, commissions: commissions}, nil
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Transaction, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListByBuyer(ctx, buyerID, limit)
}

func (s *service) GetCommissionForPurchase(ctx context.Context, transactionID uuid.UUID) (*models.Commission, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	return s.commissions.FindByOriginalTransaction(ctx, transactionID)
}

func (s *service) ListAffiliateCommissions(ctx context.Context, affiliateID uuid.UUID, limit int) ([]models.Commission, error) {
	if affiliateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "affiliate id required")
	}
	return s.commissions.ListByAffiliate(ctx, affiliateID, limit)
}

// Transition moves a pending transaction into a terminal state. Rows that
// already reached a terminal state never change again.
func (s *service) Transition(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, metadata json.RawMessage) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if !status.IsValid() || !status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", status))
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeConflict, "transaction already settled")
	}

	return s.repo.UpdateStatus(ctx, id, status, metadata)
}
