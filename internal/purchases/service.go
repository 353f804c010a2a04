package purchases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/contentgrant"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/internal/listings"
	"github.com/rmoralesdev/contentmint-backend/internal/settlement"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	dbpkg "github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	dbtypes "github.com/rmoralesdev/contentmint-backend/pkg/db/types"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox/payloads"
)

var oneHundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PurchaseInput captures one buyer request.
type PurchaseInput struct {
	ListingID     uuid.UUID
	BuyerID       uuid.UUID
	BuyerWallet   string
	AffiliateCode string
}

// CommissionOutcome surfaces the settlement result to the caller. The
// purchase is already successful when this is populated; a failed split is an
// operational concern, not a buyer-facing failure.
type CommissionOutcome struct {
	CommissionTransactionID uuid.UUID       `json:"commission_transaction_id"`
	PayoutTransactionID     uuid.UUID       `json:"payout_transaction_id"`
	CommissionAmount        decimal.Decimal `json:"commission_amount"`
	SellerAmount            decimal.Decimal `json:"seller_amount"`
	Settlement              *settlement.Outcome `json:"settlement,omitempty"`
}

// PurchaseResult is the caller-visible outcome of a purchase.
type PurchaseResult struct {
	Transaction *models.Transaction `json:"transaction"`
	GrantedKey  string              `json:"granted_key,omitempty"`
	GrantFailed bool                `json:"grant_failed,omitempty"`
	Commission  *CommissionOutcome  `json:"commission,omitempty"`
}

// Service coordinates the purchase workflow.
type Service interface {
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
}

type service struct {
	tx          txRunner
	listingRepo listings.Repository
	ledgerRepo  ledger.Repository
	commissions ledger.CommissionRepository
	affiliates  affiliates.Repository
	users       userLoader
	grants      contentgrant.Service
	settlement  settlement.Service
	emitter     outboxEmitter
	logg        *logger.Logger
	cfg         config.PurchaseConfig
	retryCfg    config.SettlementConfig
}

// NewService wires the purchase orchestrator.
func NewService(
	tx txRunner,
	listingRepo listings.Repository,
	ledgerRepo ledger.Repository,
	commissions ledger.CommissionRepository,
	affiliateRepo affiliates.Repository,
	users userLoader,
	grants contentgrant.Service,
	settlementSvc settlement.Service,
	emitter outboxEmitter,
	logg *logger.Logger,
	cfg config.PurchaseConfig,
	retryCfg config.SettlementConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if commissions == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if affiliateRepo == nil {
		return nil, fmt.Errorf("affiliate repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if grants == nil {
		return nil, fmt.Errorf("content grant service required")
	}
	if settlementSvc == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:          tx,
		listingRepo: listingRepo,
		ledgerRepo:  ledgerRepo,
		commissions: commissions,
		affiliates:  affiliateRepo,
		users:       users,
		grants:      grants,
		settlement:  settlementSvc,
		emitter:     emitter,
		logg:        logg,
		cfg:         cfg,
		retryCfg:    retryCfg,
	}, nil
}

// intentRows is everything the atomic intent step creates.
type intentRows struct {
	purchase     *models.Transaction
	commissionTx *models.Transaction
	payoutTx     *models.Transaction
	commission   *models.Commission
}

// Purchase runs the full workflow: validate, commit the ledger intent
// atomically, grant content, then settle the commission split and reconcile.
// The buyer's entitlement is final once the intent commit succeeds; grant and
// settlement failures are reported inside the result, never as an overall
// error.
func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if strings.TrimSpace(input.BuyerWallet) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer wallet required")
	}

	listing, err := s.listingRepo.FindByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is not active")
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sellers cannot purchase their own listings")
	}

	done, err := s.ledgerRepo.HasCompletedPurchase(ctx, input.ListingID, input.BuyerID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyPurchased, "listing already purchased")
	}

	affiliate, err := s.resolveAffiliate(ctx, listing, input)
	if err != nil {
		return nil, err
	}

	item, err := s.listingRepo.FindItem(ctx, listing.ItemID)
	if err != nil {
		return nil, err
	}
	seller, err := s.users.FindByID(ctx, listing.SellerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.commitIntent(ctx, listing, seller, affiliate, input)
	if err != nil {
		return nil, err
	}

	result := &PurchaseResult{Transaction: rows.purchase}
	if rows.commission != nil {
		result.Commission = &CommissionOutcome{
			CommissionTransactionID: rows.commissionTx.ID,
			PayoutTransactionID:     rows.payoutTx.ID,
			CommissionAmount:        rows.commissionTx.Amount,
			SellerAmount:            rows.payoutTx.Amount,
		}
	}

	s.grantContent(ctx, rows.purchase, item, result)

	if rows.commission != nil {
		outcome, settleErr := s.settlement.SettleSplit(ctx, settlement.Input{
			Purchase:     rows.purchase,
			CommissionTx: rows.commissionTx,
			PayoutTx:     rows.payoutTx,
			Commission:   rows.commission,
			Affiliate:    affiliate,
		})
		if settleErr != nil {
			// Reconciliation itself failed; the split rows may still be
			// pending and need operator attention. The purchase stays
			// successful regardless.
			s.logError(ctx, rows.purchase, "commission settlement did not reconcile", settleErr)
		} else {
			result.Commission.Settlement = outcome
		}
	}

	return result, nil
}

// resolveAffiliate maps the referral code to an affiliate. An invalid, inactive or
// self-referring code degrades to "no affiliate" unless strict mode is on.
func (s *service) resolveAffiliate(ctx context.Context, listing *models.Listing, input PurchaseInput) (*models.Affiliate, error) {
	code := strings.TrimSpace(input.AffiliateCode)
	if code == "" {
		return nil, nil
	}
	if !listing.AffiliateEnabled {
		if s.cfg.StrictAffiliate {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing does not accept affiliate codes")
		}
		return nil, nil
	}

	affiliate, err := s.affiliates.FindActiveByListingAndCode(ctx, listing.ID, code)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			if s.cfg.StrictAffiliate {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown or inactive affiliate code")
			}
			return nil, nil
		}
		return nil, err
	}
	if affiliate.AffiliateUserID == input.BuyerID {
		// Self-referral: the purchase proceeds, the commission does not.
		return nil, nil
	}
	return affiliate, nil
}

// commitIntent runs the single atomic boundary that makes the purchase
// durable. Everything in it commits or nothing does; transient write
// conflicts are retried with backoff, and the completed-purchase unique index
// turns concurrent winners into AlreadyPurchased for the losers.
func (s *service) commitIntent(
	ctx context.Context,
	listing *models.Listing,
	seller *models.User,
	affiliate *models.Affiliate,
	input PurchaseInput,
) (*intentRows, error) {
	attempts := s.retryCfg.LedgerRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := s.retryCfg.LedgerRetryBase
	if base <= 0 {
		base = 50 * time.Millisecond
	}

	var rows *intentRows
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewExponential(base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var attemptErr error
		rows, attemptErr = s.insertIntentRows(ctx, listing, seller, affiliate, input)
		if attemptErr != nil && dbpkg.IsSerializationFailure(attemptErr) {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_transactions_completed_purchase") {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyPurchased, "listing already purchased")
		}
		if dbpkg.IsSerializationFailure(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger contention, retry the purchase")
		}
		return nil, err
	}
	return rows, nil
}

func (s *service) insertIntentRows(
	ctx context.Context,
	listing *models.Listing,
	seller *models.User,
	affiliate *models.Affiliate,
	input PurchaseInput,
) (*intentRows, error) {
	purchaseMeta, err := dbtypes.MarshalMetadata(dbtypes.PurchaseMetadata{
		BuyerWallet:   input.BuyerWallet,
		AffiliateCode: input.AffiliateCode,
	})
	if err != nil {
		return nil, err
	}

	rows := &intentRows{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		commissionRepo := s.commissions.WithTx(tx)

		purchase := &models.Transaction{
			Type:        enums.TransactionTypePurchase,
			BuyerID:     input.BuyerID,
			SellerID:    listing.SellerID,
			ItemID:      listing.ItemID,
			ListingID:   &listing.ID,
			Amount:      listing.Price,
			Currency:    listing.Currency,
			Status:      enums.TransactionStatusCompleted,
			PaymentFlow: enums.PaymentFlowDirect,
			Metadata:    purchaseMeta,
		}
		if err := ledgerRepo.Create(ctx, purchase); err != nil {
			return err
		}
		rows.purchase = purchase

		if affiliate != nil {
			commissionAmount := listing.Price.Mul(affiliate.CommissionRate).Div(oneHundred).Round(6)
			sellerAmount := listing.Price.Sub(commissionAmount)

			commissionTx := &models.Transaction{
				Type:                enums.TransactionTypeCommission,
				BuyerID:             input.BuyerID,
				SellerID:            listing.SellerID,
				ItemID:              listing.ItemID,
				ListingID:           &listing.ID,
				Amount:              commissionAmount,
				Currency:            listing.Currency,
				Status:              enums.TransactionStatusPending,
				PaymentFlow:         enums.PaymentFlowAdmin,
				ParentTransactionID: &purchase.ID,
				RecipientWallet:     &affiliate.WalletAddress,
			}
			if err := ledgerRepo.Create(ctx, commissionTx); err != nil {
				return err
			}

			payoutTx := &models.Transaction{
				Type:                enums.TransactionTypeSalePayout,
				BuyerID:             input.BuyerID,
				SellerID:            listing.SellerID,
				ItemID:              listing.ItemID,
				ListingID:           &listing.ID,
				Amount:              sellerAmount,
				Currency:            listing.Currency,
				Status:              enums.TransactionStatusPending,
				PaymentFlow:         enums.PaymentFlowAdmin,
				ParentTransactionID: &purchase.ID,
				RecipientWallet:     seller.WalletAddress,
			}
			if err := ledgerRepo.Create(ctx, payoutTx); err != nil {
				return err
			}

			commission := &models.Commission{
				AffiliateID:             affiliate.ID,
				OriginalTransactionID:   purchase.ID,
				CommissionTransactionID: commissionTx.ID,
				Rate:                    affiliate.CommissionRate,
				Amount:                  commissionAmount,
				Status:                  enums.CommissionStatusPending,
			}
			if err := commissionRepo.Create(ctx, commission); err != nil {
				return err
			}

			rows.commissionTx = commissionTx
			rows.payoutTx = payoutTx
			rows.commission = commission
		}

		return s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   purchase.ID,
			Version:       1,
			Data: payloads.PurchaseCompletedEvent{
				TransactionID: purchase.ID,
				ListingID:     listing.ID,
				BuyerID:       input.BuyerID,
				SellerID:      listing.SellerID,
				ItemID:        listing.ItemID,
				Amount:        listing.Price,
				PaymentFlow:   enums.PaymentFlowDirect,
				AffiliateCode: input.AffiliateCode,
				CompletedAt:   time.Now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// grantContent copies the item into the buyer's namespace. A failure here is
// logged and surfaced in the result; the purchase already proves entitlement
// and the grant can be replayed later.
func (s *service) grantContent(ctx context.Context, purchase *models.Transaction, item *models.ContentItem, result *PurchaseResult) {
	grant, err := s.grants.Grant(ctx, contentgrant.GrantInput{
		TransactionID: purchase.ID,
		BuyerID:       purchase.BuyerID,
		ItemID:        item.ID,
		StorageKey:    item.StorageKey,
	})
	if err != nil {
		result.GrantFailed = true
		s.logError(ctx, purchase, "content grant failed, purchase remains valid", err)
		return
	}
	result.GrantedKey = grant.StorageKey

	emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContentGranted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   purchase.ID,
			Version:       1,
			Data: payloads.ContentGrantedEvent{
				TransactionID: purchase.ID,
				BuyerID:       purchase.BuyerID,
				ItemID:        item.ID,
				StorageKey:    grant.StorageKey,
				GrantedAt:     time.Now(),
			},
		})
	})
	if emitErr != nil {
		s.logError(ctx, purchase, "recording content grant event failed", emitErr)
	}
}

func (s *service) logError(ctx context.Context, purchase *models.Transaction, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithTransactionID(ctx, purchase.ID.String())
	s.logg.Error(logCtx, msg, err)
}
