package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/pkg/chain"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	dbpkg "github.com/rmoralesdev/contentmint-backend/pkg/db"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	dbtypes "github.com/rmoralesdev/contentmint-backend/pkg/db/types"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/metrics"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox/payloads"
)

const (
	reasonInsufficientFunds  = "platform wallet balance below purchase amount"
	reasonBalanceUnavailable = "platform wallet balance check failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentRail interface {
	GetBalance(ctx context.Context, account, token, network string) (decimal.Decimal, error)
	Transfer(ctx context.Context, req chain.TransferRequest) (*chain.TransferResult, error)
	PlatformWallet() string
	Network() string
	Token() string
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Input carries the rows created by the purchase intent step.
type Input struct {
	Purchase     *models.Transaction
	CommissionTx *models.Transaction
	PayoutTx     *models.Transaction
	Commission   *models.Commission
	Affiliate    *models.Affiliate
}

// LegOutcome reports what happened to one payout transaction.
type LegOutcome struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Settled       bool      `json:"settled"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Outcome reports the terminal state of both payout legs.
type Outcome struct {
	Commission   LegOutcome `json:"commission"`
	SellerPayout LegOutcome `json:"seller_payout"`
}

// Service pays out pending commission splits and reconciles the ledger with
// the transfer outcomes.
type Service interface {
	SettleSplit(ctx context.Context, input Input) (*Outcome, error)
}

type service struct {
	tx          txRunner
	rail        paymentRail
	ledgerRepo  ledger.Repository
	commissions ledger.CommissionRepository
	affiliates  affiliates.Repository
	emitter     outboxEmitter
	metrics     *metrics.SettlementMetrics
	logg        *logger.Logger
	cfg         config.SettlementConfig
}

// NewService wires the settlement service.
func NewService(
	tx txRunner,
	rail paymentRail,
	ledgerRepo ledger.Repository,
	commissions ledger.CommissionRepository,
	affiliateRepo affiliates.Repository,
	emitter outboxEmitter,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
	cfg config.SettlementConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if rail == nil {
		return nil, fmt.Errorf("payment rail required")
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
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:          tx,
		rail:        rail,
		ledgerRepo:  ledgerRepo,
		commissions: commissions,
		affiliates:  affiliateRepo,
		emitter:     emitter,
		metrics:     settlementMetrics,
		logg:        logg,
		cfg:         cfg,
	}, nil
}

// SettleSplit transfers the commission and seller shares, then records each
// outcome. The purchase itself is already final; nothing here can undo it.
// The incoming request context may be canceled while transfers are in flight,
// so the whole settlement runs detached from it. Every payout row this method
// receives leaves in a terminal status, never pending.
func (s *service) SettleSplit(ctx context.Context, input Input) (*Outcome, error) {
	if input.Purchase == nil || input.CommissionTx == nil || input.PayoutTx == nil ||
		input.Commission == nil || input.Affiliate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement input incomplete")
	}
	if input.CommissionTx.Status.IsTerminal() && input.PayoutTx.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "split already settled")
	}

	ctx = context.WithoutCancel(ctx)
	flow := string(enums.PaymentFlowAdmin)
	started := time.Now()
	defer func() {
		s.metrics.ObserveDuration(flow, time.Since(started))
	}()

	balance, err := s.rail.GetBalance(ctx, s.rail.PlatformWallet(), s.rail.Token(), s.rail.Network())
	if err != nil {
		// The legs still terminate, but the recorded reason names the real
		// cause rather than claiming the wallet is short.
		s.logError(ctx, input, "balance check failed", err)
		s.metrics.IncTransfer(flow, "balance_unavailable")
		reason := fmt.Sprintf("%s: %v", reasonBalanceUnavailable, err)
		return s.failBothLegs(ctx, input, reason)
	}
	if balance.LessThan(input.Purchase.Amount) {
		// Transfers are never attempted against a wallet known to be short.
		// Concurrent settlements can still drain it between this check and
		// the transfer; the rail rejecting the transfer is the backstop.
		s.metrics.IncTransfer(flow, "insufficient_funds")
		return s.failBothLegs(ctx, input, reasonInsufficientFunds)
	}

	// Both legs are attempted even when the first fails; each records its own
	// outcome.
	commission, cErr := s.settleCommissionLeg(ctx, input, flow)
	payout, pErr := s.settlePayoutLeg(ctx, input, flow)
	if err := multierr.Append(cErr, pErr); err != nil {
		return nil, err
	}
	return &Outcome{Commission: *commission, SellerPayout: *payout}, nil
}

func (s *service) failBothLegs(ctx context.Context, input Input, reason string) (*Outcome, error) {
	commission, cErr := s.failCommissionLeg(ctx, input, reason)
	payout, pErr := s.failPayoutLeg(ctx, input, reason)
	if err := multierr.Append(cErr, pErr); err != nil {
		return nil, err
	}
	return &Outcome{Commission: *commission, SellerPayout: *payout}, nil
}

func (s *service) settleCommissionLeg(ctx context.Context, input Input, flow string) (*LegOutcome, error) {
	// A full-rate listing leaves nothing for the seller leg, and a tiny price
	// can round the commission leg down to zero. The rail rejects zero-amount
	// transfers, so such a leg completes without one.
	if input.CommissionTx.Amount.IsZero() {
		return s.recordCommissionSettled(ctx, input, flow, nil)
	}

	result, err := s.rail.Transfer(ctx, chain.TransferRequest{
		From:           s.rail.PlatformWallet(),
		To:             input.Affiliate.WalletAddress,
		Amount:         input.CommissionTx.Amount,
		Token:          s.rail.Token(),
		Network:        s.rail.Network(),
		IdempotencyKey: input.CommissionTx.ID.String(),
	})
	if err != nil {
		s.metrics.IncTransfer(flow, "failed")
		s.logError(ctx, input, "commission transfer failed", err)
		return s.failCommissionLeg(ctx, input, transferFailureReason(err))
	}
	s.metrics.IncTransfer(flow, "success")
	return s.recordCommissionSettled(ctx, input, flow, result)
}

// recordCommissionSettled writes the terminal state of a settled commission
// leg. A nil result means the leg carried a zero amount and no transfer
// happened.
func (s *service) recordCommissionSettled(ctx context.Context, input Input, flow string, result *chain.TransferResult) (*LegOutcome, error) {
	metadata, err := s.settledMetadata(result, flow)
	if err != nil {
		return nil, err
	}
	txHash := ""
	if result != nil {
		txHash = result.TxHash
	}
	paidAt := time.Now()
	err = s.runReconciliation(ctx, func(tx *gorm.DB) error {
		if err := s.ledgerRepo.WithTx(tx).UpdateStatus(ctx, input.CommissionTx.ID, enums.TransactionStatusCompleted, metadata); err != nil {
			return err
		}
		if err := s.commissions.WithTx(tx).MarkPaid(ctx, input.Commission.ID, paidAt); err != nil {
			return err
		}
		if err := s.affiliates.WithTx(tx).IncrementTotals(ctx, input.Affiliate.ID, input.Commission.Amount); err != nil {
			return err
		}
		return s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCommissionSettled,
			AggregateType: enums.AggregateCommission,
			AggregateID:   input.Commission.ID,
			Version:       1,
			Data: payloads.CommissionSettledEvent{
				CommissionID:          input.Commission.ID,
				CommissionTxID:        input.CommissionTx.ID,
				OriginalTransactionID: input.Purchase.ID,
				AffiliateID:           input.Affiliate.ID,
				Amount:                input.Commission.Amount,
				TxHash:                txHash,
				SettledAt:             paidAt,
			},
		})
	})
	if err != nil {
		s.metrics.IncReconciliationFailure(flow)
		s.logError(ctx, input, "commission reconciliation failed after confirmed transfer", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording settled commission")
	}

	return &LegOutcome{TransactionID: input.CommissionTx.ID, Settled: true, TxHash: txHash}, nil
}

func (s *service) settlePayoutLeg(ctx context.Context, input Input, flow string) (*LegOutcome, error) {
	if input.PayoutTx.Amount.IsZero() {
		return s.recordPayoutSettled(ctx, input, flow, nil)
	}

	to := ""
	if input.PayoutTx.RecipientWallet != nil {
		to = *input.PayoutTx.RecipientWallet
	}
	if to == "" {
		return s.failPayoutLeg(ctx, input, "seller wallet address missing")
	}

	result, err := s.rail.Transfer(ctx, chain.TransferRequest{
		From:           s.rail.PlatformWallet(),
		To:             to,
		Amount:         input.PayoutTx.Amount,
		Token:          s.rail.Token(),
		Network:        s.rail.Network(),
		IdempotencyKey: input.PayoutTx.ID.String(),
	})
	if err != nil {
		s.metrics.IncTransfer(flow, "failed")
		s.logError(ctx, input, "seller payout transfer failed", err)
		return s.failPayoutLeg(ctx, input, transferFailureReason(err))
	}
	s.metrics.IncTransfer(flow, "success")
	return s.recordPayoutSettled(ctx, input, flow, result)
}

func (s *service) recordPayoutSettled(ctx context.Context, input Input, flow string, result *chain.TransferResult) (*LegOutcome, error) {
	metadata, err := s.settledMetadata(result, flow)
	if err != nil {
		return nil, err
	}
	txHash := ""
	if result != nil {
		txHash = result.TxHash
	}
	err = s.runReconciliation(ctx, func(tx *gorm.DB) error {
		return s.ledgerRepo.WithTx(tx).UpdateStatus(ctx, input.PayoutTx.ID, enums.TransactionStatusCompleted, metadata)
	})
	if err != nil {
		s.metrics.IncReconciliationFailure(flow)
		s.logError(ctx, input, "payout reconciliation failed after confirmed transfer", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording settled payout")
	}

	return &LegOutcome{TransactionID: input.PayoutTx.ID, Settled: true, TxHash: txHash}, nil
}

func (s *service) failCommissionLeg(ctx context.Context, input Input, reason string) (*LegOutcome, error) {
	metadata, err := dbtypes.MarshalMetadata(dbtypes.SettlementFailureMetadata{
		Success:       false,
		FailureReason: reason,
	})
	if err != nil {
		return nil, err
	}

	failedAt := time.Now()
	err = s.runReconciliation(ctx, func(tx *gorm.DB) error {
		if err := s.ledgerRepo.WithTx(tx).UpdateStatus(ctx, input.CommissionTx.ID, enums.TransactionStatusFailed, metadata); err != nil {
			return err
		}
		if err := s.commissions.WithTx(tx).MarkFailed(ctx, input.Commission.ID); err != nil {
			return err
		}
		return s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCommissionFailed,
			AggregateType: enums.AggregateCommission,
			AggregateID:   input.Commission.ID,
			Version:       1,
			Data: payloads.CommissionFailedEvent{
				CommissionID:          input.Commission.ID,
				CommissionTxID:        input.CommissionTx.ID,
				OriginalTransactionID: input.Purchase.ID,
				AffiliateID:           input.Affiliate.ID,
				Amount:                input.Commission.Amount,
				Reason:                reason,
				FailedAt:              failedAt,
			},
		})
	})
	if err != nil {
		s.metrics.IncReconciliationFailure(string(enums.PaymentFlowAdmin))
		s.logError(ctx, input, "commission reconciliation failed after rejected transfer", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording failed commission")
	}

	return &LegOutcome{TransactionID: input.CommissionTx.ID, Settled: false, Reason: reason}, nil
}

func (s *service) failPayoutLeg(ctx context.Context, input Input, reason string) (*LegOutcome, error) {
	metadata, err := dbtypes.MarshalMetadata(dbtypes.SettlementFailureMetadata{
		Success:       false,
		FailureReason: reason,
	})
	if err != nil {
		return nil, err
	}

	err = s.runReconciliation(ctx, func(tx *gorm.DB) error {
		return s.ledgerRepo.WithTx(tx).UpdateStatus(ctx, input.PayoutTx.ID, enums.TransactionStatusFailed, metadata)
	})
	if err != nil {
		s.metrics.IncReconciliationFailure(string(enums.PaymentFlowAdmin))
		s.logError(ctx, input, "payout reconciliation failed after rejected transfer", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording failed payout")
	}

	return &LegOutcome{TransactionID: input.PayoutTx.ID, Settled: false, Reason: reason}, nil
}

func (s *service) settledMetadata(result *chain.TransferResult, flow string) (json.RawMessage, error) {
	metadata := dbtypes.SettlementMetadata{
		Success:     true,
		Network:     s.rail.Network(),
		Token:       s.rail.Token(),
		Payer:       s.rail.PlatformWallet(),
		PaymentFlow: flow,
	}
	if result != nil {
		metadata.TxHash = result.TxHash
		metadata.RawResponse = result.Raw
	}
	return dbtypes.MarshalMetadata(metadata)
}

// runReconciliation retries the atomic ledger write on serialization
// conflicts. The transfer already happened, so giving up here loses the
// reconciliation record, not money.
func (s *service) runReconciliation(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempts := s.cfg.LedgerRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := s.cfg.LedgerRetryBase
	if base <= 0 {
		base = 50 * time.Millisecond
	}

	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.tx.WithTx(ctx, fn)
		if err != nil && dbpkg.IsSerializationFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *service) logError(ctx context.Context, input Input, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": input.Purchase.ID.String(),
		"commission_id":  input.Commission.ID.String(),
		"affiliate_id":   input.Affiliate.ID.String(),
	})
	s.logg.Error(logCtx, msg, err)
}

func transferFailureReason(err error) string {
	if coded := pkgerrors.As(err); coded != nil {
		return coded.Message()
	}
	return err.Error()
}
