package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmoralesdev/contentmint-backend/internal/affiliates"
	"github.com/rmoralesdev/contentmint-backend/internal/ledger"
	"github.com/rmoralesdev/contentmint-backend/pkg/chain"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/db/models"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
	"github.com/rmoralesdev/contentmint-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRail struct {
	balance      decimal.Decimal
	balanceErr   error
	transferErrs map[string]error
	transfers    []chain.TransferRequest
}

func (f *fakeRail) GetBalance(_ context.Context, _, _, _ string) (decimal.Decimal, error) {
	if f.balanceErr != nil {
		return decimal.Zero, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeRail) Transfer(_ context.Context, req chain.TransferRequest) (*chain.TransferResult, error) {
	f.transfers = append(f.transfers, req)
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if err, ok := f.transferErrs[req.IdempotencyKey]; ok && err != nil {
		return nil, err
	}
	return &chain.TransferResult{TxHash: "0xhash-" + req.IdempotencyKey[:8], Success: true}, nil
}

func (f *fakeRail) PlatformWallet() string { return "0xplatform" }
func (f *fakeRail) Network() string        { return "polygon" }
func (f *fakeRail) Token() string          { return "USDC" }

type statusChange struct {
	id     uuid.UUID
	status enums.TransactionStatus
}

type fakeLedgerRepo struct {
	updates []statusChange
}

func (f *fakeLedgerRepo) WithTx(*gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(context.Context, *models.Transaction) error { return nil }

func (f *fakeLedgerRepo) FindByID(context.Context, uuid.UUID) (*models.Transaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (f *fakeLedgerRepo) HasCompletedPurchase(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeLedgerRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.TransactionStatus, _ json.RawMessage) error {
	f.updates = append(f.updates, statusChange{id: id, status: status})
	return nil
}

func (f *fakeLedgerRepo) ListByBuyer(context.Context, uuid.UUID, int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) statusOf(id uuid.UUID) (enums.TransactionStatus, bool) {
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].id == id {
			return f.updates[i].status, true
		}
	}
	return "", false
}

type fakeCommissionRepo struct {
	paid   []uuid.UUID
	failed []uuid.UUID
}

func (f *fakeCommissionRepo) WithTx(*gorm.DB) ledger.CommissionRepository { return f }

func (f *fakeCommissionRepo) Create(context.Context, *models.Commission) error { return nil }

func (f *fakeCommissionRepo) FindByOriginalTransaction(context.Context, uuid.UUID) (*models.Commission, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
}

func (f *fakeCommissionRepo) MarkPaid(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.paid = append(f.paid, id)
	return nil
}

func (f *fakeCommissionRepo) MarkFailed(_ context.Context, id uuid.UUID) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeCommissionRepo) ListByAffiliate(context.Context, uuid.UUID, int) ([]models.Commission, error) {
	return nil, nil
}

type fakeAffiliateRepo struct {
	increments []decimal.Decimal
}

func (f *fakeAffiliateRepo) WithTx(*gorm.DB) affiliates.Repository { return f }

func (f *fakeAffiliateRepo) Create(context.Context, *models.Affiliate) error { return nil }

func (f *fakeAffiliateRepo) FindByID(context.Context, uuid.UUID) (*models.Affiliate, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
}

func (f *fakeAffiliateRepo) FindActiveByListingAndCode(context.Context, uuid.UUID, string) (*models.Affiliate, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "affiliate not found")
}

func (f *fakeAffiliateRepo) ListByListing(context.Context, uuid.UUID, int) ([]models.Affiliate, error) {
	return nil, nil
}

func (f *fakeAffiliateRepo) ListByUser(context.Context, uuid.UUID, int) ([]models.Affiliate, error) {
	return nil, nil
}

func (f *fakeAffiliateRepo) IncrementTotals(_ context.Context, _ uuid.UUID, earned decimal.Decimal) error {
	f.increments = append(f.increments, earned)
	return nil
}

func (f *fakeAffiliateRepo) UpdateStatus(context.Context, uuid.UUID, enums.AffiliateStatus) error {
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type settlementFixture struct {
	rail       *fakeRail
	ledger     *fakeLedgerRepo
	comms      *fakeCommissionRepo
	affs       *fakeAffiliateRepo
	emitter    *fakeEmitter
	service    Service
	input      Input
	payoutTx   *models.Transaction
	commTx     *models.Transaction
	commission *models.Commission
}

func newSettlementFixture(t *testing.T, balance decimal.Decimal) *settlementFixture {
	t.Helper()

	rail := &fakeRail{balance: balance, transferErrs: map[string]error{}}
	ledgerRepo := &fakeLedgerRepo{}
	commRepo := &fakeCommissionRepo{}
	affRepo := &fakeAffiliateRepo{}
	emitter := &fakeEmitter{}
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})

	svc, err := NewService(fakeTxRunner{}, rail, ledgerRepo, commRepo, affRepo, emitter, nil, logg, config.SettlementConfig{
		LedgerRetryAttempts: 2,
		LedgerRetryBase:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	sellerWallet := "0xseller"
	purchase := &models.Transaction{
		ID:     uuid.New(),
		Type:   enums.TransactionTypePurchase,
		Amount: decimal.NewFromInt(100),
		Status: enums.TransactionStatusCompleted,
	}
	commTx := &models.Transaction{
		ID:     uuid.New(),
		Type:   enums.TransactionTypeCommission,
		Amount: decimal.NewFromInt(10),
		Status: enums.TransactionStatusPending,
	}
	payoutTx := &models.Transaction{
		ID:              uuid.New(),
		Type:            enums.TransactionTypeSalePayout,
		Amount:          decimal.NewFromInt(90),
		Status:          enums.TransactionStatusPending,
		RecipientWallet: &sellerWallet,
	}
	commission := &models.Commission{
		ID:                      uuid.New(),
		AffiliateID:             uuid.New(),
		OriginalTransactionID:   purchase.ID,
		CommissionTransactionID: commTx.ID,
		Amount:                  commTx.Amount,
		Status:                  enums.CommissionStatusPending,
	}
	affiliate := &models.Affiliate{
		ID:            commission.AffiliateID,
		WalletAddress: "0xaffiliate",
	}

	return &settlementFixture{
		rail:       rail,
		ledger:     ledgerRepo,
		comms:      commRepo,
		affs:       affRepo,
		emitter:    emitter,
		service:    svc,
		payoutTx:   payoutTx,
		commTx:     commTx,
		commission: commission,
		input: Input{
			Purchase:     purchase,
			CommissionTx: commTx,
			PayoutTx:     payoutTx,
			Commission:   commission,
			Affiliate:    affiliate,
		},
	}
}

func TestSettleSplitPaysBothLegs(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if !outcome.Commission.Settled || !outcome.SellerPayout.Settled {
		t.Fatalf("expected both legs settled: %+v", outcome)
	}
	if len(fx.rail.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(fx.rail.transfers))
	}
	if fx.rail.transfers[0].To != "0xaffiliate" {
		t.Fatalf("commission transfer to wrong wallet: %s", fx.rail.transfers[0].To)
	}
	if fx.rail.transfers[1].To != "0xseller" {
		t.Fatalf("payout transfer to wrong wallet: %s", fx.rail.transfers[1].To)
	}
	if status, _ := fx.ledger.statusOf(fx.commTx.ID); status != enums.TransactionStatusCompleted {
		t.Fatalf("commission tx status %s", status)
	}
	if status, _ := fx.ledger.statusOf(fx.payoutTx.ID); status != enums.TransactionStatusCompleted {
		t.Fatalf("payout tx status %s", status)
	}
	if len(fx.comms.paid) != 1 || fx.comms.paid[0] != fx.commission.ID {
		t.Fatalf("commission not marked paid")
	}
	if len(fx.affs.increments) != 1 || !fx.affs.increments[0].Equal(fx.commission.Amount) {
		t.Fatalf("affiliate totals not incremented with commission amount")
	}
	if len(fx.emitter.events) != 1 || fx.emitter.events[0].EventType != enums.EventCommissionSettled {
		t.Fatalf("expected commission.settled event, got %+v", fx.emitter.events)
	}
}

func TestSettleSplitInsufficientBalanceFailsBothLegsWithoutTransfers(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(5))

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if len(fx.rail.transfers) != 0 {
		t.Fatalf("no transfers should be attempted, got %d", len(fx.rail.transfers))
	}
	if outcome.Commission.Settled || outcome.SellerPayout.Settled {
		t.Fatalf("no leg should settle: %+v", outcome)
	}
	if outcome.Commission.Reason != reasonInsufficientFunds {
		t.Fatalf("unexpected reason %q", outcome.Commission.Reason)
	}
	if status, _ := fx.ledger.statusOf(fx.commTx.ID); status != enums.TransactionStatusFailed {
		t.Fatalf("commission tx status %s", status)
	}
	if status, _ := fx.ledger.statusOf(fx.payoutTx.ID); status != enums.TransactionStatusFailed {
		t.Fatalf("payout tx status %s", status)
	}
	if len(fx.comms.failed) != 1 {
		t.Fatalf("commission should be marked failed")
	}
	if len(fx.affs.increments) != 0 {
		t.Fatalf("affiliate totals must not change on failure")
	}
	if len(fx.emitter.events) != 1 || fx.emitter.events[0].EventType != enums.EventCommissionFailed {
		t.Fatalf("expected commission.failed event")
	}
}

func TestSettleSplitPayoutFailureDoesNotBlockCommission(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.rail.transferErrs[fx.payoutTx.ID.String()] = errors.New("custody rejected transfer")

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if !outcome.Commission.Settled {
		t.Fatalf("commission leg should settle")
	}
	if outcome.SellerPayout.Settled {
		t.Fatalf("payout leg should fail")
	}
	if outcome.SellerPayout.Reason == "" {
		t.Fatalf("payout failure reason missing")
	}
	if status, _ := fx.ledger.statusOf(fx.payoutTx.ID); status != enums.TransactionStatusFailed {
		t.Fatalf("payout tx status %s", status)
	}
	if len(fx.comms.paid) != 1 {
		t.Fatalf("commission should still be marked paid")
	}
}

func TestSettleSplitCommissionFailureStillPaysSeller(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.rail.transferErrs[fx.commTx.ID.String()] = errors.New("custody rejected transfer")

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if outcome.Commission.Settled {
		t.Fatalf("commission leg should fail")
	}
	if !outcome.SellerPayout.Settled {
		t.Fatalf("payout leg should settle")
	}
	if len(fx.rail.transfers) != 2 {
		t.Fatalf("both transfers should be attempted, got %d", len(fx.rail.transfers))
	}
	if len(fx.comms.failed) != 1 {
		t.Fatalf("commission should be marked failed")
	}
	if len(fx.affs.increments) != 0 {
		t.Fatalf("affiliate totals must not change when commission fails")
	}
}

func TestSettleSplitMissingSellerWalletFailsPayoutLeg(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.payoutTx.RecipientWallet = nil

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if outcome.SellerPayout.Settled {
		t.Fatalf("payout leg should fail without a wallet")
	}
	if outcome.SellerPayout.Reason != "seller wallet address missing" {
		t.Fatalf("unexpected reason %q", outcome.SellerPayout.Reason)
	}
	// only the commission transfer goes out
	if len(fx.rail.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(fx.rail.transfers))
	}
}

func TestSettleSplitRejectsSettledInput(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.commTx.Status = enums.TransactionStatusCompleted
	fx.payoutTx.Status = enums.TransactionStatusCompleted

	_, err := fx.service.SettleSplit(context.Background(), fx.input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSettleSplitRejectsIncompleteInput(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.input.Commission = nil

	_, err := fx.service.SettleSplit(context.Background(), fx.input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSettleSplitBalanceErrorRecordsCheckFailure(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.rail.balanceErr = errors.New("custody unavailable")

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}
	if outcome.Commission.Settled || outcome.SellerPayout.Settled {
		t.Fatalf("no leg should settle when the balance is unknown")
	}
	if len(fx.rail.transfers) != 0 {
		t.Fatalf("no transfers should be attempted")
	}
	if !strings.HasPrefix(outcome.Commission.Reason, reasonBalanceUnavailable) {
		t.Fatalf("unexpected reason %q", outcome.Commission.Reason)
	}
	if outcome.Commission.Reason == reasonInsufficientFunds {
		t.Fatalf("balance check failure must not be recorded as insufficient funds")
	}
	if !strings.Contains(outcome.SellerPayout.Reason, "custody unavailable") {
		t.Fatalf("payout reason should carry the check error, got %q", outcome.SellerPayout.Reason)
	}
}

func TestSettleSplitZeroPayoutLegSettlesWithoutTransfer(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.commTx.Amount = fx.input.Purchase.Amount
	fx.commission.Amount = fx.input.Purchase.Amount
	fx.payoutTx.Amount = decimal.Zero

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if !outcome.Commission.Settled || !outcome.SellerPayout.Settled {
		t.Fatalf("expected both legs settled: %+v", outcome)
	}
	// only the commission transfer goes out; the empty seller leg never
	// reaches the rail
	if len(fx.rail.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(fx.rail.transfers))
	}
	if fx.rail.transfers[0].To != "0xaffiliate" {
		t.Fatalf("unexpected transfer to %s", fx.rail.transfers[0].To)
	}
	if outcome.SellerPayout.TxHash != "" {
		t.Fatalf("zero payout leg must not carry a tx hash")
	}
	if outcome.SellerPayout.Reason != "" {
		t.Fatalf("zero payout leg should not record a failure reason, got %q", outcome.SellerPayout.Reason)
	}
	if status, _ := fx.ledger.statusOf(fx.payoutTx.ID); status != enums.TransactionStatusCompleted {
		t.Fatalf("payout tx status %s", status)
	}
}

func TestSettleSplitZeroCommissionLegSettlesWithoutTransfer(t *testing.T) {
	fx := newSettlementFixture(t, decimal.NewFromInt(500))
	fx.commTx.Amount = decimal.Zero
	fx.commission.Amount = decimal.Zero
	fx.payoutTx.Amount = fx.input.Purchase.Amount

	outcome, err := fx.service.SettleSplit(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("settle split: %v", err)
	}

	if !outcome.Commission.Settled || !outcome.SellerPayout.Settled {
		t.Fatalf("expected both legs settled: %+v", outcome)
	}
	if len(fx.rail.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(fx.rail.transfers))
	}
	if fx.rail.transfers[0].To != "0xseller" {
		t.Fatalf("unexpected transfer to %s", fx.rail.transfers[0].To)
	}
	if outcome.Commission.TxHash != "" {
		t.Fatalf("zero commission leg must not carry a tx hash")
	}
	if status, _ := fx.ledger.statusOf(fx.commTx.ID); status != enums.TransactionStatusCompleted {
		t.Fatalf("commission tx status %s", status)
	}
	if len(fx.comms.paid) != 1 || fx.comms.paid[0] != fx.commission.ID {
		t.Fatalf("commission should still be marked paid")
	}
	if len(fx.affs.increments) != 1 || !fx.affs.increments[0].IsZero() {
		t.Fatalf("affiliate totals should record the zero commission")
	}
	if len(fx.emitter.events) != 1 || fx.emitter.events[0].EventType != enums.EventCommissionSettled {
		t.Fatalf("expected commission.settled event, got %+v", fx.emitter.events)
	}
}
