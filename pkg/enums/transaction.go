package enums

import "fmt"

// TransactionType classifies ledger transactions.
type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypeSalePayout TransactionType = "sale_payout"
)

var validTransactionTypes = []TransactionType{
	TransactionTypePurchase,
	TransactionTypeCommission,
	TransactionTypeSalePayout,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts the raw string to TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus tracks the lifecycle of a ledger transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusRefunded,
}

// IsValid reports whether the value matches the canonical transaction status enum.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a final resting state.
func (t TransactionStatus) IsTerminal() bool {
	return t == TransactionStatusCompleted || t == TransactionStatusFailed || t == TransactionStatusRefunded
}

// ParseTransactionStatus converts the raw string to TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// PaymentFlow records who disbursed the funds for a transaction.
type PaymentFlow string

const (
	// PaymentFlowDirect means the buyer's wallet paid the seller directly.
	PaymentFlowDirect PaymentFlow = "direct"
	// PaymentFlowAdmin means the platform custodial wallet disbursed the funds.
	PaymentFlowAdmin PaymentFlow = "admin"
)

var validPaymentFlows = []PaymentFlow{
	PaymentFlowDirect,
	PaymentFlowAdmin,
}

// IsValid reports whether the value matches the canonical payment flow enum.
func (p PaymentFlow) IsValid() bool {
	for _, candidate := range validPaymentFlows {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentFlow converts the raw string to PaymentFlow.
func ParsePaymentFlow(value string) (PaymentFlow, error) {
	for _, candidate := range validPaymentFlows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment flow %q", value)
}
