package enums

import "fmt"

// OutboxEventType is the canonical event_type routed through the outbox.
type OutboxEventType string

const (
	EventPurchaseCompleted OutboxEventType = "purchase.completed"
	EventCommissionSettled OutboxEventType = "commission.settled"
	EventCommissionFailed  OutboxEventType = "commission.failed"
	EventContentGranted    OutboxEventType = "content.granted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseCompleted,
	EventCommissionSettled,
	EventCommissionFailed,
	EventContentGranted,
}

// IsValid reports whether the value matches the canonical outbox event type enum.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts the raw string to OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateCommission  OutboxAggregateType = "commission"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregateTransaction,
	AggregateCommission,
}

// IsValid reports whether the value matches the canonical aggregate type enum.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}
