package enums

import "fmt"

// AffiliateStatus describes whether an affiliate relationship earns commissions.
type AffiliateStatus string

const (
	AffiliateStatusActive    AffiliateStatus = "active"
	AffiliateStatusInactive  AffiliateStatus = "inactive"
	AffiliateStatusSuspended AffiliateStatus = "suspended"
)

var validAffiliateStatuses = []AffiliateStatus{
	AffiliateStatusActive,
	AffiliateStatusInactive,
	AffiliateStatusSuspended,
}

// IsValid reports whether the value matches the canonical affiliate status enum.
func (a AffiliateStatus) IsValid() bool {
	for _, candidate := range validAffiliateStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAffiliateStatus converts the raw string to AffiliateStatus.
func ParseAffiliateStatus(value string) (AffiliateStatus, error) {
	for _, candidate := range validAffiliateStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid affiliate status %q", value)
}

// CommissionStatus tracks whether an affiliate commission has been paid out.
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
	CommissionStatusFailed  CommissionStatus = "failed"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusPaid,
	CommissionStatusFailed,
}

// IsValid reports whether the value matches the canonical commission status enum.
func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts the raw string to CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
