package enums

import "fmt"

// ListingStatus describes whether a listing can currently be purchased.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusInactive ListingStatus = "inactive"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusInactive,
}

// IsValid reports whether the value matches the canonical listing status enum.
func (l ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseListingStatus converts the raw string to ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
