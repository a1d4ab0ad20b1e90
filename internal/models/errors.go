package models

import (
	"errors"
	"fmt"
)

var (
	// ErrCampaignNotFound is returned when a campaign slug or id does not exist
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrDonationNotFound is returned when a donation id does not exist
	ErrDonationNotFound = errors.New("donation not found")
)

// AggregateInconsistencyError reports that a campaign's stored ledger total
// no longer matches the sum of its donation events. This is a fatal
// administrative condition: it must be logged as critical and repaired by a
// reconciliation pass, never swallowed.
type AggregateInconsistencyError struct {
	CampaignID string
	Stored     int64
	Computed   int64
}

func (e *AggregateInconsistencyError) Error() string {
	return fmt.Sprintf("aggregate inconsistency for campaign %s: stored total %d, computed sum %d",
		e.CampaignID, e.Stored, e.Computed)
}
