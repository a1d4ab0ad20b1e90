package models

import "time"

// Donation is one recorded donation event. Events are append-only: they
// belong to exactly one campaign and are destroyed only by an explicit
// delete or a campaign reset.
type Donation struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaignId" db:"campaign_id"`
	// Seq is assigned by the database at insert time and is strictly
	// increasing across all donations. Display clients use it to decide
	// which events they have not seen yet.
	Seq        int64     `json:"seq" db:"seq"`
	DonorName  string    `json:"donorName" db:"donor_name"`
	Amount     int64     `json:"amount" db:"amount"`
	Dedication string    `json:"dedication,omitempty" db:"dedication"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Snapshot is a point-in-time view of a campaign and its most recent
// donations, consistent as of a single observation instant.
type Snapshot struct {
	Campaign  Campaign   `json:"campaign"`
	Donations []Donation `json:"donations"`
}

// Operator is an admin user who enters donations for campaigns they own
type Operator struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
