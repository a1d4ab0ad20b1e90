package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Campaign represents one fundraising effort shown on a live screen
type Campaign struct {
	ID              string          `json:"id" db:"id"`
	OwnerID         string          `json:"owner_id" db:"owner_id"`
	Slug            string          `json:"slug" db:"slug"`
	Name            string          `json:"name" db:"name"`
	SubTitle        string          `json:"subTitle" db:"sub_title"`
	TargetAmount    int64           `json:"targetAmount" db:"target_amount"`
	LedgerTotal     int64           `json:"currentAmount" db:"ledger_total"`
	ManualOffset    int64           `json:"manualStartingAmount" db:"manual_offset"`
	Currency        string          `json:"currency" db:"currency"`
	ThemeColor      string          `json:"themeColor" db:"theme_color"`
	LogoURL         string          `json:"logoUrl" db:"logo_url"`
	BannerURL       string          `json:"bannerUrl" db:"banner_url"`
	DonationMethods DonationMethods `json:"donationMethods" db:"donation_methods"`
	DisplaySettings DisplaySettings `json:"displaySettings" db:"display_settings"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// DisplayTotal is the amount shown on screen: the ledger-derived total
// plus whatever was collected outside the ledger.
func (c *Campaign) DisplayTotal() int64 {
	return c.LedgerTotal + c.ManualOffset
}

// DonationMethod describes one way to donate (QR code, bank transfer text)
type DonationMethod struct {
	MethodType string `json:"methodType"`
	QRCodeURL  string `json:"qrCodeUrl,omitempty"`
	Label      string `json:"label,omitempty"`
	BottomText string `json:"bottomText,omitempty"`
}

// DonationMethods type for JSONB fields
type DonationMethods []DonationMethod

// Value implements driver.Valuer for DonationMethods
func (m DonationMethods) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for DonationMethods
func (m *DonationMethods) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}

// DisplaySettings holds inert presentation config for the live screen
type DisplaySettings struct {
	Scale float64 `json:"scale"`
}

// Value implements driver.Valuer for DisplaySettings
func (s DisplaySettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for DisplaySettings
func (s *DisplaySettings) Scan(value any) error {
	if value == nil {
		*s = DisplaySettings{Scale: 1.0}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, s)
}
