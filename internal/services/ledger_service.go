package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/google/uuid"
)

// LedgerService owns every mutation of the donation ledger. Each operation
// runs in a single database transaction and adjusts the campaign's
// ledger_total with a storage-level increment, so the total always equals
// the sum of the campaign's non-deleted donations and concurrent operator
// submissions cannot lose updates.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// errAmountNotPositive is a guard behind the handler-level validation
var errAmountNotPositive = errors.New("donation amount must be positive")

// Append records a new donation and increments the campaign total
func (s *LedgerService) Append(ctx context.Context, campaignID, donorName string, amount int64, dedication string) (*models.Donation, *models.Campaign, error) {
	if amount <= 0 {
		return nil, nil, errAmountNotPositive
	}
	if donorName == "" {
		return nil, nil, errors.New("donor name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	// Increment first: this locks the campaign row and proves it exists
	// before the event is written.
	if err := s.adjustTotal(ctx, tx, campaignID, amount); err != nil {
		return nil, nil, err
	}

	donation := &models.Donation{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		DonorName:  donorName,
		Amount:     amount,
		Dedication: dedication,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO donations (id, campaign_id, donor_name, amount, dedication, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING seq, created_at`,
		donation.ID, donation.CampaignID, donation.DonorName, donation.Amount, donation.Dedication,
	).Scan(&donation.Seq, &donation.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert donation: %w", err)
	}

	campaign, err := scanCampaignTx(ctx, tx, campaignID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit donation: %w", err)
	}

	log.Printf("[LEDGER] Appended donation %s (%d) to campaign %s, total now %d",
		donation.ID, donation.Amount, campaignID, campaign.LedgerTotal)
	return donation, campaign, nil
}

// AmendFields carries the editable fields of a donation. Nil means keep
// the current value.
type AmendFields struct {
	DonorName  *string
	Amount     *int64
	Dedication *string
}

// Amend edits a donation and applies the amount delta to the campaign total
func (s *LedgerService) Amend(ctx context.Context, donationID string, fields AmendFields) (*models.Donation, *models.Campaign, error) {
	if fields.Amount != nil && *fields.Amount <= 0 {
		return nil, nil, errAmountNotPositive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var campaignID string
	var oldAmount int64
	err = tx.QueryRowContext(ctx, `
		SELECT campaign_id, amount FROM donations WHERE id = $1 FOR UPDATE`,
		donationID,
	).Scan(&campaignID, &oldAmount)
	if err == sql.ErrNoRows {
		return nil, nil, models.ErrDonationNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	donation := &models.Donation{ID: donationID, CampaignID: campaignID}
	err = tx.QueryRowContext(ctx, `
		UPDATE donations
		SET donor_name = COALESCE($2, donor_name),
		    amount     = COALESCE($3, amount),
		    dedication = COALESCE($4, dedication)
		WHERE id = $1
		RETURNING seq, donor_name, amount, dedication, created_at`,
		donationID, fields.DonorName, fields.Amount, fields.Dedication,
	).Scan(&donation.Seq, &donation.DonorName, &donation.Amount, &donation.Dedication, &donation.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to amend donation: %w", err)
	}

	if delta := donation.Amount - oldAmount; delta != 0 {
		if err := s.adjustTotal(ctx, tx, campaignID, delta); err != nil {
			return nil, nil, err
		}
	}

	campaign, err := scanCampaignTx(ctx, tx, campaignID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit amendment: %w", err)
	}

	log.Printf("[LEDGER] Amended donation %s (%d -> %d) on campaign %s",
		donationID, oldAmount, donation.Amount, campaignID)
	return donation, campaign, nil
}

// Remove deletes a donation and subtracts its amount from the campaign total
func (s *LedgerService) Remove(ctx context.Context, donationID string) (*models.Campaign, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var campaignID string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		DELETE FROM donations WHERE id = $1 RETURNING campaign_id, amount`,
		donationID,
	).Scan(&campaignID, &amount)
	if err == sql.ErrNoRows {
		return nil, models.ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.adjustTotal(ctx, tx, campaignID, -amount); err != nil {
		return nil, err
	}

	campaign, err := scanCampaignTx(ctx, tx, campaignID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit removal: %w", err)
	}

	log.Printf("[LEDGER] Removed donation %s (%d) from campaign %s", donationID, amount, campaignID)
	return campaign, nil
}

// Reset purges all donations for a campaign and zeroes its ledger total and
// manual offset as one logical operation. Resetting an already-empty
// campaign is a no-op, not an error.
func (s *LedgerService) Reset(ctx context.Context, campaignID string) (*models.Campaign, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET ledger_total = 0, manual_offset = 0, updated_at = now()
		WHERE id = $1`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to zero campaign total: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrCampaignNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM donations WHERE campaign_id = $1`, campaignID); err != nil {
		return nil, fmt.Errorf("failed to purge donations: %w", err)
	}

	campaign, err := scanCampaignTx(ctx, tx, campaignID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		// The purge and the zeroing either both committed or neither did,
		// but a failure here still leaves the operator without confirmation.
		return nil, fmt.Errorf("failed to commit reset: %w", err)
	}

	log.Printf("[LEDGER] Reset campaign %s", campaignID)
	return campaign, nil
}

// ListByCampaign returns donations ordered newest first. Two donations
// sharing a timestamp are ordered by insertion sequence so the ordering
// is deterministic.
func (s *LedgerService) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]models.Donation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, seq, donor_name, amount, dedication, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`,
		campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Seq, &d.DonorName, &d.Amount, &d.Dedication, &d.CreatedAt); err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

// Reconcile recomputes the sum of a campaign's donations and repairs the
// stored total if it drifted. A drift is a fatal administrative condition:
// it is logged as critical and reported to the caller as an
// AggregateInconsistencyError even after the repair succeeds.
func (s *LedgerService) Reconcile(ctx context.Context, campaignID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `
		SELECT ledger_total FROM campaigns WHERE id = $1 FOR UPDATE`,
		campaignID,
	).Scan(&stored)
	if err == sql.ErrNoRows {
		return models.ErrCampaignNotFound
	}
	if err != nil {
		return err
	}

	var computed int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = $1`,
		campaignID,
	).Scan(&computed)
	if err != nil {
		return err
	}

	if stored == computed {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET ledger_total = $2, updated_at = now() WHERE id = $1`,
		campaignID, computed); err != nil {
		return fmt.Errorf("failed to repair ledger total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit repair: %w", err)
	}

	incErr := &models.AggregateInconsistencyError{CampaignID: campaignID, Stored: stored, Computed: computed}
	log.Printf("[LEDGER] CRITICAL: %v (repaired)", incErr)
	return incErr
}

// adjustTotal applies a delta to the campaign total at the storage layer.
// Never read-modify-write: concurrent submissions must not lose updates.
func (s *LedgerService) adjustTotal(ctx context.Context, tx *sql.Tx, campaignID string, delta int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET ledger_total = ledger_total + $1, updated_at = now()
		WHERE id = $2`,
		delta, campaignID)
	if err != nil {
		return fmt.Errorf("failed to adjust campaign total: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCampaignNotFound
	}
	return nil
}

// scanCampaignTx reads the campaign row inside the mutation transaction so
// the returned aggregate reflects the mutation that was just applied.
func scanCampaignTx(ctx context.Context, tx *sql.Tx, campaignID string) (*models.Campaign, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, COALESCE(owner_id::text, ''), slug, name, sub_title, target_amount,
		       ledger_total, manual_offset, currency, theme_color, logo_url, banner_url,
		       donation_methods, display_settings, created_at, updated_at
		FROM campaigns WHERE id = $1`,
		campaignID)

	var c models.Campaign
	err := row.Scan(&c.ID, &c.OwnerID, &c.Slug, &c.Name, &c.SubTitle, &c.TargetAmount,
		&c.LedgerTotal, &c.ManualOffset, &c.Currency, &c.ThemeColor, &c.LogoURL, &c.BannerURL,
		&c.DonationMethods, &c.DisplaySettings, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// retryMutation retries fn a small fixed number of times on transient
// storage errors. Sentinel domain errors are never retried; once the
// attempts run out the last error is surfaced so the submission fails
// loudly instead of being silently lost or double-applied.
func retryMutation(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrCampaignNotFound) ||
			errors.Is(err, models.ErrDonationNotFound) ||
			errors.Is(err, errAmountNotPositive) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}
