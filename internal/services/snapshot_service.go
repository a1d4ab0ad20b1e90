package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/go-chi/chi/v5"
)

// SnapshotService produces consistent point-in-time views of a campaign for
// polling display clients. Reads are side-effect free and safe at any
// frequency.
type SnapshotService struct {
	db    *sql.DB
	limit int
}

func NewSnapshotService(db *sql.DB, limit int) *SnapshotService {
	if limit <= 0 {
		limit = 100
	}
	return &SnapshotService{db: db, limit: limit}
}

// GetSnapshot returns the campaign and its most recent donations. Both are
// read inside one read-only transaction so the total is never torn from the
// event list.
func (s *SnapshotService) GetSnapshot(ctx context.Context, slugOrID string) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, COALESCE(owner_id::text, ''), slug, name, sub_title, target_amount,
		       ledger_total, manual_offset, currency, theme_color, logo_url, banner_url,
		       donation_methods, display_settings, created_at, updated_at
		FROM campaigns
		WHERE slug = $1 OR id::text = $1`,
		slugOrID)

	var c models.Campaign
	err = row.Scan(&c.ID, &c.OwnerID, &c.Slug, &c.Name, &c.SubTitle, &c.TargetAmount,
		&c.LedgerTotal, &c.ManualOffset, &c.Currency, &c.ThemeColor, &c.LogoURL, &c.BannerURL,
		&c.DonationMethods, &c.DisplaySettings, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, campaign_id, seq, donor_name, amount, dedication, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`,
		c.ID, s.limit)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Snapshot{Campaign: c, Donations: donations}, nil
}

// GetData serves the public poll endpoint for display screens
// @Summary Poll campaign snapshot
// @Description Get a campaign and its most recent donations by slug. Display clients poll this every few seconds.
// @Tags data
// @Produce json
// @Param slug path string true "Campaign slug"
// @Success 200 {object} models.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router /data/{slug} [get]
func (s *SnapshotService) GetData(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		SendErrorResponse(w, "Campaign slug required", http.StatusBadRequest, nil)
		return
	}

	snapshot, err := s.GetSnapshot(r.Context(), slug)
	if errors.Is(err, models.ErrCampaignNotFound) {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SNAPSHOT] Failed to read snapshot for %s: %v", slug, err)
		SendErrorResponse(w, "Failed to read campaign data", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, snapshot)
}
