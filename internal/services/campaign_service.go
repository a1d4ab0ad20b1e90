package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CampaignService manages campaign provisioning and settings. Settings
// updates never touch ledger_total: only the ledger service mutates the
// aggregate.
type CampaignService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewCampaignService(db *sql.DB, ledger *LedgerService) *CampaignService {
	return &CampaignService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateCampaignRequest represents campaign provisioning payload
type CreateCampaignRequest struct {
	Slug         string `json:"slug" validate:"required,min=2,max=64"`
	Name         string `json:"name" validate:"required,min=2"`
	SubTitle     string `json:"subTitle"`
	TargetAmount int64  `json:"targetAmount" validate:"gte=0"`
	Currency     string `json:"currency"`
}

// UpdateCampaignRequest carries the operator-editable settings. Omitted
// fields keep their current value. LedgerTotal is deliberately absent.
type UpdateCampaignRequest struct {
	Name            *string                 `json:"name" validate:"omitempty,min=2"`
	SubTitle        *string                 `json:"subTitle"`
	TargetAmount    *int64                  `json:"targetAmount" validate:"omitempty,gte=0"`
	ManualOffset    *int64                  `json:"manualStartingAmount" validate:"omitempty,gte=0"`
	Currency        *string                 `json:"currency"`
	ThemeColor      *string                 `json:"themeColor"`
	LogoURL         *string                 `json:"logoUrl"`
	BannerURL       *string                 `json:"bannerUrl"`
	DonationMethods models.DonationMethods  `json:"donationMethods"`
	DisplaySettings *models.DisplaySettings `json:"displaySettings"`
}

// CreateCampaign provisions a new campaign owned by the operator
// @Summary Create a campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCampaignRequest true "Campaign data"
// @Success 201 {object} models.Campaign
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /campaigns [post]
func (cs *CampaignService) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	operatorID, _ := r.Context().Value("operatorID").(string)
	currency := req.Currency
	if currency == "" {
		currency = "ILS"
	}

	id := uuid.New().String()
	_, err := cs.db.ExecContext(r.Context(), `
		INSERT INTO campaigns (id, owner_id, slug, name, sub_title, target_amount, currency, display_settings)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8)`,
		id, operatorID, req.Slug, req.Name, req.SubTitle, req.TargetAmount, currency,
		models.DisplaySettings{Scale: 1.0})
	if err != nil {
		log.Printf("[CAMPAIGN] Failed to create campaign %s: %v", req.Slug, err)
		SendErrorResponse(w, "Failed to create campaign (slug may already exist)", http.StatusConflict, nil)
		return
	}

	campaign, err := cs.getCampaign(r.Context(), id)
	if err != nil {
		SendErrorResponse(w, "Failed to read created campaign", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CAMPAIGN] Created campaign %s (%s)", req.Slug, id)
	SendJSONResponse(w, http.StatusCreated, campaign)
}

// GetCampaign returns a campaign by id for the admin dashboard
// @Summary Get a campaign
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.Campaign
// @Failure 404 {object} ErrorResponse
// @Router /campaigns/{id} [get]
func (cs *CampaignService) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	campaign, err := cs.getCampaign(r.Context(), campaignID)
	if errors.Is(err, models.ErrCampaignNotFound) {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CAMPAIGN] Failed to read campaign %s: %v", campaignID, err)
		SendErrorResponse(w, "Failed to read campaign", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, campaign)
}

// UpdateCampaign updates campaign settings without ledger side effects
// @Summary Update campaign settings
// @Description Update presentation fields, target, and manual starting amount. Never touches the ledger total.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Param request body UpdateCampaignRequest true "Settings to change"
// @Success 200 {object} models.Campaign
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /campaigns/{id} [put]
func (cs *CampaignService) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	var req UpdateCampaignRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !cs.authorize(w, r, campaignID) {
		return
	}

	res, err := cs.db.ExecContext(r.Context(), `
		UPDATE campaigns
		SET name             = COALESCE($2, name),
		    sub_title        = COALESCE($3, sub_title),
		    target_amount    = COALESCE($4, target_amount),
		    manual_offset    = COALESCE($5, manual_offset),
		    currency         = COALESCE($6, currency),
		    theme_color      = COALESCE($7, theme_color),
		    logo_url         = COALESCE($8, logo_url),
		    banner_url       = COALESCE($9, banner_url),
		    donation_methods = COALESCE($10, donation_methods),
		    display_settings = COALESCE($11, display_settings),
		    updated_at       = now()
		WHERE id = $1`,
		campaignID, req.Name, req.SubTitle, req.TargetAmount, req.ManualOffset,
		req.Currency, req.ThemeColor, req.LogoURL, req.BannerURL,
		req.DonationMethods, req.DisplaySettings)
	if err != nil {
		log.Printf("[CAMPAIGN] Failed to update campaign %s: %v", campaignID, err)
		SendErrorResponse(w, "Failed to update campaign", http.StatusInternalServerError, nil)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}

	campaign, err := cs.getCampaign(r.Context(), campaignID)
	if err != nil {
		SendErrorResponse(w, "Failed to read updated campaign", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, campaign)
}

// ResetCampaign purges all donations and zeroes the totals
// @Summary Reset a campaign
// @Description Delete all donations and zero the ledger total and manual starting amount
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} MutationResponse
// @Failure 404 {object} ErrorResponse
// @Router /campaigns/{id}/reset [post]
func (cs *CampaignService) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	if !cs.authorize(w, r, campaignID) {
		return
	}

	campaign, err := cs.ledger.Reset(r.Context(), campaignID)
	if errors.Is(err, models.ErrCampaignNotFound) {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CAMPAIGN] CRITICAL: reset failed for campaign %s: %v", campaignID, err)
		// A half-applied reset would leave the aggregate inconsistent;
		// run a reconciliation pass before reporting failure.
		if recErr := cs.ledger.Reconcile(context.Background(), campaignID); recErr != nil {
			log.Printf("[CAMPAIGN] Reconciliation after failed reset: %v", recErr)
		}
		SendErrorResponse(w, "Failed to reset campaign", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, MutationResponse{Success: true, Campaign: campaign})
}

func (cs *CampaignService) authorize(w http.ResponseWriter, r *http.Request, campaignID string) bool {
	operatorID, _ := r.Context().Value("operatorID").(string)
	ok, err := campaignOwnedBy(r.Context(), cs.db, campaignID, operatorID)
	if err != nil {
		log.Printf("[CAMPAIGN] Ownership check failed for %s: %v", campaignID, err)
		SendErrorResponse(w, "Failed to verify campaign", http.StatusInternalServerError, nil)
		return false
	}
	if !ok {
		SendErrorResponse(w, "Campaign does not belong to this operator", http.StatusForbidden, nil)
		return false
	}
	return true
}

func (cs *CampaignService) getCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	row := cs.db.QueryRowContext(ctx, `
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

// EnsureDefaultCampaign provisions a demo campaign on first boot so a fresh
// install has a working live screen.
func EnsureDefaultCampaign(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM campaigns`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := db.Exec(`
		INSERT INTO campaigns (id, slug, name, sub_title, target_amount, currency, display_settings)
		VALUES ($1, 'demo', 'Live Fundraising Campaign', 'Help us reach the goal!', 100000, 'ILS', $2)`,
		uuid.New().String(), models.DisplaySettings{Scale: 1.0})
	if err != nil {
		return err
	}

	log.Println("[CAMPAIGN] Default campaign created")
	return nil
}
