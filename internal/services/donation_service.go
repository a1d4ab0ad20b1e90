package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/go-chi/chi/v5"
)

// DonationService exposes operator-facing mutation endpoints over the
// ledger. Every response includes the updated campaign aggregate so the
// admin UI never needs a second round trip.
type DonationService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
	retries   int
}

func NewDonationService(db *sql.DB, ledger *LedgerService, retries int) *DonationService {
	if retries <= 0 {
		retries = 3
	}
	return &DonationService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
		retries:   retries,
	}
}

// CreateDonationRequest represents the donation submission payload
// @Description Donation submission structure
type CreateDonationRequest struct {
	CampaignID string `json:"campaignId" validate:"required,uuid4"`
	DonorName  string `json:"donorName" validate:"required,min=1"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Dedication string `json:"dedication"`
}

// AmendDonationRequest represents the donation edit payload. Omitted
// fields keep their current value.
type AmendDonationRequest struct {
	DonorName  *string `json:"donorName" validate:"omitempty,min=1"`
	Amount     *int64  `json:"amount" validate:"omitempty,gt=0"`
	Dedication *string `json:"dedication"`
}

// MutationResponse pairs a donation with the updated campaign aggregate
type MutationResponse struct {
	Success  bool             `json:"success"`
	Donation *models.Donation `json:"donation,omitempty"`
	Campaign *models.Campaign `json:"campaign"`
}

// CreateDonation records a new donation
// @Summary Create a donation
// @Description Record a donation for a campaign and return the updated aggregate
// @Tags donations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDonationRequest true "Donation data"
// @Success 201 {object} MutationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /donations [post]
func (ds *DonationService) CreateDonation(w http.ResponseWriter, r *http.Request) {
	var req CreateDonationRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := ds.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !ds.authorizeCampaign(w, r, req.CampaignID) {
		return
	}

	var donation *models.Donation
	var campaign *models.Campaign
	err := retryMutation(ds.retries, func() error {
		var err error
		donation, campaign, err = ds.ledger.Append(r.Context(), req.CampaignID, req.DonorName, req.Amount, req.Dedication)
		return err
	})
	if errors.Is(err, models.ErrCampaignNotFound) {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[DONATION] Failed to create donation: %v", err)
		SendErrorResponse(w, "Failed to record donation", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusCreated, MutationResponse{Success: true, Donation: donation, Campaign: campaign})
}

// AmendDonation edits an existing donation
// @Summary Amend a donation
// @Description Edit a donation's fields; the amount delta is applied to the campaign total
// @Tags donations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Donation ID"
// @Param request body AmendDonationRequest true "Fields to change"
// @Success 200 {object} MutationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /donations/{id} [put]
func (ds *DonationService) AmendDonation(w http.ResponseWriter, r *http.Request) {
	donationID := chi.URLParam(r, "id")

	var req AmendDonationRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := ds.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !ds.authorizeDonation(w, r, donationID) {
		return
	}

	var donation *models.Donation
	var campaign *models.Campaign
	err := retryMutation(ds.retries, func() error {
		var err error
		donation, campaign, err = ds.ledger.Amend(r.Context(), donationID, AmendFields{
			DonorName:  req.DonorName,
			Amount:     req.Amount,
			Dedication: req.Dedication,
		})
		return err
	})
	if errors.Is(err, models.ErrDonationNotFound) {
		SendErrorResponse(w, "Donation not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[DONATION] Failed to amend donation %s: %v", donationID, err)
		SendErrorResponse(w, "Failed to amend donation", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, MutationResponse{Success: true, Donation: donation, Campaign: campaign})
}

// DeleteDonation removes a donation
// @Summary Delete a donation
// @Description Delete a donation and subtract its amount from the campaign total
// @Tags donations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Donation ID"
// @Success 200 {object} MutationResponse
// @Failure 404 {object} ErrorResponse
// @Router /donations/{id} [delete]
func (ds *DonationService) DeleteDonation(w http.ResponseWriter, r *http.Request) {
	donationID := chi.URLParam(r, "id")

	if !ds.authorizeDonation(w, r, donationID) {
		return
	}

	var campaign *models.Campaign
	err := retryMutation(ds.retries, func() error {
		var err error
		campaign, err = ds.ledger.Remove(r.Context(), donationID)
		return err
	})
	if errors.Is(err, models.ErrDonationNotFound) {
		SendErrorResponse(w, "Donation not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[DONATION] Failed to delete donation %s: %v", donationID, err)
		SendErrorResponse(w, "Failed to delete donation", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, MutationResponse{Success: true, Campaign: campaign})
}

// authorizeCampaign checks that the operator on the request owns the
// campaign. Campaigns without an owner (the provisioned default) are open
// to any authenticated operator.
func (ds *DonationService) authorizeCampaign(w http.ResponseWriter, r *http.Request, campaignID string) bool {
	operatorID, _ := r.Context().Value("operatorID").(string)
	ok, err := campaignOwnedBy(r.Context(), ds.db, campaignID, operatorID)
	if err != nil {
		log.Printf("[DONATION] Ownership check failed for campaign %s: %v", campaignID, err)
		SendErrorResponse(w, "Failed to verify campaign", http.StatusInternalServerError, nil)
		return false
	}
	if !ok {
		SendErrorResponse(w, "Campaign does not belong to this operator", http.StatusForbidden, nil)
		return false
	}
	return true
}

func (ds *DonationService) authorizeDonation(w http.ResponseWriter, r *http.Request, donationID string) bool {
	var campaignID string
	err := ds.db.QueryRowContext(r.Context(), `
		SELECT campaign_id FROM donations WHERE id = $1`, donationID).Scan(&campaignID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Donation not found", http.StatusNotFound, nil)
		return false
	}
	if err != nil {
		log.Printf("[DONATION] Ownership check failed for donation %s: %v", donationID, err)
		SendErrorResponse(w, "Failed to verify donation", http.StatusInternalServerError, nil)
		return false
	}
	return ds.authorizeCampaign(w, r, campaignID)
}

// campaignOwnedBy reports whether operatorID may mutate the campaign
func campaignOwnedBy(ctx context.Context, db *sql.DB, campaignID, operatorID string) (bool, error) {
	var owner string
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(owner_id::text, '') FROM campaigns WHERE id = $1`, campaignID).Scan(&owner)
	if err == sql.ErrNoRows {
		// Let the mutation path report NotFound with full context
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return owner == "" || owner == operatorID, nil
}

// DecodeJSONBody decodes a single JSON object request body, rejecting
// oversized or trailing content. Returns false after writing the error.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	return true
}
