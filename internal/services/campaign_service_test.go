package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCampaignService_CreateCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCampaignService(db, NewLedgerService(db))

	t.Run("successful creation", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO campaigns").
			WithArgs(sqlmock.AnyArg(), "op-1", "gala-2026", "Annual Gala", "", int64(50000), "ILS", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(campaignRows(0, 0))

		r := newDonationRequest("POST", "/campaigns", CreateCampaignRequest{
			Slug:         "gala-2026",
			Name:         "Annual Gala",
			TargetAmount: 50000,
		})
		w := httptest.NewRecorder()

		service.CreateCampaign(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var campaign models.Campaign
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &campaign))
		assert.Equal(t, int64(0), campaign.LedgerTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing name rejected", func(t *testing.T) {
		r := newDonationRequest("POST", "/campaigns", CreateCampaignRequest{Slug: "gala-2026"})
		w := httptest.NewRecorder()

		service.CreateCampaign(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCampaignService_UpdateCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCampaignService(db, NewLedgerService(db))

	t.Run("manual offset update leaves the ledger total alone", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectExec("UPDATE campaigns\\s+SET name\\s+= COALESCE").
			WithArgs(testCampaignID, nil, nil, nil, sqlmock.AnyArg(), nil, nil, nil, nil, nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(testCampaignID).
			WillReturnRows(campaignRows(800, 5000))

		offset := int64(5000)
		r := withURLParam(newDonationRequest("PUT", "/campaigns/"+testCampaignID,
			UpdateCampaignRequest{ManualOffset: &offset}), "id", testCampaignID)
		w := httptest.NewRecorder()

		service.UpdateCampaign(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var campaign models.Campaign
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &campaign))
		assert.Equal(t, int64(800), campaign.LedgerTotal)
		assert.Equal(t, int64(5000), campaign.ManualOffset)
		assert.Equal(t, int64(5800), campaign.DisplayTotal())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative manual offset rejected", func(t *testing.T) {
		offset := int64(-100)
		r := withURLParam(newDonationRequest("PUT", "/campaigns/"+testCampaignID,
			UpdateCampaignRequest{ManualOffset: &offset}), "id", testCampaignID)
		w := httptest.NewRecorder()

		service.UpdateCampaign(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown campaign returns 404", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectExec("UPDATE campaigns\\s+SET name\\s+= COALESCE").
			WithArgs(testCampaignID, sqlmock.AnyArg(), nil, nil, nil, nil, nil, nil, nil, nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name := "Renamed"
		r := withURLParam(newDonationRequest("PUT", "/campaigns/"+testCampaignID,
			UpdateCampaignRequest{Name: &name}), "id", testCampaignID)
		w := httptest.NewRecorder()

		service.UpdateCampaign(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCampaignService_ResetCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewCampaignService(db, NewLedgerService(db))

	t.Run("reset returns the zeroed aggregate", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = 0, manual_offset = 0").
			WithArgs(testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM donations WHERE campaign_id = \\$1").
			WithArgs(testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(testCampaignID).
			WillReturnRows(campaignRows(0, 0))
		mock.ExpectCommit()

		r := withURLParam(newDonationRequest("POST", "/campaigns/"+testCampaignID+"/reset", nil), "id", testCampaignID)
		w := httptest.NewRecorder()

		service.ResetCampaign(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp MutationResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(0), resp.Campaign.LedgerTotal)
		assert.Equal(t, int64(0), resp.Campaign.ManualOffset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown campaign returns 404", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = 0, manual_offset = 0").
			WithArgs(testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		r := withURLParam(newDonationRequest("POST", "/campaigns/"+testCampaignID+"/reset", nil), "id", testCampaignID)
		w := httptest.NewRecorder()

		service.ResetCampaign(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
