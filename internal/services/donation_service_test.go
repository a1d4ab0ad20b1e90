package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

const testDonationID = "9be0a1d2-3c4d-4e5f-8a9b-0c1d2e3f4a5b"

func newDonationRequest(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	r := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	return r.WithContext(context.WithValue(r.Context(), "operatorID", "op-1"))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func expectOwnershipCheck(mock sqlmock.Sqlmock, owner string) {
	mock.ExpectQuery("SELECT COALESCE\\(owner_id::text, ''\\) FROM campaigns WHERE id = \\$1").
		WithArgs(testCampaignID).
		WillReturnRows(sqlmock.NewRows([]string{"owner"}).AddRow(owner))
}

func TestDonationService_CreateDonation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewDonationService(db, NewLedgerService(db), 1)

	t.Run("successful create returns donation and aggregate", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = ledger_total \\+ \\$1").
			WithArgs(int64(500), testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO donations").
			WithArgs(sqlmock.AnyArg(), testCampaignID, "Rivka Levy", int64(500), "In memory of Saba").
			WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(12, time.Now()))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(testCampaignID).
			WillReturnRows(campaignRows(500, 0))
		mock.ExpectCommit()

		r := newDonationRequest("POST", "/donations", CreateDonationRequest{
			CampaignID: testCampaignID,
			DonorName:  "Rivka Levy",
			Amount:     500,
			Dedication: "In memory of Saba",
		})
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp MutationResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(500), resp.Donation.Amount)
		assert.Equal(t, int64(12), resp.Donation.Seq)
		assert.Equal(t, int64(500), resp.Campaign.LedgerTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount rejected with no state change", func(t *testing.T) {
		r := newDonationRequest("POST", "/donations", CreateDonationRequest{
			CampaignID: testCampaignID,
			DonorName:  "Rivka Levy",
			Amount:     0,
		})
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing donor name rejected", func(t *testing.T) {
		r := newDonationRequest("POST", "/donations", CreateDonationRequest{
			CampaignID: testCampaignID,
			Amount:     100,
		})
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown campaign returns 404", func(t *testing.T) {
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = ledger_total \\+ \\$1").
			WithArgs(int64(100), testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		r := newDonationRequest("POST", "/donations", CreateDonationRequest{
			CampaignID: testCampaignID,
			DonorName:  "Rivka Levy",
			Amount:     100,
		})
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign campaign is forbidden", func(t *testing.T) {
		expectOwnershipCheck(mock, "someone-else")

		r := newDonationRequest("POST", "/donations", CreateDonationRequest{
			CampaignID: testCampaignID,
			DonorName:  "Rivka Levy",
			Amount:     100,
		})
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/donations", bytes.NewBufferString("not json"))
		w := httptest.NewRecorder()

		service.CreateDonation(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDonationService_AmendDonation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewDonationService(db, NewLedgerService(db), 1)

	t.Run("amend updates donation and total", func(t *testing.T) {
		mock.ExpectQuery("SELECT campaign_id FROM donations WHERE id = \\$1").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}).AddRow(testCampaignID))
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT campaign_id, amount FROM donations WHERE id = \\$1 FOR UPDATE").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "amount"}).AddRow(testCampaignID, 100))
		mock.ExpectQuery("UPDATE donations").
			WithArgs(testDonationID, nil, sqlmock.AnyArg(), nil).
			WillReturnRows(sqlmock.NewRows([]string{"seq", "donor_name", "amount", "dedication", "created_at"}).
				AddRow(4, "Rivka Levy", 250, "", time.Now()))
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = ledger_total \\+ \\$1").
			WithArgs(int64(150), testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(testCampaignID).
			WillReturnRows(campaignRows(250, 0))
		mock.ExpectCommit()

		amount := int64(250)
		r := withURLParam(newDonationRequest("PUT", "/donations/"+testDonationID,
			AmendDonationRequest{Amount: &amount}), "id", testDonationID)
		w := httptest.NewRecorder()

		service.AmendDonation(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp MutationResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(250), resp.Donation.Amount)
		assert.Equal(t, int64(250), resp.Campaign.LedgerTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		amount := int64(0)
		r := withURLParam(newDonationRequest("PUT", "/donations/"+testDonationID,
			AmendDonationRequest{Amount: &amount}), "id", testDonationID)
		w := httptest.NewRecorder()

		service.AmendDonation(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing donation returns 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT campaign_id FROM donations WHERE id = \\$1").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

		name := "New Name"
		r := withURLParam(newDonationRequest("PUT", "/donations/"+testDonationID,
			AmendDonationRequest{DonorName: &name}), "id", testDonationID)
		w := httptest.NewRecorder()

		service.AmendDonation(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDonationService_DeleteDonation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewDonationService(db, NewLedgerService(db), 1)

	t.Run("delete subtracts the amount", func(t *testing.T) {
		mock.ExpectQuery("SELECT campaign_id FROM donations WHERE id = \\$1").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}).AddRow(testCampaignID))
		expectOwnershipCheck(mock, "")

		mock.ExpectBegin()
		mock.ExpectQuery("DELETE FROM donations WHERE id = \\$1 RETURNING campaign_id, amount").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "amount"}).AddRow(testCampaignID, 500))
		mock.ExpectExec("UPDATE campaigns\\s+SET ledger_total = ledger_total \\+ \\$1").
			WithArgs(int64(-500), testCampaignID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, COALESCE\\(owner_id::text, ''\\), slug, name").
			WithArgs(testCampaignID).
			WillReturnRows(campaignRows(0, 0))
		mock.ExpectCommit()

		r := withURLParam(newDonationRequest("DELETE", "/donations/"+testDonationID, nil), "id", testDonationID)
		w := httptest.NewRecorder()

		service.DeleteDonation(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp MutationResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Donation)
		assert.Equal(t, int64(0), resp.Campaign.LedgerTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing donation returns 404 before any mutation", func(t *testing.T) {
		mock.ExpectQuery("SELECT campaign_id FROM donations WHERE id = \\$1").
			WithArgs(testDonationID).
			WillReturnRows(sqlmock.NewRows([]string{"campaign_id"}))

		r := withURLParam(newDonationRequest("DELETE", "/donations/"+testDonationID, nil), "id", testDonationID)
		w := httptest.NewRecorder()

		service.DeleteDonation(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
