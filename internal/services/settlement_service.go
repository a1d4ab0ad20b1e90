package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

// SettlementService exports a campaign's donations as an ISO 20022
// pacs.008 credit transfer batch for bank reconciliation.
type SettlementService struct {
	ledger   *LedgerService
	campaign *CampaignService
}

func NewSettlementService(ledger *LedgerService, campaign *CampaignService) *SettlementService {
	return &SettlementService{ledger: ledger, campaign: campaign}
}

// ExportSettlement renders the campaign's donations as pacs.008 XML
// @Summary Export settlement batch
// @Description Convert a campaign's donations to an ISO 20022 pacs.008 XML batch
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Router /campaigns/{id}/settlement [get]
func (ss *SettlementService) ExportSettlement(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	campaign, err := ss.campaign.getCampaign(r.Context(), campaignID)
	if errors.Is(err, models.ErrCampaignNotFound) {
		SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to read campaign", http.StatusInternalServerError, nil)
		return
	}

	donations, err := ss.ledger.ListByCampaign(r.Context(), campaignID, 10000)
	if err != nil {
		log.Printf("[SETTLEMENT] Failed to list donations for %s: %v", campaignID, err)
		SendErrorResponse(w, "Failed to list donations", http.StatusInternalServerError, nil)
		return
	}

	doc, err := ss.CreatePacs008(r.Context(), campaign, donations)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, map[string]any{
		"status":      "exported",
		"messageType": "pacs.008.001.08",
		"donations":   len(donations),
		"xml":         xmlData,
	})
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer batch with
// one credit transfer per donation.
func (ss *SettlementService) CreatePacs008(ctx context.Context, campaign *models.Campaign, donations []models.Donation) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()

	var total int64
	transfers := make([]pacs_v08.CreditTransferTransaction39, 0, len(donations))
	for i := range donations {
		d := &donations[i]
		total += d.Amount
		transfers = append(transfers, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &[]common.Max35Text{common.Max35Text(d.ID)}[0],
				EndToEndId: common.Max35Text(fmt.Sprintf("%s-%d", campaign.Slug, d.Seq)),
				TxId:       &[]common.Max35Text{common.Max35Text(d.ID)}[0],
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(campaign.Currency),
				Value: float64(d.Amount),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(d.DonorName)}[0],
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(campaign.Name)}[0],
			},
		})
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: common.Max15NumericText(strconv.Itoa(len(donations))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(campaign.Currency),
				Value: float64(total),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: transfers,
	}

	return doc, nil
}

// ConvertToXML converts an ISO 20022 document to an XML string
func (ss *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
