package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/services"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// QRHandler renders QR code images for campaign donation links so the live
// screen can show a scannable code without external image hosting.
type QRHandler struct {
	redis     *redis.Client
	validator *services.ValidationHelper
}

func NewQRHandler(redisClient *redis.Client) *QRHandler {
	return &QRHandler{
		redis:     redisClient,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR renders a QR code PNG for a donation URL
// @Summary Generate QR Code
// @Description Generate a base64 PNG QR code for a campaign donation link
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{url=string,label=string} true "QR generation request"
// @Success 200 {object} object{qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url" validate:"required,url"`
		Label string `json:"label"`
	}

	if !services.DecodeJSONBody(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	qrImage, err := h.renderQR(r.Context(), req.URL)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	services.SendJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"label":   req.Label,
		"qrImage": qrImage,
	})
}

// renderQR encodes the URL as a 256px PNG, caching the result in Redis so
// repeated admin previews do not re-render the same image.
func (h *QRHandler) renderQR(ctx context.Context, url string) (string, error) {
	key := fmt.Sprintf("qr:%s", url)

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, key).Result(); err == nil {
			return cached, nil
		}
	}

	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to build QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", fmt.Errorf("failed to encode QR image: %w", err)
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	if h.redis != nil {
		h.redis.Set(ctx, key, qrImage, 24*time.Hour)
	}

	return qrImage, nil
}
