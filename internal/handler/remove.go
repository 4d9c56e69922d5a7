package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kdduha/bgremover/internal/encoder"
	"github.com/kdduha/bgremover/internal/models"
	"github.com/kdduha/bgremover/internal/session"
	"go.uber.org/zap"
)

type backgroundService interface {
	RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error)
}

type RemoveHandler struct {
	service backgroundService
	logger  *zap.Logger
}

func NewRemoveHandler(service backgroundService, logger *zap.Logger) *RemoveHandler {
	return &RemoveHandler{
		service: service,
		logger:  logger,
	}
}

// RemoveBackground godoc
// @Summary Remove image background
// @Description Sends the image to the configured model and returns a PNG with a transparent background. Image is sent as base64 string in JSON.
// @Tags remove
// @Accept json
// @Produce json
// @Param request body models.RemoveBackgroundRequest true "Remove background request"
// @Success 200 {object} models.RemoveBackgroundResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/v1/remove-background [post]
func (h *RemoveHandler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveBackgroundRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("image_base64 is not valid base64: %s", err))
		return
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = encoder.DetectMIMEType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported content type {%s}", mimeType))
		return
	}

	result, err := h.service.RemoveBackground(r.Context(), req.ImageBase64, mimeType)
	if err != nil {
		h.logger.Error("failed to remove background",
			zap.String("mime_type", mimeType),
			zap.Int("size", len(data)),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, session.FailureMessage)
		return
	}

	writeJSON(w, http.StatusOK, models.RemoveBackgroundResponse{
		ImageBase64: result,
		DataURI:     fmt.Sprintf("data:%s;base64,%s", session.ResultMIMEType, result),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
