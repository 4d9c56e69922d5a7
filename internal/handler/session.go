package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/encoder"
	"github.com/kdduha/bgremover/internal/session"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	sessionCookie = "bgremover_session"
	formField     = "image"
)

// formats registered with the image package above; uploads of one of these
// must at least decode their header.
var decodableTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

type SessionHandler struct {
	manager      *session.Manager
	previews     *session.PreviewStore
	maxSize      int64
	allowedTypes []string
	logger       *zap.Logger
}

func NewSessionHandler(manager *session.Manager, previews *session.PreviewStore, cfg config.UploadConfig, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager:      manager,
		previews:     previews,
		maxSize:      cfg.MaxSize,
		allowedTypes: cfg.AllowedTypes,
		logger:       logger,
	}
}

// Index renders the page for the current view state.
func (h *SessionHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	renderIndex(w, ctrl.Snapshot(), h.logger)
}

// State godoc
// @Summary Current view state
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /state [get]
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SelectFile godoc
// @Summary Select the image to process
// @Description Multipart upload of a single image in field "image". Discards any previous result or error.
// @Tags session
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 415 {object} models.ErrorResponse
// @Router /file [post]
func (h *SessionHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	file, header, err := r.FormFile(formField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
			return
		}
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("please upload an image file: %s", err))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	if header.Size > h.maxSize {
		h.fail(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %s", err))
		return
	}

	mimeType, err := h.resolveImageType(header.Header.Get("Content-Type"), data)
	if err != nil {
		h.fail(w, r, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	if decodableTypes[mimeType] {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("corrupt %s image: %s", mimeType, err))
			return
		}
		h.logger.Debug("image uploaded",
			zap.String("filename", header.Filename),
			zap.String("mime_type", mimeType),
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height))
	}

	snap, err := ctrl.SelectFile(header.Filename, data, mimeType)
	if errors.Is(err, session.ErrClosed) {
		// swept between lookup and selection
		snap, err = h.newSession(w).SelectFile(header.Filename, data, mimeType)
	}
	if err != nil {
		h.logger.Error("failed to select file", zap.Error(err))
		h.fail(w, r, http.StatusInternalServerError, "failed to select file, please retry")
		return
	}
	h.respond(w, r, http.StatusOK, snap)
}

// Remove godoc
// @Summary Start background removal for the selected file
// @Description No-op while a removal is running or when no file is selected. With wait=true the call blocks until the outcome is stored.
// @Tags session
// @Produce json
// @Param wait query bool false "Block until finished"
// @Success 200 {object} session.Snapshot
// @Success 202 {object} session.Snapshot
// @Failure 409 {object} session.Snapshot
// @Router /remove [post]
func (h *SessionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)

	// the removal outlives the request that started it
	ctx := context.WithoutCancel(r.Context())

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	var started bool
	if wait {
		started = ctrl.TriggerAction(ctx)
	} else {
		started = ctrl.TriggerActionAsync(ctx)
	}

	status := http.StatusAccepted
	switch {
	case !started:
		status = http.StatusConflict
	case wait:
		status = http.StatusOK
	}
	h.respond(w, r, status, ctrl.Snapshot())
}

// Preview serves the locally held copy of an uploaded file.
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, ok := h.previews.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", p.MIMEType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(p.Data)
}

// Download godoc
// @Summary Download the processed image
// @Tags session
// @Produce png
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /download [get]
func (h *SessionHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)

	d, ok := ctrl.Download()
	if !ok {
		writeError(w, http.StatusNotFound, "no processed image available")
		return
	}

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	_, _ = w.Write(d.Data)
}

func (h *SessionHandler) controller(w http.ResponseWriter, r *http.Request) *session.Controller {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if ctrl, ok := h.manager.Get(c.Value); ok {
			return ctrl
		}
	}

	return h.newSession(w)
}

func (h *SessionHandler) newSession(w http.ResponseWriter) *session.Controller {
	id, ctrl := h.manager.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctrl
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, status int, snap session.Snapshot) {
	if wantsJSON(r) {
		writeJSON(w, status, snap)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.logger.Warn("upload rejected", zap.Int("status", status), zap.String("reason", msg))
	if wantsJSON(r) {
		writeError(w, status, msg)
		return
	}
	http.Error(w, msg, status)
}

func (h *SessionHandler) tooLargeMessage() string {
	return fmt.Sprintf("file exceeds the size limit (%d MB)", h.maxSize/(1<<20))
}

// resolveImageType returns the sniffed type of data. The declared type only
// has to look like an image; the content decides, and must be allowed.
func (h *SessionHandler) resolveImageType(declared string, data []byte) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
		return "", fmt.Errorf("unsupported file type {%s}, only images are accepted", declared)
	}

	detected := encoder.DetectMIMEType(data)
	if !h.isAllowedType(detected) {
		return "", fmt.Errorf("unsupported image content {%s}, allowed: %s", detected, strings.Join(h.allowedTypes, ", "))
	}
	if declared != "" && declared != detected {
		h.logger.Debug("declared type overridden by content",
			zap.String("declared", declared),
			zap.String("detected", detected))
	}
	return detected, nil
}

func (h *SessionHandler) isAllowedType(mimeType string) bool {
	for _, allowed := range h.allowedTypes {
		if strings.EqualFold(mimeType, allowed) {
			return true
		}
	}
	return false
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
