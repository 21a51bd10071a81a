package handlers

import (
	"io"
	"net/http"
	"strings"

	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/services"
)

const maxPhotoSize = 10 << 20

// PhotoHandler handles profile photo uploads
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
	}
}

// UploadProfilePhoto handles POST /api/v1/me/photo?mode=blob|inline. The
// image is read from the "photo" multipart field or from the raw body.
func (h *PhotoHandler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	data, ok := readPhoto(w, r)
	if !ok {
		return
	}

	var err error
	var user *models.User
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "blob":
		user, err = h.photoService.UploadProfilePhoto(ctx, userID, data)
	case "inline":
		user, err = h.photoService.SetInlinePhoto(ctx, userID, data)
	default:
		respondError(w, "mode must be blob or inline", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondServiceError(w, err, "Failed to store photo")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
			respondError(w, "Invalid multipart body", http.StatusBadRequest)
			return nil, false
		}
		file, _, err := r.FormFile("photo")
		if err != nil {
			respondError(w, "photo field is required", http.StatusBadRequest)
			return nil, false
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		respondError(w, "Failed to read photo", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}
