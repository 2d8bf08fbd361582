package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/metrics"
	"github.com/shrimpsizemoose/semla/internal/models"
)

// multipart overhead allowed on top of the file size limit
const formSlack = 1 << 20

type SubmissionHandler struct {
	service *app.Service
}

func NewSubmissionHandler(service *app.Service) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
	}
}

func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	uploads := h.service.Uploads

	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxBytes()+formSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "File too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload.")
		return
	}

	req := models.SubmissionRequest{
		Title: strings.TrimSpace(r.FormValue("title")),
		Type:  strings.TrimSpace(r.FormValue("type")),
		Notes: strings.TrimSpace(r.FormValue("notes")),
	}
	if req.Type == "" {
		req.Type = models.DefaultSubmissionType
	}
	if err := req.Validate(); err != nil {
		fail(w, r, apperrors.Validation(err.Error()))
		return
	}

	stored, err := uploads.Save(userID, header)
	if err != nil {
		fail(w, r, err)
		return
	}

	sub := &models.Submission{
		UserID:         userID,
		Title:          req.Title,
		Type:           req.Type,
		Filename:       stored.Filename,
		StoredFilename: stored.StoredFilename,
		Filepath:       stored.Path,
		Status:         models.StatusPending,
	}
	if req.Notes != "" {
		sub.Notes = &req.Notes
	}

	if err := h.service.Store.CreateSubmission(r.Context(), sub); err != nil {
		if rmErr := uploads.Remove(stored.Path); rmErr != nil {
			logger.Error.Printf("Failed to remove orphaned upload %s: %v", stored.Path, rmErr)
		}
		fail(w, r, err)
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(sub.Type).Inc()
	logger.Info.Printf("User %d submitted %q as %s", userID, sub.Title, sub.StoredFilename)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"submission": map[string]any{
			"id":    sub.ID,
			"title": sub.Title,
		},
	})
}

func (h *SubmissionHandler) HandleListSubmissions(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	subs, err := h.service.Store.ListSubmissionsByUser(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}
