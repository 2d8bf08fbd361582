package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/metrics"
	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/scoring"
)

type ProgressHandler struct {
	service *app.Service
}

func NewProgressHandler(service *app.Service) *ProgressHandler {
	return &ProgressHandler{
		service: service,
	}
}

func (h *ProgressHandler) HandleSaveProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	var data models.Payload
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if _, ok := data["at"]; !ok {
		data["at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	entry := &models.ProgressEntry{UserID: userID, Data: data}
	if err := h.service.Store.CreateProgress(r.Context(), entry); err != nil {
		fail(w, r, err)
		return
	}
	metrics.ProgressEntriesTotal.Inc()
	logger.Debug.Printf("Saved progress entry %d for user %d", entry.ID, userID)

	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// HandleListProgress answers anonymous callers with an empty history instead of a 401,
// the practice page polls it before login.
func (h *ProgressHandler) HandleListProgress(w http.ResponseWriter, r *http.Request) {
	progress := []models.Payload{}

	userID, err := h.service.Guard.UserID(r)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUnauthenticated) {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
		return
	}

	entries, err := h.service.Store.ListProgressByUser(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	for _, e := range entries {
		item := make(models.Payload, len(e.Data)+1)
		for k, v := range e.Data {
			item[k] = v
		}
		item["at"] = e.CreatedAt
		progress = append(progress, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
}

func (h *ProgressHandler) HandleProgressSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	entries, err := h.service.Store.ListProgressByUser(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scoring.Summarize(entries))
}
