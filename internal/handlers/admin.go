package handlers

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"github.com/xuri/excelize/v2"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/scoring"
)

//go:embed templates/*.html
var templateFS embed.FS

var adminTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var progressColumns = []any{"userId", "username", "email", "at", "itemsCount", "itemsJson"}

type AdminHandler struct {
	service *app.Service
}

func NewAdminHandler(service *app.Service) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

type progressRow struct {
	At      time.Time
	Items   int
	Details string
}

type progressGroup struct {
	UserID   int64
	Username string
	Email    string
	Entries  []progressRow
}

// groupProgress keeps users in the order their newest entry appears.
func groupProgress(entries []models.ProgressWithOwner) []*progressGroup {
	var groups []*progressGroup
	byUser := make(map[int64]*progressGroup)

	for _, e := range entries {
		g, ok := byUser[e.UserID]
		if !ok {
			g = &progressGroup{UserID: e.UserID, Username: e.Username, Email: e.Email}
			byUser[e.UserID] = g
			groups = append(groups, g)
		}

		details, err := json.MarshalIndent(e.Data, "", "  ")
		if err != nil {
			details = []byte("{}")
		}
		g.Entries = append(g.Entries, progressRow{
			At:      e.CreatedAt,
			Items:   scoring.ItemCount(e.Data),
			Details: string(details),
		})
	}
	return groups
}

func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := adminTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error.Printf("Failed to render %s: %v", name, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (h *AdminHandler) HandleProgressPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Store.ListUsers(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	entries, err := h.service.Store.ListProgress(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	h.render(w, r, "progress.html", map[string]any{
		"UserCount": len(users),
		"Groups":    groupProgress(entries),
	})
}

// progressRecord is one export row: the raw items value goes out as JSON, [] when absent.
func progressRecord(e models.ProgressWithOwner) []any {
	items, ok := e.Data["items"]
	if !ok || items == nil {
		items = []any{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		itemsJSON = []byte("[]")
	}
	return []any{
		e.UserID,
		e.Username,
		e.Email,
		e.CreatedAt.UTC().Format(time.RFC3339),
		scoring.ItemCount(e.Data),
		string(itemsJSON),
	}
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

func (h *AdminHandler) HandleProgressCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Store.ListProgress(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	header := make([]string, len(progressColumns))
	for i, c := range progressColumns {
		header[i] = c.(string)
	}
	cw.Write(header)
	for _, e := range entries {
		rec := progressRecord(e)
		row := make([]string, len(rec))
		for i, v := range rec {
			switch v := v.(type) {
			case string:
				row[i] = v
			case int:
				row[i] = strconv.Itoa(v)
			case int64:
				row[i] = strconv.FormatInt(v, 10)
			}
		}
		cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Error.Printf("Failed to build progress CSV: %v", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	attachment(w, "text/csv", "progress.csv")
	buf.WriteTo(w)
}

func buildProgressWorkbook(entries []models.ProgressWithOwner) (*excelize.File, error) {
	f := excelize.NewFile()

	const sheet = "Progress"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	header := append([]any(nil), progressColumns...)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := progressRecord(e)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(summary, "A1", &[]any{"userId", "username", "email", "entries", "totalAttempts", "correct"}); err != nil {
		return nil, err
	}

	var order []int64
	perUser := make(map[int64][]models.ProgressEntry)
	owners := make(map[int64]models.ProgressWithOwner)
	for _, e := range entries {
		if _, ok := perUser[e.UserID]; !ok {
			order = append(order, e.UserID)
			owners[e.UserID] = e
		}
		perUser[e.UserID] = append(perUser[e.UserID], e.ProgressEntry)
	}
	for i, id := range order {
		s := scoring.Summarize(perUser[id])
		owner := owners[id]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summary, cell, &[]any{id, owner.Username, owner.Email, s.Entries, s.TotalAttempts, s.Correct}); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func (h *AdminHandler) HandleProgressXLSX(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Store.ListProgress(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	f, err := buildProgressWorkbook(entries)
	if err != nil {
		logger.Error.Printf("Failed to build progress workbook: %v", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		logger.Error.Printf("Failed to write progress workbook: %v", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "progress.xlsx")
	buf.WriteTo(w)
}

func (h *AdminHandler) HandleSubmissionsPage(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.Store.ListSubmissions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	h.render(w, r, "submissions.html", map[string]any{
		"Submissions": subs,
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("Invalid id.")
	}
	return id, nil
}

func (h *AdminHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Store.GetSubmission(r.Context(), id)
	if err != nil {
		logger.Error.Printf("Failed to load submission %d: %v", id, err)
		http.Error(w, "Server error", statusFor(err))
		return
	}
	if sub == nil {
		http.Error(w, "Submission not found", http.StatusNotFound)
		return
	}

	file, err := os.Open(h.service.Uploads.Locate(sub.StoredFilename))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	name := sub.Filename
	if name == "" {
		name = "submission"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (h *AdminHandler) HandleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	var patch models.SubmissionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := patch.Validate(); err != nil {
		fail(w, r, apperrors.Validation(err.Error()))
		return
	}
	if patch.Update().Empty() {
		writeError(w, http.StatusBadRequest, "Nothing to update.")
		return
	}

	sub, err := h.service.Store.UpdateSubmission(r.Context(), id, patch.Update())
	if err != nil {
		fail(w, r, err)
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Submission not found.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"submission": sub})
}

func (h *AdminHandler) HandleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	sub, err := h.service.Store.DeleteSubmission(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Submission not found.")
		return
	}

	if err := h.service.Uploads.Remove(sub.StoredFilename); err != nil {
		logger.Error.Printf("Failed to remove file of submission %d: %v", id, err)
	}
	logger.Info.Printf("Deleted submission %d (%s)", id, sub.StoredFilename)

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	paths, err := h.service.Store.DeleteUser(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	revoked, err := h.service.Sessions.DestroyUser(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	removed := 0
	for _, p := range paths {
		if err := h.service.Uploads.Remove(p); err != nil {
			logger.Error.Printf("Failed to remove file %s of user %d: %v", p, id, err)
			continue
		}
		removed++
	}
	logger.Info.Printf("Deleted user %d with %d files, revoked %d sessions", id, removed, revoked)

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "files": removed})
}

func (h *AdminHandler) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	stats, err := h.service.Store.GetUserStats(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
