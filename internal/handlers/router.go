package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/semla/internal/app"
)

// NewRouter wires every route of the service.
func NewRouter(service *app.Service) http.Handler {
	cfg := service.Config

	authHandler := NewAuthHandler(service)
	progressHandler := NewProgressHandler(service)
	submissionHandler := NewSubmissionHandler(service)
	adminHandler := NewAdminHandler(service)

	page := RequireSession(service.Guard, true)
	api := RequireSession(service.Guard, false)
	admin := RequireAdmin(service.Admin)

	signupLimiter := NewRateLimiter(cfg.Auth.RateLimitMax, cfg.RateLimitWindow(),
		"Too many login attempts. Please try again later.")
	loginLimiter := NewRateLimiter(cfg.Auth.RateLimitMax, cfg.RateLimitWindow(),
		"Too many login attempts. Please try again in 15 minutes.")

	mux := http.NewServeMux()

	mux.HandleFunc("POST /signup", signupLimiter.Wrap(authHandler.HandleSignup))
	mux.HandleFunc("POST /login", loginLimiter.Wrap(authHandler.HandleLogin))
	mux.HandleFunc("GET /logout", authHandler.HandleLogout)
	mux.HandleFunc("POST /api/password/check", authHandler.HandlePasswordCheck)

	mux.HandleFunc("POST /api/progress", api(progressHandler.HandleSaveProgress))
	mux.HandleFunc("GET /api/progress", progressHandler.HandleListProgress)
	mux.HandleFunc("GET /api/progress/summary", api(progressHandler.HandleProgressSummary))

	mux.HandleFunc("POST /api/submit", api(submissionHandler.HandleSubmit))
	mux.HandleFunc("GET /api/submissions", api(submissionHandler.HandleListSubmissions))

	mux.HandleFunc("GET /dashboard.html", page(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(cfg.Server.PrivateDir, "dashboard.html"))
	}))

	mux.HandleFunc("GET /admin/progress", admin(adminHandler.HandleProgressPage))
	mux.HandleFunc("GET /admin/progress.csv", admin(adminHandler.HandleProgressCSV))
	mux.HandleFunc("GET /admin/progress.xlsx", admin(adminHandler.HandleProgressXLSX))
	mux.HandleFunc("GET /admin/submissions", admin(adminHandler.HandleSubmissionsPage))
	mux.HandleFunc("GET /admin/submissions/{id}/download", admin(adminHandler.HandleDownload))
	mux.HandleFunc("PATCH /admin/submissions/{id}", admin(adminHandler.HandleUpdateSubmission))
	mux.HandleFunc("DELETE /admin/submissions/{id}", admin(adminHandler.HandleDeleteSubmission))
	mux.HandleFunc("DELETE /admin/users/{id}", admin(adminHandler.HandleDeleteUser))
	mux.HandleFunc("GET /admin/users/{id}/stats", admin(adminHandler.HandleUserStats))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /", http.FileServer(http.Dir(cfg.Server.PublicDir)))

	return Instrument(mux)
}
