package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
)

const maxFormBytes = 1 << 20

type AuthHandler struct {
	service *app.Service
}

func NewAuthHandler(service *app.Service) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// readFields accepts both JSON and urlencoded bodies, like the browser forms send.
func readFields(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	fields := make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, apperrors.Validation("Invalid request body.")
		}
		for _, name := range names {
			switch v := body[name].(type) {
			case nil:
			case string:
				fields[name] = v
			default:
				fields[name] = fmt.Sprint(v)
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, apperrors.Validation("Invalid request body.")
	}
	for _, name := range names {
		fields[name] = r.PostForm.Get(name)
	}
	return fields, nil
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *app.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Guard.CookieName(),
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(h.service.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Guard.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// dropPreviousSession ends whatever session the client arrived with.
func (h *AuthHandler) dropPreviousSession(r *http.Request) {
	id := h.service.Guard.SessionID(r)
	if id == "" {
		return
	}
	if err := h.service.Auth.Logout(r.Context(), id); err != nil {
		logger.Error.Printf("Failed to drop previous session: %v", err)
	}
}

func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "username", "email", "password")
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.Auth.Register(r.Context(), models.SignupRequest{
		Username: fields["username"],
		Email:    fields["email"],
		Password: fields["password"],
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	if res.Outcome == app.AlreadyExists {
		// the client follows the redirect without telling which field collided
		writeJSON(w, http.StatusOK, map[string]string{"redirect": "/login.html"})
		return
	}

	h.dropPreviousSession(r)
	h.setSessionCookie(w, res.Session)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Account created.",
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "username", "password")
	if err != nil {
		fail(w, r, err)
		return
	}

	session, err := h.service.Auth.Authenticate(r.Context(), fields["username"], fields["password"])
	if err != nil {
		fail(w, r, err)
		return
	}

	h.dropPreviousSession(r)
	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged in.",
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.dropPreviousSession(r)
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login.html", http.StatusFound)
}

// HandlePasswordCheck runs the signup password rules without creating anything.
func (h *AuthHandler) HandlePasswordCheck(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, "password")
	if err != nil {
		fail(w, r, err)
		return
	}

	msg := app.CheckPassword(fields["password"])
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   msg == "",
		"message": msg,
	})
}
