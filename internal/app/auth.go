// internal/app/auth.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/metrics"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, userID int64) (*Session, error)
	Resolve(ctx context.Context, id string) (int64, error)
	Destroy(ctx context.Context, id string) error
}

type RegisterOutcome int

const (
	Created RegisterOutcome = iota
	// AlreadyExists is a normal outcome: callers redirect to login without saying
	// which field collided.
	AlreadyExists
)

type RegisterResult struct {
	Outcome RegisterOutcome
	User    *models.User
	Session *Session
}

type Authenticator struct {
	users     UserStore
	sessions  SessionStore
	cost      int
	dummyHash []byte
}

func NewAuthenticator(users UserStore, sessions SessionStore, cost int) (*Authenticator, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within %d..%d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	// compared against for unknown users so both failure paths cost the same
	dummy, err := bcrypt.GenerateFromPassword([]byte("semla-no-such-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Authenticator{
		users:     users,
		sessions:  sessions,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

func (a *Authenticator) Register(ctx context.Context, req models.SignupRequest) (*RegisterResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "invalid").Inc()
		return nil, apperrors.Validation(err.Error())
	}
	if msg := CheckPassword(req.Password); msg != "" {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "invalid").Inc()
		return nil, apperrors.Validation(msg)
	}

	existing, err := a.users.FindUserByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug.Printf("Signup collided with existing user %d", existing.ID)
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "exists").Inc()
		return &RegisterResult{Outcome: AlreadyExists}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same name or email
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Debug.Printf("Signup for %s hit a unique constraint", req.Username)
			metrics.AuthAttemptsTotal.WithLabelValues("signup", "exists").Inc()
			return &RegisterResult{Outcome: AlreadyExists}, nil
		}
		return nil, err
	}

	session, err := a.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "created").Inc()
	logger.Info.Printf("Registered user %d (%s)", user.ID, user.Username)

	return &RegisterResult{Outcome: Created, User: user, Session: session}, nil
}

// Authenticate checks a username-or-email identifier and password. Every failure is
// the same InvalidCredentials error.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.Validation("Missing credentials.")
	}

	user, err := a.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	hash := a.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || user == nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, apperrors.InvalidCredentials()
	}

	session, err := a.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	return session, nil
}

func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	return a.sessions.Destroy(ctx, sessionID)
}

// Guard resolves the end-user behind a request's session cookie.
type Guard struct {
	sessions   SessionStore
	cookieName string
}

func NewGuard(sessions SessionStore, cookieName string) *Guard {
	return &Guard{sessions: sessions, cookieName: cookieName}
}

func (g *Guard) CookieName() string {
	return g.cookieName
}

// SessionID returns the raw session id carried by r, "" if none.
func (g *Guard) SessionID(r *http.Request) string {
	c, err := r.Cookie(g.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// UserID returns the authenticated user id or an Unauthenticated error.
func (g *Guard) UserID(r *http.Request) (int64, error) {
	id := g.SessionID(r)
	if id == "" {
		return 0, apperrors.Unauthenticated()
	}
	return g.sessions.Resolve(r.Context(), id)
}
