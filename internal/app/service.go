package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/semla/internal/store"
	"github.com/shrimpsizemoose/semla/internal/upload"
)

type Service struct {
	Config   *Config
	Store    store.DataStore
	Sessions *SessionManager
	Auth     *Authenticator
	Guard    *Guard
	Admin    *AdminGate
	Uploads  *upload.Storage
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := NewStore(config.DBConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	sessions, err := ConnectSessions(ctx, config.Sessions.RedisURL, config.Sessions.KeyPrefix, config.SessionTTL())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	svc, err := NewServiceWith(config, st, sessions)
	if err != nil {
		st.Close()
		sessions.Close()
		return nil, err
	}
	return svc, nil
}

// NewServiceWith assembles a service around already opened dependencies.
func NewServiceWith(config *Config, st store.DataStore, sessions *SessionManager) (*Service, error) {
	auth, err := NewAuthenticator(st, sessions, config.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	uploads, err := upload.NewStorage(config.Uploads.Dir, config.Uploads.MaxBytes, config.Uploads.AllowedExtensions)
	if err != nil {
		return nil, fmt.Errorf("failed to init uploads: %w", err)
	}

	return &Service{
		Config:   config,
		Store:    st,
		Sessions: sessions,
		Auth:     auth,
		Guard:    NewGuard(sessions, config.Sessions.CookieName),
		Admin:    NewAdminGate(config.Admin.User, config.Admin.Password),
		Uploads:  uploads,
	}, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}

	return errors.Join(errs...)
}
