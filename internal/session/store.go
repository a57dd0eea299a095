package session

import (
	"context"
	"errors"

	"github.com/labstack/gommon/log"

	"github.com/lachlan2k/vitrine/internal/storage"
)

const (
	tokenKey  = "token"
	userIDKey = "userId"
)

// Authorizer is the shared HTTP client whose Authorization header tracks the stored token.
type Authorizer interface {
	SetBearer(token string)
	ClearBearer()
}

// Store persists the raw session token and the user id. It doesn't look inside the token.
type Store struct {
	backend storage.Backend
	auth    Authorizer
	logger  *log.Logger
}

func NewStore(backend storage.Backend, auth Authorizer, logger *log.Logger) *Store {
	return &Store{backend: backend, auth: auth, logger: logger}
}

// Save writes the token, and the user id only if one is given.
func (s *Store) Save(ctx context.Context, token, userID string) error {
	if err := s.backend.Set(ctx, tokenKey, token); err != nil {
		return err
	}
	if userID != "" {
		if err := s.backend.Set(ctx, userIDKey, userID); err != nil {
			return err
		}
	}

	s.auth.SetBearer(token)
	return nil
}

func (s *Store) Load(ctx context.Context) (string, bool) {
	return s.get(ctx, tokenKey)
}

// Resume loads the stored token and points the HTTP client at it, so the first request
// after a restart goes out authenticated.
func (s *Store) Resume(ctx context.Context) (string, bool) {
	token, ok := s.Load(ctx)
	if ok {
		s.auth.SetBearer(token)
	}
	return token, ok
}

func (s *Store) UserID(ctx context.Context) (string, bool) {
	return s.get(ctx, userIDKey)
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warnf("Couldn't read %s from storage, treating it as absent: %v", key, err)
		}
		return "", false
	}
	return v, v != ""
}

// Clear forgets both keys. The HTTP client stops sending the token even if storage fails.
func (s *Store) Clear(ctx context.Context) error {
	s.auth.ClearBearer()
	return s.backend.Delete(ctx, tokenKey, userIDKey)
}
