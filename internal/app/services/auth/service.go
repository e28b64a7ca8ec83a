package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	domainuser "habita/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMalformedKey       = errors.New("auth: api key must look like <user-id>.<secret>")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Service resolves API keys issued out of band into request actors.
type Service struct {
	Users  domainuser.Repository
	Keys   PasswordHasher
	Logger *slog.Logger
}

// Resolve verifies a "<user-id>.<secret>" key against the stored bcrypt hash.
func (s *Service) Resolve(ctx context.Context, key string) (domainuser.Actor, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || id == "" || secret == "" {
		return domainuser.Actor{}, ErrMalformedKey
	}
	if s.Users == nil || s.Keys == nil {
		return domainuser.Actor{}, ErrInvalidCredentials
	}
	user, err := s.Users.ByID(ctx, domainuser.ID(id))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return domainuser.Actor{}, ErrInvalidCredentials
		}
		return domainuser.Actor{}, err
	}
	if err := s.Keys.Compare(user.KeyHash, secret); err != nil {
		if s.Logger != nil {
			s.Logger.DebugContext(ctx, "api key rejected", "user_id", id)
		}
		return domainuser.Actor{}, ErrInvalidCredentials
	}
	return user.Actor(), nil
}

// Provision stores a user, hashing secret unless params already carries a key hash.
func (s *Service) Provision(ctx context.Context, params domainuser.CreateParams, secret string) (*domainuser.User, error) {
	if params.KeyHash == "" {
		if strings.TrimSpace(secret) == "" {
			return nil, ErrInvalidCredentials
		}
		hash, err := s.Keys.Hash(secret)
		if err != nil {
			return nil, err
		}
		params.KeyHash = hash
	}
	user, err := domainuser.NewUser(params)
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
