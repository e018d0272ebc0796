package account

import (
	"context"
	"errors"
	"strings"

	"tap-arena/internal/auth"
	"tap-arena/internal/game"
	"tap-arena/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type Store interface {
	EnsureUser(ctx context.Context, username, passwordHash string, role game.Role) (store.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type Service struct {
	store    Store
	tokens   TokenIssuer
	validate *validator.Validate
}

func NewService(st Store, tokens TokenIssuer) *Service {
	return &Service{store: st, tokens: tokens, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Login registers unknown usernames on first use and checks the password otherwise.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return nil, ErrInvalidRequest
	}

	u, err := s.store.GetUserByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u, err = s.register(ctx, req)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	id := identityOf(u)
	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, User: id}, nil
}

func (s *Service) register(ctx context.Context, req LoginRequest) (store.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return store.User{}, err
	}
	u, created, err := s.store.EnsureUser(ctx, req.Username, hash, auth.RoleForUsername(req.Username))
	if err != nil {
		return store.User{}, err
	}
	if !created {
		// Lost a race with a concurrent first login for the same name.
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			return store.User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	log.Info().Str("user_id", u.ID).Str("username", u.Username).Str("role", string(u.Role)).Msg("user_registered")
	return u, nil
}

// Me re-reads the caller so deleted users stop resolving.
func (s *Service) Me(ctx context.Context, caller auth.Identity) (*MeResponse, error) {
	u, err := s.store.GetUserByID(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &MeResponse{User: identityOf(u)}, nil
}

func identityOf(u store.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}
