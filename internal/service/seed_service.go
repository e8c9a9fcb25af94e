package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// ErrSeedDisabled indicates no bootstrap administrator is configured.
var ErrSeedDisabled = errors.New("seeding is disabled")

// AdminSeed describes the administrator created on first start.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// SeedService bootstraps the data a fresh deployment needs before anyone can log in.
type SeedService interface {
	EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error)
}

type seedService struct {
	users    repository.UserRepository
	accounts UserService
	logger   zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, accounts UserService, logger zerolog.Logger) SeedService {
	return &seedService{
		users:    users,
		accounts: accounts,
		logger:   logger.With().Str("component", "seed_service").Logger(),
	}
}

// EnsureAdmin creates the administrator unless an account with the same email exists. It reports
// whether a user was created.
func (s *seedService) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return false, ErrSeedDisabled
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	name := strings.TrimSpace(seed.Name)
	if name == "" {
		name = "Administrator"
	}

	system := Actor{Role: string(models.RoleAdmin)}
	created, err := s.accounts.Create(ctx, system, dto.UserCreateRequest{
		Name:     name,
		Email:    email,
		Password: seed.Password,
		Role:     string(models.RoleAdmin),
	})
	if err != nil {
		return false, err
	}

	s.logger.Info().Uint("user_id", created.ID).Msg("bootstrap administrator created")
	return true, nil
}
