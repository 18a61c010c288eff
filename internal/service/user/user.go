package user

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/repository"
)

// Credential lookup and user creation
type UserService struct {
	hasher  PasswordHasher
	storage repository.Storage
}

func NewService(hasher PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

type CreateUserParams struct {
	Email    string
	Phone    string // optional
	Password string
}

// Create active user with default role
// Returns apperrors.ErrDuplicateEmail or apperrors.ErrDuplicatePhone if they are taken
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	var user models.User
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		user, err = storage.User().CreateUser(ctx, models.User{
			Email:        params.Email,
			Phone:        params.Phone,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}

		err = storage.User().AssignRole(ctx, user.ID, models.DefaultRole)
		if err != nil {
			return fmt.Errorf("can't assign default role. Err: %w", err)
		}
		user.Roles = []models.Role{models.DefaultRole}

		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, email)
}

func (s *UserService) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	return s.storage.User().GetUserByPhone(ctx, phone)
}

func (s *UserService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.storage.User().ExistsByEmail(ctx, email)
}

func (s *UserService) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return s.storage.User().ExistsByPhone(ctx, phone)
}

// Check password against stored hash
func (s *UserService) VerifyPassword(password string, hash string) bool {
	return s.hasher.Compare(hash, password) == nil
}

func (s *UserService) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return s.storage.User().UpdateLastLogin(ctx, userID, at)
}
