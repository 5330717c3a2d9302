package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/security"
)

// ServiceParams groups dependencies for the user service.
type ServiceParams struct {
	Repo        *Repository
	PasswordCfg config.PasswordConfig
}

// Service exposes account management.
type Service interface {
	Register(ctx context.Context, input RegisterUserInput) (UserDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (UserDTO, error)
	GetByDNI(ctx context.Context, dni string) (UserDTO, error)
	List(ctx context.Context) ([]UserDTO, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (UserDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
}

// NewService builds a user service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user repo is required")
	}
	return &service{repo: params.Repo, passwordCfg: params.PasswordCfg}, nil
}

func (s *service) Register(ctx context.Context, input RegisterUserInput) (UserDTO, error) {
	dni := strings.TrimSpace(input.DNI)
	if dni == "" {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "dni is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}

	role := enums.RoleUser
	if input.Role != "" {
		parsed, err := enums.ParseUserRole(input.Role)
		if err != nil {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
		}
		role = parsed
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	user := models.User{
		DNI:          dni,
		FullName:     fullName,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		if db.IsUniqueViolation(err, "ux_users_dni") {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "dni already registered")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return toDTO(user), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (UserDTO, error) {
	if id == uuid.Nil {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return toDTO(user), nil
}

func (s *service) GetByDNI(ctx context.Context, dni string) (UserDTO, error) {
	dni = strings.TrimSpace(dni)
	if dni == "" {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "dni is required")
	}
	user, err := s.repo.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return toDTO(user), nil
}

func (s *service) List(ctx context.Context) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return toDTOs(rows), nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (UserDTO, error) {
	if id == uuid.Nil {
		return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return UserDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "full name cannot be blank")
		}
		user.FullName = name
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if err := s.repo.Update(ctx, &user); err != nil {
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return toDTO(user), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}
