// Package auth implements login by DNI plus WhatsApp-based password recovery.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/availability"
	"github.com/medifast-dev/medifast-backend/internal/users"
	pkgauth "github.com/medifast-dev/medifast-backend/pkg/auth"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/security"
	"github.com/medifast-dev/medifast-backend/pkg/whatsapp"
)

const tempPasswordLength = 10

// LoginInput carries DNI credentials.
type LoginInput struct {
	DNI      string `json:"dni" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the signed token plus the account projection.
type LoginResult struct {
	Token string        `json:"token"`
	User  users.UserDTO `json:"user"`
}

// RecoverInput asks for a temporary password over WhatsApp.
type RecoverInput struct {
	DNI string `json:"dni" validate:"required"`
}

// ChangePasswordInput rotates the caller's password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	UserRepo    *users.Repository
	Sender      whatsapp.Sender
	Logger      *logger.Logger
	JWTCfg      config.JWTConfig
	PasswordCfg config.PasswordConfig

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service exposes authentication flows.
type Service interface {
	Login(ctx context.Context, input LoginInput) (LoginResult, error)
	RecoverPassword(ctx context.Context, input RecoverInput) error
	ChangePassword(ctx context.Context, userID uuid.UUID, input ChangePasswordInput) error
}

type service struct {
	userRepo    *users.Repository
	sender      whatsapp.Sender
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService builds an auth service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user repo is required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		userRepo:    params.UserRepo,
		sender:      params.Sender,
		logg:        params.Logger,
		jwtCfg:      params.JWTCfg,
		passwordCfg: params.PasswordCfg,
		now:         now,
	}, nil
}

// Login verifies DNI credentials and mints an access token. Unknown DNI and
// wrong password collapse into the same error so the endpoint does not leak
// which accounts exist.
func (s *service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	dni := strings.TrimSpace(input.DNI)
	if dni == "" || input.Password == "" {
		return LoginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "dni and password are required")
	}

	user, err := s.userRepo.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return LoginResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return LoginResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		DNI:    user.DNI,
		Role:   user.Role,
	})
	if err != nil {
		return LoginResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	return LoginResult{
		Token: token,
		User: users.UserDTO{
			ID:        user.ID,
			DNI:       user.DNI,
			FullName:  user.FullName,
			Phone:     user.Phone,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
	}, nil
}

// RecoverPassword generates a temporary password, stores its hash and sends
// it over WhatsApp. The hash is only persisted after a successful send so a
// delivery failure never locks the user out of their current password.
func (s *service) RecoverPassword(ctx context.Context, input RecoverInput) error {
	dni := strings.TrimSpace(input.DNI)
	if dni == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dni is required")
	}

	user, err := s.userRepo.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	phone, usable := availability.NormalizePhone(user.Phone)
	if !usable {
		return pkgerrors.New(pkgerrors.CodeValidation, "account has no usable phone number")
	}

	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temporary password")
	}
	hash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash temporary password")
	}

	if !s.sender.SendText(ctx, phone, whatsapp.RecoveryMessage(tempPassword)) {
		return pkgerrors.New(pkgerrors.CodeDependency, "could not deliver recovery message")
	}

	won, err := s.userRepo.UpdatePasswordHash(ctx, user.ID, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store temporary password")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	logCtx := s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(logCtx, "temporary password issued")
	return nil
}

// ChangePassword rotates the caller's credential after verifying the current one.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, input ChangePasswordInput) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(input.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password does not match")
	}

	hash, err := security.HashPassword(input.NewPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}
	if _, err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store password")
	}
	return nil
}
