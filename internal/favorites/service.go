package favorites

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/medicines"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
)

// ServiceParams groups dependencies for the favorites service.
type ServiceParams struct {
	FavoritesRepo *Repository
	MedicineRepo  *medicines.Repository
}

// Service exposes business rules for favorite management.
type Service interface {
	Add(ctx context.Context, userID, medicineID uuid.UUID) error
	Remove(ctx context.Context, userID, medicineID uuid.UUID) error
	IsFavorite(ctx context.Context, userID, medicineID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]FavoriteDTO, error)
}

type service struct {
	favoritesRepo *Repository
	medicineRepo  *medicines.Repository
}

// NewService builds a favorites service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.FavoritesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "favorites repo is required")
	}
	if params.MedicineRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine repo is required")
	}
	return &service{
		favoritesRepo: params.FavoritesRepo,
		medicineRepo:  params.MedicineRepo,
	}, nil
}

// Add ensures the medicine exists and marks it; re-adding is a no-op.
func (s *service) Add(ctx context.Context, userID, medicineID uuid.UUID) error {
	if err := validateIDs(userID, medicineID); err != nil {
		return err
	}
	if _, err := s.medicineRepo.FindByID(ctx, medicineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "medicine not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
	}
	if err := s.favoritesRepo.Add(ctx, userID, medicineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add favorite")
	}
	return nil
}

// Remove drops the mark regardless of prior state.
func (s *service) Remove(ctx context.Context, userID, medicineID uuid.UUID) error {
	if err := validateIDs(userID, medicineID); err != nil {
		return err
	}
	if err := s.favoritesRepo.Remove(ctx, userID, medicineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove favorite")
	}
	return nil
}

func (s *service) IsFavorite(ctx context.Context, userID, medicineID uuid.UUID) (bool, error) {
	if err := validateIDs(userID, medicineID); err != nil {
		return false, err
	}
	exists, err := s.favoritesRepo.Exists(ctx, userID, medicineID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check favorite")
	}
	return exists, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]FavoriteDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.favoritesRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list favorites")
	}
	return toDTOs(rows), nil
}

func validateIDs(userID, medicineID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if medicineID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	return nil
}
