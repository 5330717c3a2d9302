package medicines

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
)

// ServiceParams groups dependencies for the medicine service.
type ServiceParams struct {
	Repo *Repository
}

// Service exposes catalog management.
type Service interface {
	Create(ctx context.Context, input CreateMedicineInput) (MedicineDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (MedicineDTO, error)
	List(ctx context.Context) ([]MedicineDTO, error)
	Search(ctx context.Context, query string) ([]MedicineDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateMedicineInput) (MedicineDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

// NewService builds a medicine service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine repo is required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateMedicineInput) (MedicineDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return MedicineDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine name is required")
	}
	medicine := models.Medicine{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.repo.Create(ctx, &medicine); err != nil {
		return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create medicine")
	}
	return toDTO(medicine), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (MedicineDTO, error) {
	if id == uuid.Nil {
		return MedicineDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	medicine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "medicine not found")
		}
		return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
	}
	return toDTO(medicine), nil
}

func (s *service) List(ctx context.Context) ([]MedicineDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list medicines")
	}
	return toDTOs(rows), nil
}

func (s *service) Search(ctx context.Context, query string) ([]MedicineDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	rows, err := s.repo.SearchByName(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search medicines")
	}
	return toDTOs(rows), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateMedicineInput) (MedicineDTO, error) {
	if id == uuid.Nil {
		return MedicineDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	medicine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "medicine not found")
		}
		return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return MedicineDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine name cannot be blank")
		}
		medicine.Name = name
	}
	if input.Description != nil {
		medicine.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.Update(ctx, &medicine); err != nil {
		return MedicineDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update medicine")
	}
	return toDTO(medicine), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete medicine")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
	}
	return nil
}
