package sites

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
)

// ServiceParams groups dependencies for the site service.
type ServiceParams struct {
	Repo *Repository
}

// Service exposes site management.
type Service interface {
	Create(ctx context.Context, input CreateSiteInput) (SiteDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (SiteDTO, error)
	List(ctx context.Context) ([]SiteDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateSiteInput) (SiteDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

// NewService builds a site service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "site repo is required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateSiteInput) (SiteDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return SiteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "site name is required")
	}
	site := models.Site{
		Name:    name,
		Address: strings.TrimSpace(input.Address),
	}
	if err := s.repo.Create(ctx, &site); err != nil {
		return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create site")
	}
	return toDTO(site), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (SiteDTO, error) {
	if id == uuid.Nil {
		return SiteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "site id is required")
	}
	site, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "site not found")
		}
		return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load site")
	}
	return toDTO(site), nil
}

func (s *service) List(ctx context.Context) ([]SiteDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sites")
	}
	return toDTOs(rows), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateSiteInput) (SiteDTO, error) {
	if id == uuid.Nil {
		return SiteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "site id is required")
	}
	site, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "site not found")
		}
		return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load site")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return SiteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "site name cannot be blank")
		}
		site.Name = name
	}
	if input.Address != nil {
		site.Address = strings.TrimSpace(*input.Address)
	}
	if err := s.repo.Update(ctx, &site); err != nil {
		return SiteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update site")
	}
	return toDTO(site), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "site id is required")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete site")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
	}
	return nil
}
