package sites

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// SiteDTO is the API projection of a dispensing location.
type SiteDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSiteInput carries the fields accepted on creation.
type CreateSiteInput struct {
	Name    string `json:"name" validate:"required,min=2,max=200"`
	Address string `json:"address" validate:"max=500"`
}

// UpdateSiteInput carries the mutable fields; nil means keep.
type UpdateSiteInput struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=200"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func toDTO(s models.Site) SiteDTO {
	return SiteDTO{
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toDTOs(rows []models.Site) []SiteDTO {
	out := make([]SiteDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
