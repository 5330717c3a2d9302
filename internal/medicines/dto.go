package medicines

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// MedicineDTO is the API projection of a catalog entry.
type MedicineDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateMedicineInput carries the fields accepted on creation.
type CreateMedicineInput struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateMedicineInput carries the mutable fields; nil means keep.
type UpdateMedicineInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func toDTO(m models.Medicine) MedicineDTO {
	return MedicineDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDTOs(rows []models.Medicine) []MedicineDTO {
	out := make([]MedicineDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
