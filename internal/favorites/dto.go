package favorites

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// FavoriteDTO is the API projection of a favorite mark.
type FavoriteDTO struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	MedicineID uuid.UUID `json:"medicine_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDTO(m models.FavoriteMark) FavoriteDTO {
	return FavoriteDTO{
		ID:         m.ID,
		UserID:     m.UserID,
		MedicineID: m.MedicineID,
		CreatedAt:  m.CreatedAt,
	}
}

func toDTOs(rows []models.FavoriteMark) []FavoriteDTO {
	out := make([]FavoriteDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
