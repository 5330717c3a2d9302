package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// StockEntryDTO is the API projection of one ledger row.
type StockEntryDTO struct {
	ID         uuid.UUID         `json:"id"`
	MedicineID uuid.UUID         `json:"medicine_id"`
	SiteID     uuid.UUID         `json:"site_id"`
	Quantity   int               `json:"quantity"`
	Status     enums.StockStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CreateStockInput carries the fields accepted when opening a ledger row.
type CreateStockInput struct {
	MedicineID uuid.UUID `json:"medicine_id" validate:"required"`
	SiteID     uuid.UUID `json:"site_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gte=0"`
}

// AdjustStockInput applies a signed delta; results clamp at zero.
type AdjustStockInput struct {
	Delta int `json:"delta" validate:"required"`
}

// UpdateStockInput overwrites fields directly. Status nil means derive from
// the resulting quantity; a value is an admin override.
type UpdateStockInput struct {
	Quantity *int               `json:"quantity" validate:"omitempty,gte=0"`
	Status   *enums.StockStatus `json:"status"`
}

// SearchRecord is the joined projection returned by text search.
type SearchRecord struct {
	ID           uuid.UUID         `json:"id" gorm:"column:id"`
	MedicineID   uuid.UUID         `json:"medicine_id" gorm:"column:medicine_id"`
	SiteID       uuid.UUID         `json:"site_id" gorm:"column:site_id"`
	Quantity     int               `json:"quantity" gorm:"column:quantity"`
	Status       enums.StockStatus `json:"status" gorm:"column:status"`
	MedicineName string            `json:"medicine_name" gorm:"column:medicine_name"`
	SiteName     string            `json:"site_name" gorm:"column:site_name"`
}

// SummaryDTO aggregates ledger rows per derived status.
type SummaryDTO struct {
	Available int64 `json:"available"`
	LowStock  int64 `json:"low_stock"`
	Exhausted int64 `json:"exhausted"`
	Total     int64 `json:"total"`
}

func toDTO(e models.StockEntry) StockEntryDTO {
	return StockEntryDTO{
		ID:         e.ID,
		MedicineID: e.MedicineID,
		SiteID:     e.SiteID,
		Quantity:   e.Quantity,
		Status:     e.Status,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toDTOs(rows []models.StockEntry) []StockEntryDTO {
	out := make([]StockEntryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
