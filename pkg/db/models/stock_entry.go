package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// StockEntry tracks the on-hand quantity of one medicine at one site. At most
// one row exists per (medicine, site) pair; status is derived from quantity.
type StockEntry struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	MedicineID uuid.UUID         `gorm:"column:medicine_id;type:uuid;not null;uniqueIndex:ux_stock_entries_medicine_site"`
	SiteID     uuid.UUID         `gorm:"column:site_id;type:uuid;not null;uniqueIndex:ux_stock_entries_medicine_site"`
	Quantity   int               `gorm:"column:quantity;not null;default:0"`
	Status     enums.StockStatus `gorm:"column:status;type:stock_status_enum;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
