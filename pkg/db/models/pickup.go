package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// Pickup is one reserved medicine within a scheduled visit. Pickups created
// together share a batch code; ExpiresAt is ScheduledAt plus the grace period.
type Pickup struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:ix_pickups_user"`
	MedicineID  uuid.UUID         `gorm:"column:medicine_id;type:uuid;not null"`
	SiteID      uuid.UUID         `gorm:"column:site_id;type:uuid;not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	BatchCode   string            `gorm:"column:batch_code;not null;index:ix_pickups_batch_code"`
	State       enums.PickupState `gorm:"column:state;not null;default:0"`
	ScheduledAt time.Time         `gorm:"column:scheduled_at;not null"`
	ExpiresAt   time.Time         `gorm:"column:expires_at;not null"`
	Notified    bool              `gorm:"column:notified;not null;default:false"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
