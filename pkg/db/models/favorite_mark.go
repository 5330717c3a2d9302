package models

import (
	"time"

	"github.com/google/uuid"
)

// FavoriteMark records that a user wants availability alerts for a medicine.
type FavoriteMark struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_favorite_marks_user_medicine"`
	MedicineID uuid.UUID `gorm:"column:medicine_id;type:uuid;not null;uniqueIndex:ux_favorite_marks_user_medicine"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
