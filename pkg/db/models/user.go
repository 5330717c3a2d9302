package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// User is an account that can schedule pickups and mark favorites. Login is
// by national identity number (DNI).
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	DNI          string         `gorm:"column:dni;uniqueIndex:ux_users_dni;not null"`
	FullName     string         `gorm:"column:full_name;not null"`
	Phone        string         `gorm:"column:phone;not null"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Role         enums.UserRole `gorm:"column:role;type:user_role_enum;not null;default:user"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
