package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// UserDTO is the API projection of an account. The password hash never
// leaves the service layer.
type UserDTO struct {
	ID        uuid.UUID      `json:"id"`
	DNI       string         `json:"dni"`
	FullName  string         `json:"full_name"`
	Phone     string         `json:"phone"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RegisterUserInput carries the fields accepted on registration.
type RegisterUserInput struct {
	DNI      string `json:"dni" validate:"required,min=6,max=15"`
	FullName string `json:"full_name" validate:"required,min=2,max=200"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UpdateProfileInput carries the mutable profile fields; nil means keep.
type UpdateProfileInput struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,min=6,max=20"`
}

func toDTO(u models.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		DNI:       u.DNI,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toDTOs(rows []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
