package favorites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// Repository encapsulates favorite mark persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a favorites repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Add inserts a favorite mark and ignores duplicates.
func (r *Repository) Add(ctx context.Context, userID, medicineID uuid.UUID) error {
	if userID == uuid.Nil || medicineID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO favorite_marks (id, user_id, medicine_id) VALUES (?, ?, ?) ON CONFLICT (user_id, medicine_id) DO NOTHING`,
			uuid.New(), userID, medicineID).
		Error
}

// Remove deletes the user-medicine mark if it exists.
func (r *Repository) Remove(ctx context.Context, userID, medicineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND medicine_id = ?", userID, medicineID).
		Delete(&models.FavoriteMark{}).
		Error
}

// Exists reports whether the user has marked the medicine.
func (r *Repository) Exists(ctx context.Context, userID, medicineID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FavoriteMark{}).
		Where("user_id = ? AND medicine_id = ?", userID, medicineID).
		Count(&count).Error
	return count > 0, err
}

// ListByUser returns all marks for one user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.FavoriteMark, error) {
	var rows []models.FavoriteMark
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListUsersByMedicine returns the users subscribed to a medicine. This is the
// fan-out input for availability alerts.
func (r *Repository) ListUsersByMedicine(ctx context.Context, medicineID uuid.UUID) ([]models.User, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN favorite_marks fm ON fm.user_id = users.id").
		Where("fm.medicine_id = ?", medicineID).
		Find(&rows).Error
	return rows, err
}
