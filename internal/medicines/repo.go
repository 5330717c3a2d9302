package medicines

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// Repository encapsulates medicine persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a medicine repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, medicine *models.Medicine) error {
	if medicine.ID == uuid.Nil {
		medicine.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(medicine).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (models.Medicine, error) {
	var medicine models.Medicine
	err := r.db.WithContext(ctx).First(&medicine, "id = ?", id).Error
	return medicine, err
}

func (r *Repository) List(ctx context.Context) ([]models.Medicine, error) {
	var rows []models.Medicine
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// SearchByName matches a case-insensitive substring of the medicine name.
func (r *Repository) SearchByName(ctx context.Context, query string) ([]models.Medicine, error) {
	var rows []models.Medicine
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+normalizeQuery(query)+"%").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (r *Repository) Update(ctx context.Context, medicine *models.Medicine) error {
	return r.db.WithContext(ctx).Save(medicine).Error
}

// Delete removes the medicine row; stock entries, pickups and favorites
// cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Medicine{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
