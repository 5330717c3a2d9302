package sites

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
)

// Repository encapsulates site persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a site repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, site *models.Site) error {
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(site).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).First(&site, "id = ?", id).Error
	return site, err
}

func (r *Repository) List(ctx context.Context) ([]models.Site, error) {
	var rows []models.Site
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Update(ctx context.Context, site *models.Site) error {
	return r.db.WithContext(ctx).Save(site).Error
}

// Delete removes the site row; stock entries and pickups cascade at the
// database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Site{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
