package pickups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// Repository encapsulates pickup persistence. State transitions are single
// conditional UPDATEs guarded on the prior state; the affected-row count tells
// the caller whether this invocation won the transition.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pickup repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, pickup *models.Pickup) error {
	if pickup.ID == uuid.Nil {
		pickup.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(pickup).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (models.Pickup, error) {
	var pickup models.Pickup
	err := r.db.WithContext(ctx).First(&pickup, "id = ?", id).Error
	return pickup, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).Order("scheduled_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByState(ctx context.Context, state enums.PickupState) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("scheduled_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByBatchCode(ctx context.Context, code string) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).
		Where("batch_code = ?", code).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) BatchCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Pickup{}).
		Where("batch_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// TransitionState moves the pickup from one state to another only if it is
// still in the expected prior state. A false return means another writer (or
// an earlier tick) already moved it.
func (r *Repository) TransitionState(ctx context.Context, id uuid.UUID, from, to enums.PickupState) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Pickup{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{"state": to})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateSchedule rewrites the appointment instant for a still-programmed
// pickup, recomputing the expiry alongside.
func (r *Repository) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Pickup{}).
		Where("id = ? AND state = ?", id, enums.PickupProgrammed).
		Updates(map[string]any{
			"scheduled_at": scheduledAt,
			"expires_at":   expiresAt,
			"notified":     false,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListOverdue returns programmed pickups whose grace period has elapsed.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at < ?", enums.PickupProgrammed, now).
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListDueForReminder returns unnotified programmed pickups scheduled inside
// the [from, to] window.
func (r *Repository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Pickup, error) {
	var rows []models.Pickup
	err := r.db.WithContext(ctx).
		Where("state = ? AND notified = ? AND scheduled_at BETWEEN ? AND ?",
			enums.PickupProgrammed, false, from, to).
		Order("scheduled_at ASC").
		Find(&rows).Error
	return rows, err
}

// MarkBatchNotified flips the notified flag for every still-programmed pickup
// of a batch and returns how many rows it touched.
func (r *Repository) MarkBatchNotified(ctx context.Context, batchCode string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Pickup{}).
		Where("batch_code = ? AND state = ? AND notified = ?", batchCode, enums.PickupProgrammed, false).
		Updates(map[string]any{"notified": true})
	return result.RowsAffected, result.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Pickup{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
