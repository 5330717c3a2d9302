package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// Repository encapsulates stock ledger persistence. All quantity mutations go
// through single conditional UPDATE statements; the affected-row count is the
// success signal, so concurrent writers never interleave a read-then-write.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a stock repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, entry *models.StockEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Status = enums.StockStatusFor(entry.Quantity)
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	return entry, err
}

// FindByIDLocked reads the row under SELECT ... FOR UPDATE so a before-image
// taken ahead of a mutation cannot be invalidated by a concurrent writer.
// Must run inside a transaction. SQLite has no row locks; there a single
// writer holds the whole database, which gives the same ordering.
func (r *Repository) FindByIDLocked(ctx context.Context, id uuid.UUID) (models.StockEntry, error) {
	tx := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry models.StockEntry
	err := tx.First(&entry, "id = ?", id).Error
	return entry, err
}

func (r *Repository) FindByPair(ctx context.Context, medicineID, siteID uuid.UUID) (models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		First(&entry, "medicine_id = ? AND site_id = ?", medicineID, siteID).Error
	return entry, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.StockEntry, error) {
	var rows []models.StockEntry
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]models.StockEntry, error) {
	var rows []models.StockEntry
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]models.StockEntry, error) {
	var rows []models.StockEntry
	err := r.db.WithContext(ctx).
		Where("medicine_id = ?", medicineID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByStatus(ctx context.Context, status enums.StockStatus) ([]models.StockEntry, error) {
	var rows []models.StockEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// Debit subtracts quantity atomically. The WHERE guard rejects oversells; a
// false return means the row did not hold enough units (or does not exist).
func (r *Repository) Debit(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, gorm.ErrInvalidValue
	}
	result := r.db.WithContext(ctx).Exec(`
UPDATE stock_entries
SET quantity = quantity - ?,
    status = CASE
      WHEN quantity - ? <= 0 THEN ?
      WHEN quantity - ? <= ? THEN ?
      ELSE ?
    END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND quantity >= ?`,
		quantity,
		quantity, enums.StockExhausted,
		quantity, enums.LowStockThreshold, enums.StockLow,
		enums.StockAvailable,
		id, quantity,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Credit adds quantity atomically and recomputes the derived status.
func (r *Repository) Credit(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, gorm.ErrInvalidValue
	}
	result := r.db.WithContext(ctx).Exec(`
UPDATE stock_entries
SET quantity = quantity + ?,
    status = CASE
      WHEN quantity + ? <= 0 THEN ?
      WHEN quantity + ? <= ? THEN ?
      ELSE ?
    END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
		quantity,
		quantity, enums.StockExhausted,
		quantity, enums.LowStockThreshold, enums.StockLow,
		enums.StockAvailable,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AdjustClamped applies a signed delta, flooring the result at zero.
func (r *Repository) AdjustClamped(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
UPDATE stock_entries
SET quantity = CASE WHEN quantity + ? < 0 THEN 0 ELSE quantity + ? END,
    status = CASE
      WHEN quantity + ? <= 0 THEN ?
      WHEN quantity + ? <= ? THEN ?
      ELSE ?
    END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
		delta, delta,
		delta, enums.StockExhausted,
		delta, enums.LowStockThreshold, enums.StockLow,
		enums.StockAvailable,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetQuantity overwrites the quantity and status directly. Used by the admin
// field override path only.
func (r *Repository) SetQuantity(ctx context.Context, id uuid.UUID, quantity int, status enums.StockStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity": quantity,
			"status":   status,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.StockEntry{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// Search matches stock rows whose medicine or site name contains the query.
func (r *Repository) Search(ctx context.Context, query string) ([]SearchRecord, error) {
	like := "%" + query + "%"
	var rows []SearchRecord
	err := r.db.WithContext(ctx).
		Table("stock_entries se").
		Select("se.id, se.medicine_id, se.site_id, se.quantity, se.status, m.name AS medicine_name, s.name AS site_name").
		Joins("JOIN medicines m ON m.id = se.medicine_id").
		Joins("JOIN sites s ON s.id = se.site_id").
		Where("LOWER(m.name) LIKE LOWER(?) OR LOWER(s.name) LIKE LOWER(?)", like, like).
		Order("m.name ASC").
		Scan(&rows).Error
	return rows, err
}

// Summary counts entries per derived status.
func (r *Repository) Summary(ctx context.Context) (SummaryDTO, error) {
	type statusCount struct {
		Status enums.StockStatus
		Count  int64
	}
	var counts []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return SummaryDTO{}, err
	}
	var summary SummaryDTO
	for _, c := range counts {
		switch c.Status {
		case enums.StockAvailable:
			summary.Available = c.Count
		case enums.StockLow:
			summary.LowStock = c.Count
		case enums.StockExhausted:
			summary.Exhausted = c.Count
		}
		summary.Total += c.Count
	}
	return summary, nil
}
