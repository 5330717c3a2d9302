package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/availability"
	"github.com/medifast-dev/medifast-backend/internal/medicines"
	"github.com/medifast-dev/medifast-backend/internal/sites"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/outbox"
	"github.com/medifast-dev/medifast-backend/pkg/outbox/payloads"
)

// ServiceParams groups dependencies for the stock service.
type ServiceParams struct {
	DB           *db.Client
	Repo         *Repository
	MedicineRepo *medicines.Repository
	SiteRepo     *sites.Repository
	Outbox       outbox.Emitter
	Watcher      availability.Watcher
	Logger       *logger.Logger
}

// Service exposes the stock ledger operations.
type Service interface {
	CreateEntry(ctx context.Context, input CreateStockInput) (StockEntryDTO, error)
	AdjustQuantity(ctx context.Context, id uuid.UUID, input AdjustStockInput) (StockEntryDTO, error)
	SetFields(ctx context.Context, id uuid.UUID, input UpdateStockInput) (StockEntryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (StockEntryDTO, error)
	GetByPair(ctx context.Context, medicineID, siteID uuid.UUID) (StockEntryDTO, error)
	ListAll(ctx context.Context) ([]StockEntryDTO, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]StockEntryDTO, error)
	ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]StockEntryDTO, error)
	ListByStatus(ctx context.Context, status enums.StockStatus) ([]StockEntryDTO, error)
	Search(ctx context.Context, query string) ([]SearchRecord, error)
	Summary(ctx context.Context) (SummaryDTO, error)
}

type service struct {
	db           *db.Client
	repo         *Repository
	medicineRepo *medicines.Repository
	siteRepo     *sites.Repository
	outbox       outbox.Emitter
	watcher      availability.Watcher
	logg         *logger.Logger
}

// NewService builds a stock service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db client is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock repo is required")
	}
	if params.MedicineRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine repo is required")
	}
	if params.SiteRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "site repo is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	if params.Watcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "availability watcher is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		db:           params.DB,
		repo:         params.Repo,
		medicineRepo: params.MedicineRepo,
		siteRepo:     params.SiteRepo,
		outbox:       params.Outbox,
		watcher:      params.Watcher,
		logg:         params.Logger,
	}, nil
}

// CreateEntry opens the ledger row for a (medicine, site) pair. At most one
// row may exist per pair; a second create is a conflict, not an upsert.
func (s *service) CreateEntry(ctx context.Context, input CreateStockInput) (StockEntryDTO, error) {
	if input.MedicineID == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	if input.SiteID == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "site id is required")
	}
	if input.Quantity < 0 {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if _, err := s.medicineRepo.FindByID(ctx, input.MedicineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "medicine not found")
		}
		return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
	}
	if _, err := s.siteRepo.FindByID(ctx, input.SiteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "site not found")
		}
		return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load site")
	}

	entry := models.StockEntry{
		MedicineID: input.MedicineID,
		SiteID:     input.SiteID,
		Quantity:   input.Quantity,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &entry); err != nil {
			if db.IsUniqueViolation(err, "ux_stock_entries_medicine_site") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "stock entry already exists for this medicine and site")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock entry")
		}
		return s.outbox.Emit(ctx, tx, stockEvent(enums.EventStockCreated, entry))
	})
	if err != nil {
		return StockEntryDTO{}, err
	}

	s.watcher.StockChanged(ctx, availability.Replenishment{
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Before:     0,
		After:      entry.Quantity,
	})
	return toDTO(entry), nil
}

// AdjustQuantity applies a signed delta in one atomic statement; negative
// results clamp to zero, matching how receiving and dispensing corrections
// are entered at the counter.
func (s *service) AdjustQuantity(ctx context.Context, id uuid.UUID, input AdjustStockInput) (StockEntryDTO, error) {
	if id == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "stock entry id is required")
	}
	if input.Delta == 0 {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "delta cannot be zero")
	}

	var before int
	var after models.StockEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		// Row lock across the before-image read and the UPDATE, so a
		// concurrent adjuster cannot shift the reported edge.
		current, err := txRepo.FindByIDLocked(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
		}
		before = current.Quantity

		ok, err := txRepo.AdjustClamped(ctx, id, input.Delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock quantity")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
		}

		after, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock entry")
		}
		return s.outbox.Emit(ctx, tx, stockEvent(enums.EventStockUpdated, after))
	})
	if err != nil {
		return StockEntryDTO{}, err
	}

	s.watcher.StockChanged(ctx, availability.Replenishment{
		MedicineID: after.MedicineID,
		SiteID:     after.SiteID,
		Before:     before,
		After:      after.Quantity,
	})
	return toDTO(after), nil
}

// SetFields overwrites the quantity and optionally the status. An omitted
// status is always derived from the resulting quantity; passing one is an
// admin override and stored as-is.
func (s *service) SetFields(ctx context.Context, id uuid.UUID, input UpdateStockInput) (StockEntryDTO, error) {
	if id == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "stock entry id is required")
	}
	if input.Quantity == nil && input.Status == nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock status %q", *input.Status))
	}

	var before int
	var after models.StockEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByIDLocked(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
		}
		before = current.Quantity

		quantity := current.Quantity
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		status := enums.StockStatusFor(quantity)
		if input.Status != nil {
			status = *input.Status
		}

		ok, err := txRepo.SetQuantity(ctx, id, quantity, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock entry")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
		}

		after, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock entry")
		}
		return s.outbox.Emit(ctx, tx, stockEvent(enums.EventStockUpdated, after))
	})
	if err != nil {
		return StockEntryDTO{}, err
	}

	s.watcher.StockChanged(ctx, availability.Replenishment{
		MedicineID: after.MedicineID,
		SiteID:     after.SiteID,
		Before:     before,
		After:      after.Quantity,
	})
	return toDTO(after), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock entry id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		entry, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
		}
		if _, err := txRepo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stock entry")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockDeleted,
			AggregateType: enums.AggregateStockEntry,
			AggregateID:   entry.ID,
			Data: payloads.StockDeleted{
				StockEntryID: entry.ID,
				MedicineID:   entry.MedicineID,
				SiteID:       entry.SiteID,
			},
		})
	})
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (StockEntryDTO, error) {
	if id == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "stock entry id is required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock entry not found")
		}
		return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
	}
	return toDTO(entry), nil
}

func (s *service) GetByPair(ctx context.Context, medicineID, siteID uuid.UUID) (StockEntryDTO, error) {
	if medicineID == uuid.Nil || siteID == uuid.Nil {
		return StockEntryDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "medicine id and site id are required")
	}
	entry, err := s.repo.FindByPair(ctx, medicineID, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "stock entry not found")
		}
		return StockEntryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
	}
	return toDTO(entry), nil
}

func (s *service) ListAll(ctx context.Context) ([]StockEntryDTO, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	return toDTOs(rows), nil
}

func (s *service) ListBySite(ctx context.Context, siteID uuid.UUID) ([]StockEntryDTO, error) {
	if siteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "site id is required")
	}
	rows, err := s.repo.ListBySite(ctx, siteID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	return toDTOs(rows), nil
}

func (s *service) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]StockEntryDTO, error) {
	if medicineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medicine id is required")
	}
	rows, err := s.repo.ListByMedicine(ctx, medicineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	return toDTOs(rows), nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.StockStatus) ([]StockEntryDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock status %q", status))
	}
	rows, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	return toDTOs(rows), nil
}

func (s *service) Search(ctx context.Context, query string) ([]SearchRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	rows, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search stock entries")
	}
	return rows, nil
}

func (s *service) Summary(ctx context.Context) (SummaryDTO, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return SummaryDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock summary")
	}
	return summary, nil
}

func stockEvent(eventType enums.OutboxEventType, entry models.StockEntry) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateStockEntry,
		AggregateID:   entry.ID,
		Data: payloads.StockEvent{
			StockEntryID: entry.ID,
			MedicineID:   entry.MedicineID,
			SiteID:       entry.SiteID,
			Quantity:     entry.Quantity,
			Status:       entry.Status,
		},
	}
}
