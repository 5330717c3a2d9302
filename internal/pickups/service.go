package pickups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/stock"
	"github.com/medifast-dev/medifast-backend/internal/users"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/outbox"
	"github.com/medifast-dev/medifast-backend/pkg/outbox/payloads"
)

// ServiceParams groups dependencies for the pickup service.
type ServiceParams struct {
	DB        *db.Client
	Repo      *Repository
	StockRepo *stock.Repository
	UserRepo  *users.Repository
	Outbox    outbox.Emitter
	Logger    *logger.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service exposes the reservation engine.
type Service interface {
	CreateSingle(ctx context.Context, input CreatePickupInput) (PickupDTO, error)
	CreateBatch(ctx context.Context, input CreateBatchInput) (BatchResultDTO, error)
	UpdateState(ctx context.Context, id uuid.UUID, newState enums.PickupState) (PickupDTO, error)
	Reschedule(ctx context.Context, id uuid.UUID, input RescheduleInput) (PickupDTO, error)
	ExpireOverdue(ctx context.Context) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (PickupDTO, error)
	ListAll(ctx context.Context) ([]PickupDTO, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]PickupDTO, error)
	ListByState(ctx context.Context, state enums.PickupState) ([]PickupDTO, error)
	ListByBatchCode(ctx context.Context, code string) ([]PickupDTO, error)
}

type service struct {
	db        *db.Client
	repo      *Repository
	stockRepo *stock.Repository
	userRepo  *users.Repository
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a pickup service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db client is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup repo is required")
	}
	if params.StockRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock repo is required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user repo is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		stockRepo: params.StockRepo,
		userRepo:  params.UserRepo,
		outbox:    params.Outbox,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// CreateSingle reserves units of one medicine: the stock debit, the pickup
// insert and the event all commit or roll back together.
func (s *service) CreateSingle(ctx context.Context, input CreatePickupInput) (PickupDTO, error) {
	if input.Quantity <= 0 {
		return PickupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.ensureUser(ctx, input.UserID); err != nil {
		return PickupDTO{}, err
	}
	scheduledAt, expiresAt, err := parseSchedule(input.Date, input.Time, s.now())
	if err != nil {
		return PickupDTO{}, err
	}

	var pickup models.Pickup
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txStock := s.stockRepo.WithTx(tx)
		entry, err := txStock.FindByPair(ctx, input.MedicineID, input.SiteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no stock entry for this medicine and site")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
		}

		ok, err := txStock.Debit(ctx, entry.ID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit stock")
		}
		if !ok {
			return insufficientStock(entry, input.Quantity)
		}

		txRepo := s.repo.WithTx(tx)
		code, err := generateBatchCode(ctx, txRepo.BatchCodeExists)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "allocate batch code")
		}

		pickup = models.Pickup{
			UserID:      input.UserID,
			MedicineID:  input.MedicineID,
			SiteID:      input.SiteID,
			Quantity:    input.Quantity,
			BatchCode:   code,
			State:       enums.PickupProgrammed,
			ScheduledAt: scheduledAt,
			ExpiresAt:   expiresAt,
		}
		if err := txRepo.Create(ctx, &pickup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pickup")
		}
		return s.outbox.Emit(ctx, tx, pickupEvent(enums.EventPickupCreated, pickup))
	})
	if err != nil {
		return PickupDTO{}, err
	}
	return toDTO(pickup), nil
}

// CreateBatch reserves several medicines for one visit under a shared batch
// code. Debits run in ascending stock entry id order so two overlapping
// batches always acquire row locks in the same sequence.
func (s *service) CreateBatch(ctx context.Context, input CreateBatchInput) (BatchResultDTO, error) {
	if len(input.Items) == 0 {
		return BatchResultDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "batch requires at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return BatchResultDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "every quantity must be positive")
		}
		if seen[item.MedicineID] {
			return BatchResultDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "duplicate medicine in batch")
		}
		seen[item.MedicineID] = true
	}
	if err := s.ensureUser(ctx, input.UserID); err != nil {
		return BatchResultDTO{}, err
	}
	scheduledAt, expiresAt, err := parseSchedule(input.Date, input.Time, s.now())
	if err != nil {
		return BatchResultDTO{}, err
	}

	var result BatchResultDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txStock := s.stockRepo.WithTx(tx)

		type line struct {
			entry models.StockEntry
			item  BatchItem
		}
		lines := make([]line, 0, len(input.Items))
		for _, item := range input.Items {
			entry, err := txStock.FindByPair(ctx, item.MedicineID, input.SiteID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Wrap(pkgerrors.CodeNotFound, err,
						fmt.Sprintf("no stock entry for medicine %s at this site", item.MedicineID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
			}
			lines = append(lines, line{entry: entry, item: item})
		}

		// Deterministic lock order across concurrent batches.
		sort.Slice(lines, func(i, j int) bool {
			return lines[i].entry.ID.String() < lines[j].entry.ID.String()
		})

		for _, l := range lines {
			ok, err := txStock.Debit(ctx, l.entry.ID, l.item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit stock")
			}
			if !ok {
				return insufficientStock(l.entry, l.item.Quantity)
			}
		}

		txRepo := s.repo.WithTx(tx)
		code, err := generateBatchCode(ctx, txRepo.BatchCodeExists)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "allocate batch code")
		}

		created := make([]models.Pickup, 0, len(input.Items))
		for _, item := range input.Items {
			pickup := models.Pickup{
				UserID:      input.UserID,
				MedicineID:  item.MedicineID,
				SiteID:      input.SiteID,
				Quantity:    item.Quantity,
				BatchCode:   code,
				State:       enums.PickupProgrammed,
				ScheduledAt: scheduledAt,
				ExpiresAt:   expiresAt,
			}
			if err := txRepo.Create(ctx, &pickup); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pickup")
			}
			created = append(created, pickup)
		}

		ids := make([]uuid.UUID, 0, len(created))
		for _, p := range created {
			ids = append(ids, p.ID)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupsCreatedBatch,
			AggregateType: enums.AggregateBatch,
			AggregateID:   created[0].ID,
			Data: payloads.PickupsBatch{
				BatchCode:   code,
				UserID:      input.UserID,
				SiteID:      input.SiteID,
				PickupIDs:   ids,
				ScheduledAt: scheduledAt,
			},
		}); err != nil {
			return err
		}

		result = BatchResultDTO{BatchCode: code, Pickups: toDTOs(created)}
		return nil
	})
	if err != nil {
		return BatchResultDTO{}, err
	}
	return result, nil
}

// UpdateState advances the lifecycle. Cancellation credits the reserved
// units back; fulfilment and expiry consume them. The guarded transition
// means a second cancel never double-credits: it simply loses the UPDATE.
func (s *service) UpdateState(ctx context.Context, id uuid.UUID, newState enums.PickupState) (PickupDTO, error) {
	if id == uuid.Nil {
		return PickupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup id is required")
	}
	if !newState.IsValid() {
		return PickupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid pickup state %d", newState))
	}

	var updated models.Pickup
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		pickup, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "pickup not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup")
		}
		if !pickup.State.CanTransitionTo(newState) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition from %s to %s", pickup.State, newState))
		}

		won, err := txRepo.TransitionState(ctx, id, pickup.State, newState)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition pickup state")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup state changed concurrently")
		}

		if newState == enums.PickupCancelled {
			txStock := s.stockRepo.WithTx(tx)
			entry, err := txStock.FindByPair(ctx, pickup.MedicineID, pickup.SiteID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Ledger row was removed; the cancellation still stands.
					s.logg.Warn(ctx, "cancel pickup: stock entry missing, nothing to credit")
				} else {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
				}
			} else {
				if _, err := txStock.Credit(ctx, entry.ID, pickup.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit stock")
				}
			}
		}

		updated, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pickup")
		}
		return s.outbox.Emit(ctx, tx, pickupEvent(enums.EventPickupUpdated, updated))
	})
	if err != nil {
		return PickupDTO{}, err
	}
	return toDTO(updated), nil
}

// Reschedule moves the appointment of a programmed pickup and recomputes its
// expiry. The notified flag resets so the reminder fires again for the new
// instant.
func (s *service) Reschedule(ctx context.Context, id uuid.UUID, input RescheduleInput) (PickupDTO, error) {
	if id == uuid.Nil {
		return PickupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup id is required")
	}
	scheduledAt, expiresAt, err := parseSchedule(input.Date, input.Time, s.now())
	if err != nil {
		return PickupDTO{}, err
	}

	var updated models.Pickup
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		won, err := txRepo.UpdateSchedule(ctx, id, scheduledAt, expiresAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reschedule pickup")
		}
		if !won {
			pickup, err := txRepo.FindByID(ctx, id)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "pickup not found")
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot reschedule a %s pickup", pickup.State))
		}
		updated, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pickup")
		}
		return s.outbox.Emit(ctx, tx, pickupEvent(enums.EventPickupUpdated, updated))
	})
	if err != nil {
		return PickupDTO{}, err
	}
	return toDTO(updated), nil
}

// ExpireOverdue transitions every programmed pickup whose grace period has
// elapsed. Expired stock is consumed, not credited back. The scan is
// idempotent: a second run with no time elapsed finds nothing.
func (s *service) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan overdue pickups")
	}

	expired := 0
	for _, pickup := range overdue {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			won, err := txRepo.TransitionState(ctx, pickup.ID, enums.PickupProgrammed, enums.PickupExpired)
			if err != nil {
				return err
			}
			if !won {
				return nil
			}
			updated, err := txRepo.FindByID(ctx, pickup.ID)
			if err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, pickupEvent(enums.EventPickupUpdated, updated)); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			logCtx := s.logg.WithField(ctx, "pickup_id", pickup.ID.String())
			s.logg.Error(logCtx, "expire pickup failed", err)
		}
	}
	return expired, nil
}

// Delete removes a pickup permanently. Only terminal pickups may be deleted:
// their stock effect is settled, so the delete cannot strand reserved units.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		pickup, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "pickup not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup")
		}
		if !pickup.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"only fulfilled, expired or cancelled pickups can be deleted")
		}
		if _, err := txRepo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pickup")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupDeleted,
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickup.ID,
			Data: payloads.PickupDeleted{
				PickupID:  pickup.ID,
				UserID:    pickup.UserID,
				BatchCode: pickup.BatchCode,
			},
		})
	})
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (PickupDTO, error) {
	if id == uuid.Nil {
		return PickupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup id is required")
	}
	pickup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PickupDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "pickup not found")
		}
		return PickupDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup")
	}
	return toDTO(pickup), nil
}

func (s *service) ListAll(ctx context.Context) ([]PickupDTO, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickups")
	}
	return toDTOs(rows), nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]PickupDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickups")
	}
	return toDTOs(rows), nil
}

func (s *service) ListByState(ctx context.Context, state enums.PickupState) ([]PickupDTO, error) {
	if !state.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid pickup state %d", state))
	}
	rows, err := s.repo.ListByState(ctx, state)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickups")
	}
	return toDTOs(rows), nil
}

func (s *service) ListByBatchCode(ctx context.Context, code string) ([]PickupDTO, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch code is required")
	}
	rows, err := s.repo.ListByBatchCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickups")
	}
	return toDTOs(rows), nil
}

func (s *service) ensureUser(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return nil
}

func insufficientStock(entry models.StockEntry, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("insufficient stock: requested %d, available %d", requested, entry.Quantity)).
		WithDetails(map[string]any{
			"stock_entry_id": entry.ID,
			"medicine_id":    entry.MedicineID,
			"site_id":        entry.SiteID,
			"requested":      requested,
			"available":      entry.Quantity,
		})
}

func pickupEvent(eventType enums.OutboxEventType, pickup models.Pickup) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		Data: payloads.PickupEvent{
			PickupID:    pickup.ID,
			UserID:      pickup.UserID,
			MedicineID:  pickup.MedicineID,
			SiteID:      pickup.SiteID,
			Quantity:    pickup.Quantity,
			BatchCode:   pickup.BatchCode,
			State:       pickup.State,
			ScheduledAt: pickup.ScheduledAt,
			ExpiresAt:   pickup.ExpiresAt,
		},
	}
}
