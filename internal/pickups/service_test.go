package pickups

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/stock"
	"github.com/medifast-dev/medifast-backend/internal/users"
	"github.com/medifast-dev/medifast-backend/pkg/db"
	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/outbox"
)

var batchCodePattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func setupPickupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usersDDL := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  dni TEXT NOT NULL,
  full_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_users_dni UNIQUE (dni)
);`
	stockDDL := `
CREATE TABLE IF NOT EXISTS stock_entries (
  id TEXT PRIMARY KEY,
  medicine_id TEXT NOT NULL,
  site_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_stock_entries_medicine_site UNIQUE (medicine_id, site_id)
);`
	pickupsDDL := `
CREATE TABLE IF NOT EXISTS pickups (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  medicine_id TEXT NOT NULL,
  site_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  batch_code TEXT NOT NULL,
  state INTEGER NOT NULL DEFAULT 0,
  scheduled_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  notified INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(usersDDL).Error)
	require.NoError(t, conn.Exec(stockDDL).Error)
	require.NoError(t, conn.Exec(pickupsDDL).Error)
	require.NoError(t, conn.Exec("DELETE FROM pickups").Error)
	require.NoError(t, conn.Exec("DELETE FROM stock_entries").Error)
	require.NoError(t, conn.Exec("DELETE FROM users").Error)
	return conn
}

type pickupServiceTest struct {
	svc     Service
	conn    *gorm.DB
	emitter *fakeEmitter
	now     time.Time
}

func newPickupServiceTest(t *testing.T) *pickupServiceTest {
	t.Helper()
	conn := setupPickupTestDB(t)
	emitter := &fakeEmitter{}
	h := &pickupServiceTest{
		conn:    conn,
		emitter: emitter,
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		DB:        db.NewWithConn(conn),
		Repo:      NewRepository(conn),
		StockRepo: stock.NewRepository(conn),
		UserRepo:  users.NewRepository(conn),
		Outbox:    emitter,
		Logger:    logger.New(logger.Options{ServiceName: "pickups-test"}),
		Now:       func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *pickupServiceTest) seedUser(t *testing.T) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		DNI:          uuid.NewString()[:8],
		FullName:     "Maria Quispe",
		Phone:        "51987654321",
		PasswordHash: "x",
		Role:         enums.RoleUser,
	}
	require.NoError(t, h.conn.Create(&user).Error)
	return user
}

func (h *pickupServiceTest) seedStock(t *testing.T, quantity int) models.StockEntry {
	t.Helper()
	entry := models.StockEntry{
		ID:         uuid.New(),
		MedicineID: uuid.New(),
		SiteID:     uuid.New(),
		Quantity:   quantity,
		Status:     enums.StockStatusFor(quantity),
	}
	require.NoError(t, h.conn.Create(&entry).Error)
	return entry
}

func (h *pickupServiceTest) stockQuantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var entry models.StockEntry
	require.NoError(t, h.conn.First(&entry, "id = ?", id).Error)
	return entry.Quantity
}

func TestCreateSingleReservesStock(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   4,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.PickupProgrammed, dto.State)
	assert.Regexp(t, batchCodePattern, dto.BatchCode)
	assert.Equal(t, dto.ScheduledAt.Add(ExpiryGrace), dto.ExpiresAt)
	assert.Equal(t, 16, h.stockQuantity(t, entry.ID))

	require.Len(t, h.emitter.events, 1)
	assert.Equal(t, enums.EventPickupCreated, h.emitter.events[0].EventType)
}

func TestCreateSingleRejectsInsufficientStock(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 3)

	_, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   5,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	assert.Equal(t, 3, h.stockQuantity(t, entry.ID), "failed reservation must not touch stock")
	var count int64
	require.NoError(t, h.conn.Model(&models.Pickup{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.emitter.events)
}

func TestCreateSingleRejectsPastSchedule(t *testing.T) {
	h := newPickupServiceTest(t)
	user := h.seedUser(t)
	entry := h.seedStock(t, 10)

	_, err := h.svc.CreateSingle(context.Background(), CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-10",
		Time:       "09:00",
		Quantity:   1,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateBatchSharesOneCodeAndEmitsOneEvent(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	siteID := uuid.New()

	entryA := models.StockEntry{ID: uuid.New(), MedicineID: uuid.New(), SiteID: siteID, Quantity: 10, Status: enums.StockLow}
	entryB := models.StockEntry{ID: uuid.New(), MedicineID: uuid.New(), SiteID: siteID, Quantity: 10, Status: enums.StockLow}
	require.NoError(t, h.conn.Create(&entryA).Error)
	require.NoError(t, h.conn.Create(&entryB).Error)

	result, err := h.svc.CreateBatch(ctx, CreateBatchInput{
		UserID: user.ID,
		SiteID: siteID,
		Date:   "2026-03-11",
		Time:   "10:30",
		Items: []BatchItem{
			{MedicineID: entryA.MedicineID, Quantity: 2},
			{MedicineID: entryB.MedicineID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	assert.Regexp(t, batchCodePattern, result.BatchCode)
	require.Len(t, result.Pickups, 2)
	for _, p := range result.Pickups {
		assert.Equal(t, result.BatchCode, p.BatchCode)
		assert.Equal(t, enums.PickupProgrammed, p.State)
	}
	assert.Equal(t, 8, h.stockQuantity(t, entryA.ID))
	assert.Equal(t, 7, h.stockQuantity(t, entryB.ID))

	require.Len(t, h.emitter.events, 1)
	assert.Equal(t, enums.EventPickupsCreatedBatch, h.emitter.events[0].EventType)
}

func TestCreateBatchRollsBackWhenOneLineOversells(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	siteID := uuid.New()

	entryA := models.StockEntry{ID: uuid.New(), MedicineID: uuid.New(), SiteID: siteID, Quantity: 10, Status: enums.StockLow}
	entryB := models.StockEntry{ID: uuid.New(), MedicineID: uuid.New(), SiteID: siteID, Quantity: 1, Status: enums.StockLow}
	require.NoError(t, h.conn.Create(&entryA).Error)
	require.NoError(t, h.conn.Create(&entryB).Error)

	_, err := h.svc.CreateBatch(ctx, CreateBatchInput{
		UserID: user.ID,
		SiteID: siteID,
		Date:   "2026-03-11",
		Time:   "10:30",
		Items: []BatchItem{
			{MedicineID: entryA.MedicineID, Quantity: 2},
			{MedicineID: entryB.MedicineID, Quantity: 4},
		},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	assert.Equal(t, 10, h.stockQuantity(t, entryA.ID), "partial debits roll back with the batch")
	assert.Equal(t, 1, h.stockQuantity(t, entryB.ID))
}

func TestCreateBatchRejectsDuplicateMedicine(t *testing.T) {
	h := newPickupServiceTest(t)
	user := h.seedUser(t)
	medicineID := uuid.New()

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		UserID: user.ID,
		SiteID: uuid.New(),
		Date:   "2026-03-11",
		Time:   "10:30",
		Items: []BatchItem{
			{MedicineID: medicineID, Quantity: 1},
			{MedicineID: medicineID, Quantity: 2},
		},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCancelCreditsStockExactlyOnce(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   6,
	})
	require.NoError(t, err)
	require.Equal(t, 14, h.stockQuantity(t, entry.ID))

	cancelled, err := h.svc.UpdateState(ctx, dto.ID, enums.PickupCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.PickupCancelled, cancelled.State)
	assert.Equal(t, 20, h.stockQuantity(t, entry.ID), "cancellation returns reserved units")

	_, err = h.svc.UpdateState(ctx, dto.ID, enums.PickupCancelled)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, 20, h.stockQuantity(t, entry.ID), "a repeated cancel never double-credits")
}

func TestFulfilmentConsumesStock(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   6,
	})
	require.NoError(t, err)

	fulfilled, err := h.svc.UpdateState(ctx, dto.ID, enums.PickupFulfilled)
	require.NoError(t, err)
	assert.Equal(t, enums.PickupFulfilled, fulfilled.State)
	assert.Equal(t, 14, h.stockQuantity(t, entry.ID), "fulfilment keeps the debit")

	_, err = h.svc.UpdateState(ctx, fulfilled.ID, enums.PickupCancelled)
	require.Error(t, err, "terminal states admit no further transition")
}

func TestExpireOverdueIsIdempotentAndKeepsDebit(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-10",
		Time:       "11:00",
		Quantity:   5,
	})
	require.NoError(t, err)
	require.Equal(t, 15, h.stockQuantity(t, entry.ID))

	// Not yet past the grace period.
	h.now = time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC)
	count, err := h.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	h.now = time.Date(2026, 3, 10, 12, 1, 0, 0, time.UTC)
	count, err = h.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := h.svc.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PickupExpired, expired.State)
	assert.Equal(t, 15, h.stockQuantity(t, entry.ID), "expiry consumes the reservation")

	count, err = h.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "a second sweep finds nothing")
}

func TestDeleteRequiresTerminalState(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   2,
	})
	require.NoError(t, err)

	err = h.svc.Delete(ctx, dto.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	_, err = h.svc.UpdateState(ctx, dto.ID, enums.PickupCancelled)
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(ctx, dto.ID))

	_, err = h.svc.GetByID(ctx, dto.ID)
	require.Error(t, err)
}

func TestRescheduleResetsNotifiedFlag(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   2,
	})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.Pickup{}).Where("id = ?", dto.ID).Update("notified", true).Error)

	updated, err := h.svc.Reschedule(ctx, dto.ID, RescheduleInput{Date: "2026-03-12", Time: "16:00"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-12", updated.ScheduledDate)
	assert.Equal(t, "16:00", updated.ScheduledTime)
	assert.Equal(t, updated.ScheduledAt.Add(ExpiryGrace), updated.ExpiresAt)
	assert.False(t, updated.Notified, "the reminder must refire for the new instant")
}

func TestRescheduleRejectsTerminalPickup(t *testing.T) {
	h := newPickupServiceTest(t)
	ctx := context.Background()
	user := h.seedUser(t)
	entry := h.seedStock(t, 20)

	dto, err := h.svc.CreateSingle(ctx, CreatePickupInput{
		UserID:     user.ID,
		MedicineID: entry.MedicineID,
		SiteID:     entry.SiteID,
		Date:       "2026-03-11",
		Time:       "10:30",
		Quantity:   2,
	})
	require.NoError(t, err)
	_, err = h.svc.UpdateState(ctx, dto.ID, enums.PickupFulfilled)
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, dto.ID, RescheduleInput{Date: "2026-03-12", Time: "16:00"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}
