package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/pkg/db/models"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	medicines := `
CREATE TABLE IF NOT EXISTS medicines (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	sites := `
CREATE TABLE IF NOT EXISTS sites (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	stockEntries := `
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
	require.NoError(t, conn.Exec(medicines).Error)
	require.NoError(t, conn.Exec(sites).Error)
	require.NoError(t, conn.Exec(stockEntries).Error)
	require.NoError(t, conn.Exec("DELETE FROM stock_entries").Error)
	require.NoError(t, conn.Exec("DELETE FROM medicines").Error)
	require.NoError(t, conn.Exec("DELETE FROM sites").Error)
	return conn
}

func seedEntry(t *testing.T, conn *gorm.DB, quantity int) models.StockEntry {
	t.Helper()
	entry := models.StockEntry{
		ID:         uuid.New(),
		MedicineID: uuid.New(),
		SiteID:     uuid.New(),
		Quantity:   quantity,
		Status:     enums.StockStatusFor(quantity),
	}
	require.NoError(t, conn.Create(&entry).Error)
	return entry
}

func reload(t *testing.T, conn *gorm.DB, id uuid.UUID) models.StockEntry {
	t.Helper()
	var entry models.StockEntry
	require.NoError(t, conn.First(&entry, "id = ?", id).Error)
	return entry
}

func TestDebitGuardsAgainstOversell(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	entry := seedEntry(t, conn, 5)

	ok, err := repo.Debit(ctx, entry.ID, 8)
	require.NoError(t, err)
	assert.False(t, ok, "debit beyond on-hand units must lose")
	assert.Equal(t, 5, reload(t, conn, entry.ID).Quantity)

	ok, err = repo.Debit(ctx, entry.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	after := reload(t, conn, entry.ID)
	assert.Equal(t, 0, after.Quantity)
	assert.Equal(t, enums.StockExhausted, after.Status)
}

func TestConcurrentDebitsNeverOversell(t *testing.T) {
	conn := setupStockTestDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// sqlite rejects overlapping writers; a single-connection pool serializes
	// them the way Postgres row locks would.
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(conn)
	ctx := context.Background()
	entry := seedEntry(t, conn, 10)

	outcomes := make(chan bool, 2)
	failures := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Debit(ctx, entry.ID, 6)
			outcomes <- ok
			failures <- err
		}()
	}
	wg.Wait()
	close(outcomes)
	close(failures)

	for err := range failures {
		require.NoError(t, err)
	}
	wins := 0
	for ok := range outcomes {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one of two simultaneous debits may win")

	after := reload(t, conn, entry.ID)
	assert.Equal(t, 4, after.Quantity)
	assert.Equal(t, enums.StockLow, after.Status)
}

func TestDebitRecomputesDerivedStatus(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	entry := seedEntry(t, conn, 25)

	ok, err := repo.Debit(ctx, entry.ID, 15)
	require.NoError(t, err)
	require.True(t, ok)

	after := reload(t, conn, entry.ID)
	assert.Equal(t, 10, after.Quantity)
	assert.Equal(t, enums.StockLow, after.Status, "quantity at the threshold reads low")
}

func TestCreditRecomputesDerivedStatus(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	entry := seedEntry(t, conn, 0)

	ok, err := repo.Credit(ctx, entry.ID, 11)
	require.NoError(t, err)
	require.True(t, ok)

	after := reload(t, conn, entry.ID)
	assert.Equal(t, 11, after.Quantity)
	assert.Equal(t, enums.StockAvailable, after.Status)
}

func TestAdjustClampedFloorsAtZero(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	entry := seedEntry(t, conn, 4)

	ok, err := repo.AdjustClamped(ctx, entry.ID, -9)
	require.NoError(t, err)
	require.True(t, ok)

	after := reload(t, conn, entry.ID)
	assert.Equal(t, 0, after.Quantity)
	assert.Equal(t, enums.StockExhausted, after.Status)
}

func TestSearchMatchesMedicineAndSiteNames(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	medicine := models.Medicine{ID: uuid.New(), Name: "Amoxicilina 500mg"}
	site := models.Site{ID: uuid.New(), Name: "Sede Central"}
	require.NoError(t, conn.Create(&medicine).Error)
	require.NoError(t, conn.Create(&site).Error)
	entry := models.StockEntry{
		ID:         uuid.New(),
		MedicineID: medicine.ID,
		SiteID:     site.ID,
		Quantity:   30,
		Status:     enums.StockAvailable,
	}
	require.NoError(t, conn.Create(&entry).Error)

	byMedicine, err := repo.Search(ctx, "amoxi")
	require.NoError(t, err)
	require.Len(t, byMedicine, 1)
	assert.Equal(t, "Amoxicilina 500mg", byMedicine[0].MedicineName)
	assert.Equal(t, "Sede Central", byMedicine[0].SiteName)

	bySite, err := repo.Search(ctx, "central")
	require.NoError(t, err)
	assert.Len(t, bySite, 1)

	none, err := repo.Search(ctx, "ibuprofeno")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSummaryCountsPerStatus(t *testing.T) {
	conn := setupStockTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seedEntry(t, conn, 50)
	seedEntry(t, conn, 7)
	seedEntry(t, conn, 0)
	seedEntry(t, conn, 0)

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Available)
	assert.Equal(t, int64(1), summary.LowStock)
	assert.Equal(t, int64(2), summary.Exhausted)
	assert.Equal(t, int64(4), summary.Total)
}
