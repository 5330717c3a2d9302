// Package payloads defines the typed Data bodies stored inside outbox
// envelopes. Shapes here are part of the broadcast contract; add fields,
// never repurpose them.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

// StockEvent backs stockCreated and stockUpdated.
type StockEvent struct {
	StockEntryID uuid.UUID         `json:"stockEntryId"`
	MedicineID   uuid.UUID         `json:"medicineId"`
	SiteID       uuid.UUID         `json:"siteId"`
	Quantity     int               `json:"quantity"`
	Status       enums.StockStatus `json:"status"`
}

// StockDeleted backs stockDeleted.
type StockDeleted struct {
	StockEntryID uuid.UUID `json:"stockEntryId"`
	MedicineID   uuid.UUID `json:"medicineId"`
	SiteID       uuid.UUID `json:"siteId"`
}

// PickupEvent backs pickupCreated and pickupUpdated.
type PickupEvent struct {
	PickupID    uuid.UUID         `json:"pickupId"`
	UserID      uuid.UUID         `json:"userId"`
	MedicineID  uuid.UUID         `json:"medicineId"`
	SiteID      uuid.UUID         `json:"siteId"`
	Quantity    int               `json:"quantity"`
	BatchCode   string            `json:"batchCode"`
	State       enums.PickupState `json:"state"`
	ScheduledAt time.Time         `json:"scheduledAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

// PickupsBatch backs pickupsCreatedBatch.
type PickupsBatch struct {
	BatchCode   string      `json:"batchCode"`
	UserID      uuid.UUID   `json:"userId"`
	SiteID      uuid.UUID   `json:"siteId"`
	PickupIDs   []uuid.UUID `json:"pickupIds"`
	ScheduledAt time.Time   `json:"scheduledAt"`
}

// PickupDeleted backs pickupDeleted.
type PickupDeleted struct {
	PickupID  uuid.UUID `json:"pickupId"`
	UserID    uuid.UUID `json:"userId"`
	BatchCode string    `json:"batchCode"`
}
