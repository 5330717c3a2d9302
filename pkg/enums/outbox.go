package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateStockEntry OutboxAggregateType = "stock_entry"
	AggregatePickup     OutboxAggregateType = "pickup"
	AggregateBatch      OutboxAggregateType = "pickup_batch"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockEntry,
	AggregatePickup,
	AggregateBatch,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres. The string values
// double as the event names broadcast to subscribers.
type OutboxEventType string

const (
	EventStockCreated        OutboxEventType = "stockCreated"
	EventStockUpdated        OutboxEventType = "stockUpdated"
	EventStockDeleted        OutboxEventType = "stockDeleted"
	EventPickupCreated       OutboxEventType = "pickupCreated"
	EventPickupsCreatedBatch OutboxEventType = "pickupsCreatedBatch"
	EventPickupUpdated       OutboxEventType = "pickupUpdated"
	EventPickupDeleted       OutboxEventType = "pickupDeleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockCreated,
	EventStockUpdated,
	EventStockDeleted,
	EventPickupCreated,
	EventPickupsCreatedBatch,
	EventPickupUpdated,
	EventPickupDeleted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
