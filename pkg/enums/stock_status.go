package enums

import "fmt"

// StockStatus maps to the stock_status enum in Postgres. It is always derived
// from the quantity, never set directly by clients (admin override excepted).
type StockStatus string

const (
	StockAvailable StockStatus = "available"
	StockLow       StockStatus = "low_stock"
	StockExhausted StockStatus = "exhausted"
)

// LowStockThreshold is the inclusive quantity ceiling for the low_stock state.
const LowStockThreshold = 10

var validStockStatuses = []StockStatus{
	StockAvailable,
	StockLow,
	StockExhausted,
}

// IsValid reports whether the value matches the canonical stock_status enum.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

// StockStatusFor derives the status for a quantity.
func StockStatusFor(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockExhausted
	case quantity <= LowStockThreshold:
		return StockLow
	default:
		return StockAvailable
	}
}
