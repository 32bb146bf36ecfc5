package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// ProductLine is one priced item in a lead's product ledger.
type ProductLine struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	ProductID      string
	Description    string
	Quantity       float64
	UnitPriceCents int64
	TotalCents     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LineInput is the caller-supplied part of a product line.
type LineInput struct {
	ProductID      string
	Description    string
	Quantity       float64
	UnitPriceCents int64
}

// Validate checks quantity and price bounds.
func (in LineInput) Validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return apperr.Validation("product reference is required")
	}
	return ValidateQuantityAndPrice(in.Quantity, in.UnitPriceCents)
}

// Per-line caps. MaxQuantity × MaxUnitPriceCents stays below math.MaxInt64,
// so a single line total always fits.
const (
	MaxQuantity       = 1_000_000
	MaxUnitPriceCents = 1_000_000_000_000
)

// ErrValueOverflow is returned when the summed line totals of a lead no
// longer fit in int64 cents.
var ErrValueOverflow = errors.New("lead value exceeds the supported range")

// ValidateQuantityAndPrice enforces 0 < quantity <= MaxQuantity and
// 0 <= unit price <= MaxUnitPriceCents.
func ValidateQuantityAndPrice(quantity float64, unitPriceCents int64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	if quantity > MaxQuantity {
		return apperr.Validation("quantity exceeds the maximum").
			WithDetails(map[string]interface{}{"max": MaxQuantity})
	}
	if unitPriceCents < 0 {
		return apperr.Validation("unit price must not be negative")
	}
	if unitPriceCents > MaxUnitPriceCents {
		return apperr.Validation("unit price exceeds the maximum").
			WithDetails(map[string]interface{}{"max": int64(MaxUnitPriceCents)})
	}
	return nil
}

// LineTotalCents rounds quantity × unit price to the nearest cent.
func LineTotalCents(quantity float64, unitPriceCents int64) int64 {
	return int64(math.Round(quantity * float64(unitPriceCents)))
}

// SumLines recomputes a lead value from scratch. Callers always re-sum the
// full set after a mutation instead of adjusting the previous value. Lines
// read back from storage were summed with CheckedSumLines on write, so the
// result fits.
func SumLines(lines []ProductLine) int64 {
	total, _ := CheckedSumLines(lines)
	return total
}

// CheckedSumLines is SumLines for the write path. It returns
// ErrValueOverflow instead of wrapping when a line total or the running sum
// leaves the int64 range.
func CheckedSumLines(lines []ProductLine) (int64, error) {
	var total int64
	for _, line := range lines {
		product := line.Quantity * float64(line.UnitPriceCents)
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if math.IsNaN(product) || product < 0 || product >= float64(math.MaxInt64) {
			return total, ErrValueOverflow
		}
		lineTotal := int64(math.Round(product))
		if total > math.MaxInt64-lineTotal {
			return total, ErrValueOverflow
		}
		total += lineTotal
	}
	return total, nil
}

// HasBillableLine reports whether at least one line has a positive quantity.
func HasBillableLine(lines []ProductLine) bool {
	for _, line := range lines {
		if line.Quantity > 0 {
			return true
		}
	}
	return false
}
