package materials

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("material not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateSKU      = errors.New("sku already exists")
)

type Material struct {
	ID               int64
	Name             string
	SKU              string
	Unit             string
	UnitCost         decimal.Decimal
	QuantityOnHand   int64
	ReorderThreshold int64
	Supplier         string
	Location         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BelowReorder reports whether stock has reached the reorder threshold.
// A zero threshold disables the alert.
func (m Material) BelowReorder() bool {
	return m.ReorderThreshold > 0 && m.QuantityOnHand <= m.ReorderThreshold
}

type NewMaterial struct {
	Name             string
	SKU              string
	Unit             string
	UnitCost         decimal.Decimal
	QuantityOnHand   int64
	ReorderThreshold int64
	Supplier         string
	Location         string
}
