package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("ledger entry not found")
	ErrDuplicate       = errors.New("material already linked to order")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// Entry commits Quantity units of a material to an order at the unit cost the
// material had when it was linked. UnitCost never follows later price edits.
type Entry struct {
	ID         int64
	OrderID    int64
	MaterialID int64
	Quantity   int64
	UnitCost   decimal.Decimal
	CreatedAt  time.Time
}

func (e Entry) LineTotal() decimal.Decimal {
	return e.UnitCost.Mul(decimal.NewFromInt(e.Quantity))
}

// Line is an Entry joined with the material's current display fields.
type Line struct {
	Entry
	MaterialName string
	MaterialSKU  string
}

type LinkParams struct {
	OrderID    int64
	MaterialID int64
	Quantity   int64
	UnitCost   decimal.Decimal
}
