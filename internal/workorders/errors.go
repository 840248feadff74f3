package workorders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidLaborCost  = errors.New("labor cost must be a non-negative number")
	ErrMaterialNotFound  = errors.New("material not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyLinked     = errors.New("material already linked to this order")
	ErrBudgetNotComputed = errors.New("budget not computed or zero")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InsufficientStockError is returned when a request exceeds what is on hand.
// Nothing is reserved or debited in that case.
type InsufficientStockError struct {
	MaterialID int64
	Name       string
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (material %d): available %d, requested %d",
		e.Name, e.MaterialID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Step names the half of a two-step operation.
type Step string

const (
	StepLedgerLink     Step = "ledger_link"
	StepLedgerUnlink   Step = "ledger_unlink"
	StepLedgerQuantity Step = "ledger_quantity"
	StepStockDebit     Step = "stock_debit"
	StepStockCredit    Step = "stock_credit"
)

// InconsistencyError reports that the ledger change was committed but the
// matching stock change was not, so the two stores disagree. Retrying is
// unsafe; an operator has to reconcile using the fields below.
type InconsistencyError struct {
	IncidentID string
	Op         string
	OrderID    int64
	MaterialID int64
	EntryID    int64
	Quantity   int64
	Completed  Step
	Failed     Step
	Err        error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("critical inconsistency [%s] in %s: %s done but %s failed (order %d, material %d, entry %d, qty %d): %v",
		e.IncidentID, e.Op, e.Completed, e.Failed, e.OrderID, e.MaterialID, e.EntryID, e.Quantity, e.Err)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }

// IsCritical reports whether err carries an InconsistencyError.
func IsCritical(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}
