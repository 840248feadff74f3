package workorders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
)

const (
	opAdd    = "add_material"
	opRemove = "remove_material"
	opChange = "change_quantity"
)

// ParseQuantity turns form input into a quantity for the operations below.
func ParseQuantity(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, raw)
	}
	return n, nil
}

// AddMaterialToOrder reserves qty units of a material for an order and takes
// them off the shelf. The material stays locked from the stock check until
// the debit, so concurrent callers cannot both pass the check.
func (s *Service) AddMaterialToOrder(ctx context.Context, orderID, materialID, qty int64) (e ledger.Entry, err error) {
	defer func() { s.metrics.StockOps.WithLabelValues(opAdd, result(err)).Inc() }()

	if qty <= 0 {
		return ledger.Entry{}, ErrInvalidQuantity
	}
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return ledger.Entry{}, err
	}

	release, err := s.lockMaterial(ctx, materialID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("lock material %d: %w", materialID, err)
	}
	defer release()

	m, err := s.getMaterial(ctx, materialID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if qty > m.QuantityOnHand {
		return ledger.Entry{}, &InsufficientStockError{
			MaterialID: m.ID,
			Name:       m.Name,
			Available:  m.QuantityOnHand,
			Requested:  qty,
		}
	}

	e, err = s.ledger.Link(ctx, ledger.LinkParams{
		OrderID:    orderID,
		MaterialID: materialID,
		Quantity:   qty,
		UnitCost:   m.UnitCost,
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicate):
		return ledger.Entry{}, fmt.Errorf("%w (%w): order %d, material %q", ErrAlreadyLinked, err, orderID, m.Name)
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return ledger.Entry{}, fmt.Errorf("%w (%w)", ErrInvalidQuantity, err)
	case err != nil:
		return ledger.Entry{}, fmt.Errorf("link material %d to order %d: %w", materialID, orderID, err)
	}

	left, err := s.materials.Debit(ctx, materialID, qty)
	if err != nil {
		return e, s.inconsistent(ctx, &InconsistencyError{
			Op:         opAdd,
			OrderID:    orderID,
			MaterialID: materialID,
			EntryID:    e.ID,
			Quantity:   qty,
			Completed:  StepLedgerLink,
			Failed:     StepStockDebit,
			Err:        err,
		})
	}

	s.log.Info("material added to order",
		"order_id", orderID, "material_id", materialID, "entry_id", e.ID,
		"qty", qty, "unit_cost", m.UnitCost.String(), "stock_before", m.QuantityOnHand, "stock_after", left)
	s.checkLowStock(ctx, m, left)
	return e, nil
}

// RemoveMaterialFromOrder deletes a ledger entry and puts qty back on the
// shelf. qty is what the caller asks to restore; RemoveEntry restores the
// recorded quantity instead.
func (s *Service) RemoveMaterialFromOrder(ctx context.Context, entryID, materialID, qty int64) (ledger.Entry, error) {
	if qty <= 0 {
		s.metrics.StockOps.WithLabelValues(opRemove, result(ErrInvalidQuantity)).Inc()
		return ledger.Entry{}, ErrInvalidQuantity
	}
	return s.removeEntry(ctx, entryID, materialID, qty)
}

// RemoveEntry unlinks an entry and restores exactly the quantity it held at
// the moment it was deleted.
func (s *Service) RemoveEntry(ctx context.Context, entryID int64) (ledger.Entry, error) {
	cur, err := s.getEntry(ctx, entryID)
	if err != nil {
		s.metrics.StockOps.WithLabelValues(opRemove, result(err)).Inc()
		return ledger.Entry{}, err
	}
	return s.removeEntry(ctx, entryID, cur.MaterialID, 0)
}

// removeEntry unlinks under the material lock. qty 0 restores whatever the
// deleted row held, so a quantity change racing ahead of the lock is honoured.
func (s *Service) removeEntry(ctx context.Context, entryID, materialID, qty int64) (e ledger.Entry, err error) {
	defer func() { s.metrics.StockOps.WithLabelValues(opRemove, result(err)).Inc() }()

	release, err := s.lockMaterial(ctx, materialID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("lock material %d: %w", materialID, err)
	}
	defer release()

	m, err := s.getMaterial(ctx, materialID)
	if err != nil {
		return ledger.Entry{}, err
	}

	cur, err := s.getEntry(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if cur.MaterialID != materialID {
		return ledger.Entry{}, fmt.Errorf("%w: entry %d does not hold material %d", ErrEntryNotFound, entryID, materialID)
	}
	if qty != 0 && cur.Quantity != qty {
		s.log.Warn("restoring a quantity different from the reserved one",
			"entry_id", entryID, "material_id", materialID, "reserved", cur.Quantity, "restore", qty)
	}

	e, err = s.ledger.Unlink(ctx, entryID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, entryID)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("unlink entry %d: %w", entryID, err)
	}
	if qty == 0 {
		qty = e.Quantity
	}

	left, err := s.materials.Credit(ctx, materialID, qty)
	if err != nil {
		return e, s.inconsistent(ctx, &InconsistencyError{
			Op:         opRemove,
			OrderID:    e.OrderID,
			MaterialID: materialID,
			EntryID:    entryID,
			Quantity:   qty,
			Completed:  StepLedgerUnlink,
			Failed:     StepStockCredit,
			Err:        err,
		})
	}

	s.log.Info("material removed from order",
		"order_id", e.OrderID, "material_id", materialID, "entry_id", entryID,
		"qty", qty, "stock_before", m.QuantityOnHand, "stock_after", left)
	return e, nil
}

// ChangeMaterialQuantity sets a new reserved quantity on an entry and moves
// the difference between shelf and order. The frozen unit cost is kept.
func (s *Service) ChangeMaterialQuantity(ctx context.Context, entryID, qty int64) (e ledger.Entry, err error) {
	defer func() { s.metrics.StockOps.WithLabelValues(opChange, result(err)).Inc() }()

	if qty <= 0 {
		return ledger.Entry{}, ErrInvalidQuantity
	}
	cur, err := s.getEntry(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}

	release, err := s.lockMaterial(ctx, cur.MaterialID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("lock material %d: %w", cur.MaterialID, err)
	}
	defer release()

	// re-read under the lock
	if cur, err = s.getEntry(ctx, entryID); err != nil {
		return ledger.Entry{}, err
	}
	delta := qty - cur.Quantity
	if delta == 0 {
		return cur, nil
	}

	m, err := s.getMaterial(ctx, cur.MaterialID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if delta > m.QuantityOnHand {
		return ledger.Entry{}, &InsufficientStockError{
			MaterialID: m.ID,
			Name:       m.Name,
			Available:  m.QuantityOnHand,
			Requested:  delta,
		}
	}

	e, err = s.ledger.UpdateQuantity(ctx, entryID, qty)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, entryID)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("update entry %d quantity: %w", entryID, err)
	}

	var left int64
	if delta > 0 {
		left, err = s.materials.Debit(ctx, cur.MaterialID, delta)
	} else {
		left, err = s.materials.Credit(ctx, cur.MaterialID, -delta)
	}
	if err != nil {
		failed := StepStockDebit
		if delta < 0 {
			failed = StepStockCredit
		}
		return e, s.inconsistent(ctx, &InconsistencyError{
			Op:         opChange,
			OrderID:    cur.OrderID,
			MaterialID: cur.MaterialID,
			EntryID:    entryID,
			Quantity:   delta,
			Completed:  StepLedgerQuantity,
			Failed:     failed,
			Err:        err,
		})
	}

	s.log.Info("order material quantity changed",
		"order_id", cur.OrderID, "material_id", cur.MaterialID, "entry_id", entryID,
		"from", cur.Quantity, "to", qty, "stock_after", left)
	if delta > 0 {
		s.checkLowStock(ctx, m, left)
	}
	return e, nil
}

// ListOrderMaterials returns the order's ledger lines with material names.
func (s *Service) ListOrderMaterials(ctx context.Context, orderID int64) ([]ledger.Line, error) {
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.ledger.ListForOrder(ctx, orderID)
}

func (s *Service) inconsistent(ctx context.Context, ie *InconsistencyError) error {
	ie.IncidentID = uuid.NewString()
	s.metrics.Inconsistencies.WithLabelValues(ie.Op, string(ie.Failed)).Inc()
	s.log.Error("CRITICAL: ledger and stock diverged, manual reconciliation required",
		"incident_id", ie.IncidentID,
		"op", ie.Op,
		"order_id", ie.OrderID,
		"material_id", ie.MaterialID,
		"entry_id", ie.EntryID,
		"qty", ie.Quantity,
		"completed", ie.Completed,
		"failed", ie.Failed,
		"err", ie.Err,
	)
	s.alerter.CriticalInconsistency(ctx, ie)
	return ie
}

func (s *Service) checkLowStock(ctx context.Context, m materials.Material, left int64) {
	m.QuantityOnHand = left
	if m.BelowReorder() {
		s.log.Warn("material at reorder threshold",
			"material_id", m.ID, "sku", m.SKU, "on_hand", left, "threshold", m.ReorderThreshold)
		s.alerter.LowStock(ctx, m)
	}
}

func (s *Service) getMaterial(ctx context.Context, id int64) (materials.Material, error) {
	m, err := s.materials.GetByID(ctx, id)
	if errors.Is(err, materials.ErrNotFound) {
		return materials.Material{}, fmt.Errorf("%w: %d", ErrMaterialNotFound, id)
	}
	if err != nil {
		return materials.Material{}, fmt.Errorf("get material %d: %w", id, err)
	}
	return m, nil
}

func (s *Service) getOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

func (s *Service) getEntry(ctx context.Context, id int64) (ledger.Entry, error) {
	e, err := s.ledger.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Entry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}
