package workorders

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
)

// memDB backs the three store fakes with the same guarantees the Postgres
// repos give: conditional debit, unique (order, material), guarded transitions.
type memDB struct {
	mu        sync.Mutex
	materials map[int64]materials.Material
	orders    map[int64]orders.Order
	entries   map[int64]ledger.Entry
	nextEntry int64

	failDebit  error
	failCredit error
	failLink   error
}

func newMemDB() *memDB {
	return &memDB{
		materials: make(map[int64]materials.Material),
		orders:    make(map[int64]orders.Order),
		entries:   make(map[int64]ledger.Entry),
	}
}

func (db *memDB) addMaterial(id int64, name string, cost string, onHand int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.materials[id] = materials.Material{
		ID:             id,
		Name:           name,
		SKU:            fmt.Sprintf("SKU-%d", id),
		UnitCost:       decimal.RequireFromString(cost),
		QuantityOnHand: onHand,
	}
}

func (db *memDB) addOrder(id int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.orders[id] = orders.Order{
		ID:          id,
		ServiceType: "painting",
		Address:     "Rua A, 10",
		Priority:    orders.PriorityMedium,
		Status:      orders.StatusOpen,
		Budget:      orders.Budget{Materials: decimal.Zero, Labor: decimal.Zero, Total: decimal.Zero},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func (db *memDB) stock(id int64) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.materials[id].QuantityOnHand
}

func (db *memDB) order(id int64) orders.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) entryCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.entries)
}

type memMaterials struct{ db *memDB }

func (r memMaterials) GetByID(_ context.Context, id int64) (materials.Material, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.materials[id]
	if !ok {
		return materials.Material{}, materials.ErrNotFound
	}
	return m, nil
}

func (r memMaterials) Debit(_ context.Context, id, qty int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failDebit != nil {
		return 0, r.db.failDebit
	}
	m, ok := r.db.materials[id]
	if !ok {
		return 0, materials.ErrNotFound
	}
	if m.QuantityOnHand < qty {
		return m.QuantityOnHand, materials.ErrInsufficientStock
	}
	m.QuantityOnHand -= qty
	r.db.materials[id] = m
	return m.QuantityOnHand, nil
}

func (r memMaterials) Credit(_ context.Context, id, qty int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failCredit != nil {
		return 0, r.db.failCredit
	}
	m, ok := r.db.materials[id]
	if !ok {
		return 0, materials.ErrNotFound
	}
	m.QuantityOnHand += qty
	r.db.materials[id] = m
	return m.QuantityOnHand, nil
}

type memOrders struct{ db *memDB }

func (r memOrders) GetByID(_ context.Context, id int64) (orders.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (r memOrders) UpdateStatus(_ context.Context, id int64, status orders.Status) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	r.db.orders[id] = o
	return nil
}

func (r memOrders) UpdateBudget(_ context.Context, id int64, b orders.Budget) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if !b.Total.Equal(b.Materials.Add(b.Labor)) {
		return fmt.Errorf("orders_budget_total_chk violated")
	}
	o.Budget = b
	r.db.orders[id] = o
	return nil
}

func (r memOrders) Transition(_ context.Context, id int64, t orders.Transition) (orders.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	if !slices.Contains(t.From, o.Status) || (t.RequireBudget && !o.Budget.Total.IsPositive()) {
		return orders.Order{}, orders.ErrStateChanged
	}
	now := time.Now()
	o.Status = t.To
	if t.StampSent {
		o.BudgetSentAt = &now
	}
	if t.StampApproved {
		o.ApprovedAt = &now
	}
	o.UpdatedAt = now
	r.db.orders[id] = o
	return o, nil
}

type memLedger struct{ db *memDB }

func (r memLedger) Link(_ context.Context, p ledger.LinkParams) (ledger.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failLink != nil {
		return ledger.Entry{}, r.db.failLink
	}
	if p.Quantity <= 0 {
		return ledger.Entry{}, ledger.ErrInvalidQuantity
	}
	for _, e := range r.db.entries {
		if e.OrderID == p.OrderID && e.MaterialID == p.MaterialID {
			return ledger.Entry{}, ledger.ErrDuplicate
		}
	}
	r.db.nextEntry++
	e := ledger.Entry{
		ID:         r.db.nextEntry,
		OrderID:    p.OrderID,
		MaterialID: p.MaterialID,
		Quantity:   p.Quantity,
		UnitCost:   p.UnitCost,
		CreatedAt:  time.Now(),
	}
	r.db.entries[e.ID] = e
	return e, nil
}

func (r memLedger) Get(_ context.Context, id int64) (ledger.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

func (r memLedger) Unlink(_ context.Context, id int64) (ledger.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	delete(r.db.entries, id)
	return e, nil
}

func (r memLedger) ListForOrder(_ context.Context, orderID int64) ([]ledger.Line, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []ledger.Line
	for _, e := range r.db.entries {
		if e.OrderID != orderID {
			continue
		}
		m := r.db.materials[e.MaterialID]
		out = append(out, ledger.Line{Entry: e, MaterialName: m.Name, MaterialSKU: m.SKU})
	}
	slices.SortFunc(out, func(a, b ledger.Line) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r memLedger) UpdateQuantity(_ context.Context, id, qty int64) (ledger.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if qty <= 0 {
		return ledger.Entry{}, ledger.ErrInvalidQuantity
	}
	e, ok := r.db.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	e.Quantity = qty
	r.db.entries[id] = e
	return e, nil
}

type recordingAlerter struct {
	mu       sync.Mutex
	critical []*InconsistencyError
	lowStock []materials.Material
}

func (a *recordingAlerter) CriticalInconsistency(_ context.Context, e *InconsistencyError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.critical = append(a.critical, e)
}

func (a *recordingAlerter) LowStock(_ context.Context, m materials.Material) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lowStock = append(a.lowStock, m)
}

type fixture struct {
	db      *memDB
	svc     *Service
	alerts  *recordingAlerter
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	alerts := &recordingAlerter{}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := New(Deps{
		Materials:   memMaterials{db},
		Orders:      memOrders{db},
		Ledger:      memLedger{db},
		Locker:      NewLocalLocker(),
		Alerter:     alerts,
		Metrics:     metrics,
		LockTimeout: time.Second,
	})
	require.NotNil(t, svc)
	return &fixture{db: db, svc: svc, alerts: alerts, metrics: metrics}
}
