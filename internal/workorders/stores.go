package workorders

import (
	"context"
	"sync"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
)

// Materials is the slice of the inventory store the engine needs.
type Materials interface {
	GetByID(ctx context.Context, id int64) (materials.Material, error)
	// Debit must be a conditional decrement: it fails with
	// materials.ErrInsufficientStock instead of going below zero.
	Debit(ctx context.Context, id, qty int64) (int64, error)
	Credit(ctx context.Context, id, qty int64) (int64, error)
}

type Orders interface {
	GetByID(ctx context.Context, id int64) (orders.Order, error)
	UpdateStatus(ctx context.Context, id int64, status orders.Status) error
	UpdateBudget(ctx context.Context, id int64, b orders.Budget) error
	Transition(ctx context.Context, id int64, t orders.Transition) (orders.Order, error)
}

type Ledger interface {
	Link(ctx context.Context, p ledger.LinkParams) (ledger.Entry, error)
	Get(ctx context.Context, entryID int64) (ledger.Entry, error)
	Unlink(ctx context.Context, entryID int64) (ledger.Entry, error)
	ListForOrder(ctx context.Context, orderID int64) ([]ledger.Line, error)
	UpdateQuantity(ctx context.Context, entryID, qty int64) (ledger.Entry, error)
}

// MaterialLocker serialises stock work per material. release must be called
// exactly once on every path once the lock is held.
type MaterialLocker interface {
	LockMaterial(ctx context.Context, materialID int64) (release func(), err error)
}

// Alerter receives events that need a human.
type Alerter interface {
	CriticalInconsistency(ctx context.Context, e *InconsistencyError)
	LowStock(ctx context.Context, m materials.Material)
}

type nopAlerter struct{}

func (nopAlerter) CriticalInconsistency(context.Context, *InconsistencyError) {}
func (nopAlerter) LowStock(context.Context, materials.Material)               {}

// LocalLocker is an in-process MaterialLocker. It is enough when a single
// process owns the database; otherwise use the Postgres advisory locker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]chan struct{})}
}

func (l *LocalLocker) LockMaterial(ctx context.Context, materialID int64) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[materialID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[materialID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
