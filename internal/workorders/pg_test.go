package workorders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
	"github.com/Spok95/workstock/internal/infra/db"
	"github.com/Spok95/workstock/internal/testutil"
	"github.com/Spok95/workstock/internal/workorders"
)

func TestPostgres_EndToEnd(t *testing.T) {
	pool := testutil.Pool(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mats := materials.NewRepo(pool)
	ords := orders.NewRepo(pool)
	svc := workorders.New(workorders.Deps{
		Materials: mats,
		Orders:    ords,
		Ledger:    ledger.NewRepo(pool),
		Locker:    db.NewAdvisoryLocker(pool, log),
		Log:       log,
	})

	m, err := mats.Create(ctx, materials.NewMaterial{
		Name: "Fio 2,5mm", SKU: "FIO-25", Unit: "m", UnitCost: decimal.RequireFromString("3.33"), QuantityOnHand: 10,
	})
	require.NoError(t, err)

	o, err := ords.Create(ctx, orders.NewOrder{ServiceType: "elétrica", Address: "Rua D, 4"})
	require.NoError(t, err)
	other, err := ords.Create(ctx, orders.NewOrder{ServiceType: "elétrica", Address: "Rua E, 5"})
	require.NoError(t, err)

	// two orders race twice each for 10 units in chunks of 4: each order gets
	// exactly one link, repeats fail as duplicates or on stock
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range []int64{o.ID, other.ID, o.ID, other.ID} {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			_, err := svc.AddMaterialToOrder(ctx, orderID, m.ID, 4)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, workorders.ErrAlreadyLinked) || errors.Is(err, workorders.ErrInsufficientStock), err)
		assert.False(t, workorders.IsCritical(err))
	}
	assert.Equal(t, 2, ok)

	got, err := mats.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.QuantityOnHand)

	b, err := svc.RecomputeBudgetInput(ctx, o.ID, "50,00")
	require.NoError(t, err)
	assert.Equal(t, "13.32", b.Materials.StringFixed(2))
	assert.Equal(t, "63.32", b.Total.StringFixed(2))

	sent, err := svc.SendBudget(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAwaitingApproval, sent.Status)

	approved, err := svc.ApproveBudget(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusInProgress, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	lines, err := svc.ListOrderMaterials(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	_, err = svc.RemoveEntry(ctx, lines[0].ID)
	require.NoError(t, err)

	got, err = mats.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.QuantityOnHand)
}
