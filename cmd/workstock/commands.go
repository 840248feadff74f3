package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
	"github.com/Spok95/workstock/internal/report"
	"github.com/Spok95/workstock/internal/workorders"
)

type materialStore interface {
	Create(ctx context.Context, in materials.NewMaterial) (materials.Material, error)
	List(ctx context.Context) ([]materials.Material, error)
	ListLowStock(ctx context.Context) ([]materials.Material, error)
	SetQuantity(ctx context.Context, id, qty int64) error
}

type orderStore interface {
	Create(ctx context.Context, in orders.NewOrder) (orders.Order, error)
	List(ctx context.Context) ([]orders.Order, error)
}

// app is what a command gets to work with: the engine plus the plain stores.
type app struct {
	svc       *workorders.Service
	materials materialStore
	orders    orderStore
}

type command func(ctx context.Context, a app, f flags, w io.Writer) error

var commands = map[string]command{
	"create-material": createMaterial,
	"list-materials":  listMaterials,
	"set-stock":       setStock,
	"create-order":    createOrder,
	"list-orders":     listOrders,
	"add-material":    addMaterial,
	"remove-material": removeMaterial,
	"remove-entry":    removeEntry,
	"set-quantity":    setQuantity,
	"recompute":       recompute,
	"send-budget":     workflow((*workorders.Service).SendBudget),
	"approve-budget":  workflow((*workorders.Service).ApproveBudget),
	"reject-budget":   workflow((*workorders.Service).RejectBudget),
	"set-status":      setStatus,
	"show":            show,
	"export-budget":   exportBudget,
}

var errMissingFlag = errors.New("missing required flag")

func need(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: --%s", errMissingFlag, name)
	}
	return nil
}

func createMaterial(ctx context.Context, a app, f flags, w io.Writer) error {
	name, sku := strings.TrimSpace(f.name), strings.ToUpper(strings.TrimSpace(f.sku))
	if name == "" || sku == "" || strings.TrimSpace(f.cost) == "" {
		return fmt.Errorf("%w: --name, --sku and --cost", errMissingFlag)
	}
	cost, err := workorders.ParseLaborCost(f.cost)
	if err != nil {
		return fmt.Errorf("invalid --cost %q", f.cost)
	}
	stock := max(f.stock, 0)

	m, err := a.materials.Create(ctx, materials.NewMaterial{
		Name:             name,
		SKU:              sku,
		Unit:             strings.TrimSpace(f.unit),
		UnitCost:         cost,
		QuantityOnHand:   stock,
		ReorderThreshold: max(f.threshold, 0),
		Supplier:         strings.TrimSpace(f.supplier),
		Location:         strings.TrimSpace(f.location),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "material %d: %s (%s) %d %s at %s\n", m.ID, m.Name, m.SKU, m.QuantityOnHand, m.Unit, m.UnitCost.StringFixed(2))
	return nil
}

func listMaterials(ctx context.Context, a app, f flags, w io.Writer) error {
	list := a.materials.List
	if f.low {
		list = a.materials.ListLowStock
	}
	ms, err := list(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSKU\tON HAND\tREORDER AT\tUNIT COST\tLOCATION")
	for _, m := range ms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			m.ID, m.Name, m.SKU, m.QuantityOnHand, m.ReorderThreshold, m.UnitCost.StringFixed(2), m.Location)
	}
	return tw.Flush()
}

// setStock overwrites the level after a stock count. Reserved quantities are
// not touched.
func setStock(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("material", f.material); err != nil {
		return err
	}
	if f.stock < 0 {
		return fmt.Errorf("%w: --stock", errMissingFlag)
	}
	if err := a.materials.SetQuantity(ctx, f.material, f.stock); err != nil {
		return err
	}
	fmt.Fprintf(w, "material %d: %d on hand\n", f.material, f.stock)
	return nil
}

func createOrder(ctx context.Context, a app, f flags, w io.Writer) error {
	st, addr := strings.TrimSpace(f.serviceType), strings.TrimSpace(f.address)
	if st == "" || addr == "" {
		return fmt.Errorf("%w: --service-type and --address", errMissingFlag)
	}
	in := orders.NewOrder{
		ServiceType: st,
		Address:     addr,
		Description: strings.TrimSpace(f.description),
		Priority:    orders.Priority(strings.ToLower(strings.TrimSpace(f.priority))),
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return fmt.Errorf("invalid --priority %q", f.priority)
	}
	if f.due != "" {
		due, err := time.Parse(time.DateOnly, f.due)
		if err != nil {
			return fmt.Errorf("invalid --due %q: want YYYY-MM-DD", f.due)
		}
		in.DueDate = &due
	}

	o, err := a.orders.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "order %d: %s [%s, %s]\n", o.ID, o.ServiceType, o.Status, o.Priority)
	return nil
}

func listOrders(ctx context.Context, a app, _ flags, w io.Writer) error {
	list, err := a.orders.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tSERVICE\tADDRESS\tDUE\tTOTAL")
	for _, o := range list {
		due := "-"
		if o.DueDate != nil {
			due = o.DueDate.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Status, o.Priority, o.ServiceType, o.Address, due, o.Budget.Total.StringFixed(2))
	}
	return tw.Flush()
}

func addMaterial(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := errors.Join(need("order", f.order), need("material", f.material)); err != nil {
		return err
	}
	qty, err := workorders.ParseQuantity(f.qty)
	if err != nil {
		return err
	}
	e, err := a.svc.AddMaterialToOrder(ctx, f.order, f.material, qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "entry %d: order %d material %d qty %d at %s\n", e.ID, e.OrderID, e.MaterialID, e.Quantity, e.UnitCost.StringFixed(2))
	return nil
}

func removeMaterial(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := errors.Join(need("entry", f.entry), need("material", f.material)); err != nil {
		return err
	}
	qty, err := workorders.ParseQuantity(f.qty)
	if err != nil {
		return err
	}
	e, err := a.svc.RemoveMaterialFromOrder(ctx, f.entry, f.material, qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "entry %d removed, %d returned to stock\n", e.ID, qty)
	return nil
}

func removeEntry(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("entry", f.entry); err != nil {
		return err
	}
	e, err := a.svc.RemoveEntry(ctx, f.entry)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "entry %d removed, %d returned to stock\n", e.ID, e.Quantity)
	return nil
}

func setQuantity(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("entry", f.entry); err != nil {
		return err
	}
	qty, err := workorders.ParseQuantity(f.qty)
	if err != nil {
		return err
	}
	e, err := a.svc.ChangeMaterialQuantity(ctx, f.entry, qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "entry %d: qty %d\n", e.ID, e.Quantity)
	return nil
}

func recompute(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("order", f.order); err != nil {
		return err
	}
	b, err := a.svc.RecomputeBudgetInput(ctx, f.order, f.labor)
	if err != nil {
		return err
	}
	printBudget(w, b)
	return nil
}

func workflow(fn func(*workorders.Service, context.Context, int64) (orders.Order, error)) command {
	return func(ctx context.Context, a app, f flags, w io.Writer) error {
		if err := need("order", f.order); err != nil {
			return err
		}
		o, err := fn(a.svc, ctx, f.order)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "order %d: %s\n", o.ID, o.Status)
		return nil
	}
}

func setStatus(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("order", f.order); err != nil {
		return err
	}
	st, err := orders.ParseStatus(f.status)
	if err != nil {
		return fmt.Errorf("%w: %q", workorders.ErrInvalidStatus, f.status)
	}
	if err := a.svc.SetStatus(ctx, f.order, st); err != nil {
		return err
	}
	fmt.Fprintf(w, "order %d: %s\n", f.order, st)
	return nil
}

func show(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("order", f.order); err != nil {
		return err
	}
	o, lines, err := a.svc.OrderSummary(ctx, f.order)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "order %d [%s] %s, %s\n", o.ID, o.Status, o.ServiceType, o.Address)
	printLines(w, lines)
	printBudget(w, o.Budget)
	return nil
}

func exportBudget(ctx context.Context, a app, f flags, w io.Writer) error {
	if err := need("order", f.order); err != nil {
		return err
	}
	out := f.out
	if out == "" {
		out = fmt.Sprintf("budget_order_%d.xlsx", f.order)
	}
	o, lines, err := a.svc.OrderSummary(ctx, f.order)
	if err != nil {
		return err
	}
	data, err := report.BudgetWorkbook(o, lines)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "budget for order %d written to %s\n", o.ID, out)
	return nil
}

func printLines(w io.Writer, lines []ledger.Line) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tMATERIAL\tSKU\tQTY\tUNIT\tTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.MaterialName, l.MaterialSKU, l.Quantity, l.UnitCost.StringFixed(2), l.LineTotal().StringFixed(2))
	}
	_ = tw.Flush()
}

func printBudget(w io.Writer, b orders.Budget) {
	fmt.Fprintf(w, "materials %s  labor %s  total %s\n",
		b.Materials.StringFixed(2), b.Labor.StringFixed(2), b.Total.StringFixed(2))
}
