package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/orders"
)

const places = 2

// BudgetWorkbook renders an order's budget as xlsx: one row per linked
// material at its frozen unit cost, then the stored materials/labor/total.
func BudgetWorkbook(o orders.Order, lines []ledger.Line) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := fmt.Sprintf("OS %d", o.ID)
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return nil, err
	}

	head := [][]interface{}{
		{"order_id", o.ID},
		{"service_type", o.ServiceType},
		{"address", o.Address},
		{"status", string(o.Status)},
		{},
		{"material", "sku", "qty", "unit_cost", "line_total"},
	}
	row := 1
	for _, r := range head {
		if err := setRow(f, sheet, row, r); err != nil {
			return nil, err
		}
		row++
	}

	for _, l := range lines {
		r := []interface{}{
			l.MaterialName,
			l.MaterialSKU,
			l.Quantity,
			l.UnitCost.StringFixed(places),
			l.LineTotal().StringFixed(places),
		}
		if err := setRow(f, sheet, row, r); err != nil {
			return nil, err
		}
		row++
	}

	row++
	totals := [][]interface{}{
		{"materials", o.Budget.Materials.StringFixed(places)},
		{"labor", o.Budget.Labor.StringFixed(places)},
		{"total", o.Budget.Total.StringFixed(places)},
	}
	for _, r := range totals {
		if err := setRow(f, sheet, row, r); err != nil {
			return nil, err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
