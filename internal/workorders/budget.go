package workorders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/orders"
)

// CurrencyPlaces is the precision budgets are persisted and shown with.
const CurrencyPlaces = 2

// ParseLaborCost reads the labor cost as typed by a user. Empty input means
// zero; a comma is accepted as the decimal separator.
func ParseLaborCost(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidLaborCost, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidLaborCost, d)
	}
	return d, nil
}

// MaterialsCost sums quantity * frozen unit cost over the lines, unrounded.
func MaterialsCost(lines []ledger.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// RecomputeBudget derives the materials cost from the ledger, adds labor and
// stores all three figures. It recomputes from scratch, so repeating it with
// the same ledger and labor stores the same values.
func (s *Service) RecomputeBudget(ctx context.Context, orderID int64, labor decimal.Decimal) (b orders.Budget, err error) {
	defer func() { s.metrics.Recomputes.WithLabelValues(result(err)).Inc() }()

	if labor.IsNegative() {
		return orders.Budget{}, fmt.Errorf("%w: %s", ErrInvalidLaborCost, labor)
	}
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return orders.Budget{}, err
	}

	lines, err := s.ledger.ListForOrder(ctx, orderID)
	if err != nil {
		return orders.Budget{}, fmt.Errorf("list materials of order %d: %w", orderID, err)
	}

	// Round only here; decimal.Round is half away from zero, which is half-up
	// for these non-negative amounts. Total is the sum of the rounded parts.
	b.Materials = MaterialsCost(lines).Round(CurrencyPlaces)
	b.Labor = labor.Round(CurrencyPlaces)
	b.Total = b.Materials.Add(b.Labor)

	if err := s.orders.UpdateBudget(ctx, orderID, b); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return orders.Budget{}, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return orders.Budget{}, fmt.Errorf("save budget of order %d: %w", orderID, err)
	}

	s.log.Info("budget recomputed",
		"order_id", orderID, "lines", len(lines),
		"materials", b.Materials.StringFixed(CurrencyPlaces),
		"labor", b.Labor.StringFixed(CurrencyPlaces),
		"total", b.Total.StringFixed(CurrencyPlaces))
	return b, nil
}

// RecomputeBudgetInput is RecomputeBudget for raw form input.
func (s *Service) RecomputeBudgetInput(ctx context.Context, orderID int64, rawLabor string) (orders.Budget, error) {
	labor, err := ParseLaborCost(rawLabor)
	if err != nil {
		s.metrics.Recomputes.WithLabelValues(result(err)).Inc()
		return orders.Budget{}, err
	}
	return s.RecomputeBudget(ctx, orderID, labor)
}

// Budget returns the figures last stored on the order.
func (s *Service) Budget(ctx context.Context, orderID int64) (orders.Budget, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return orders.Budget{}, err
	}
	return o.Budget, nil
}

// OrderSummary bundles an order with its ledger lines for reports.
func (s *Service) OrderSummary(ctx context.Context, orderID int64) (orders.Order, []ledger.Line, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, nil, err
	}
	lines, err := s.ledger.ListForOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, nil, fmt.Errorf("list materials of order %d: %w", orderID, err)
	}
	return o, lines, nil
}
