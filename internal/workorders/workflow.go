package workorders

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Spok95/workstock/internal/domain/orders"
)

const (
	eventEdit    = "edit"
	eventSend    = "send_budget"
	eventApprove = "approve_budget"
	eventReject  = "reject_budget"
)

var (
	sendBudget = orders.Transition{
		From:          []orders.Status{orders.StatusOpen, orders.StatusInProgress},
		To:            orders.StatusAwaitingApproval,
		RequireBudget: true,
		StampSent:     true,
	}
	approveBudget = orders.Transition{
		From:          []orders.Status{orders.StatusAwaitingApproval},
		To:            orders.StatusInProgress,
		StampApproved: true,
	}
	// rejection reopens the order for editing; budget figures stay as they are
	rejectBudget = orders.Transition{
		From: []orders.Status{orders.StatusAwaitingApproval},
		To:   orders.StatusOpen,
	}
)

// SetStatus is the generic edit path: any of the five statuses may be set,
// with no workflow guard and no timestamps.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status orders.Status) (err error) {
	defer func() { s.metrics.Transitions.WithLabelValues(eventEdit, result(err)).Inc() }()

	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	err = s.orders.UpdateStatus(ctx, orderID, status)
	if errors.Is(err, orders.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("update status of order %d: %w", orderID, err)
	}
	s.log.Info("order status edited", "order_id", orderID, "status", status)
	return nil
}

// SendBudget submits a computed budget for approval.
func (s *Service) SendBudget(ctx context.Context, orderID int64) (orders.Order, error) {
	return s.transition(ctx, orderID, eventSend, sendBudget)
}

// ApproveBudget accepts the budget and puts the order in progress.
func (s *Service) ApproveBudget(ctx context.Context, orderID int64) (orders.Order, error) {
	return s.transition(ctx, orderID, eventApprove, approveBudget)
}

// RejectBudget sends the order back to open without touching the budget.
func (s *Service) RejectBudget(ctx context.Context, orderID int64) (orders.Order, error) {
	return s.transition(ctx, orderID, eventReject, rejectBudget)
}

func (s *Service) transition(ctx context.Context, orderID int64, event string, t orders.Transition) (o orders.Order, err error) {
	defer func() { s.metrics.Transitions.WithLabelValues(event, result(err)).Inc() }()

	cur, err := s.getOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if !slices.Contains(t.From, cur.Status) {
		return orders.Order{}, fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, event, cur.Status)
	}
	if t.RequireBudget && !cur.Budget.Total.IsPositive() {
		return orders.Order{}, fmt.Errorf("%w: order %d total is %s", ErrBudgetNotComputed, orderID, cur.Budget.Total.StringFixed(CurrencyPlaces))
	}

	// the store re-checks the guard, so a concurrent change loses cleanly
	o, err = s.orders.Transition(ctx, orderID, t)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return orders.Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	case errors.Is(err, orders.ErrStateChanged):
		return orders.Order{}, fmt.Errorf("%w: order %d changed while applying %s", ErrInvalidTransition, orderID, event)
	case err != nil:
		return orders.Order{}, fmt.Errorf("%s order %d: %w", event, orderID, err)
	}

	s.log.Info("order workflow transition",
		"order_id", orderID, "event", event, "from", cur.Status, "to", o.Status)
	return o, nil
}
