package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const selectCols = `
	id, service_type, address, description, priority, status, due_date,
	budget_materials_cost::text, budget_labor_cost::text, budget_total::text,
	created_at, updated_at, budget_sent_at, approved_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                  Order
		mats, labor, total string
	)
	if err := row.Scan(
		&o.ID,
		&o.ServiceType,
		&o.Address,
		&o.Description,
		&o.Priority,
		&o.Status,
		&o.DueDate,
		&mats,
		&labor,
		&total,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.BudgetSentAt,
		&o.ApprovedAt,
	); err != nil {
		return Order{}, err
	}
	var err error
	if o.Budget.Materials, err = decimal.NewFromString(mats); err != nil {
		return Order{}, fmt.Errorf("order %d budget_materials_cost: %w", o.ID, err)
	}
	if o.Budget.Labor, err = decimal.NewFromString(labor); err != nil {
		return Order{}, fmt.Errorf("order %d budget_labor_cost: %w", o.ID, err)
	}
	if o.Budget.Total, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("order %d budget_total: %w", o.ID, err)
	}
	return o, nil
}

// Create always starts the order as open.
func (r *Repo) Create(ctx context.Context, in NewOrder) (Order, error) {
	if in.Priority == "" {
		in.Priority = PriorityLow
	}
	if !in.Priority.Valid() {
		return Order{}, fmt.Errorf("invalid priority %q", in.Priority)
	}
	return scanOrder(r.pool.QueryRow(ctx, `
		INSERT INTO orders (service_type, address, description, priority, status, due_date)
		VALUES ($1,$2,$3,$4,'open',$5)
		RETURNING`+selectCols,
		in.ServiceType, in.Address, in.Description, string(in.Priority), in.DueDate))
}

func (r *Repo) GetByID(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT`+selectCols+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// List returns the newest orders first.
func (r *Repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+selectCols+` FROM orders ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBudget writes the three figures in one statement; the table's check
// constraint rejects a total that is not materials + labor.
func (r *Repo) UpdateBudget(ctx context.Context, id int64, b Budget) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET budget_materials_cost = $2, budget_labor_cost = $3, budget_total = $4, updated_at = now()
		WHERE id = $1
	`, id, b.Materials.String(), b.Labor.String(), b.Total.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Transition(ctx context.Context, id int64, t Transition) (Order, error) {
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET
			status         = $2,
			budget_sent_at = CASE WHEN $4 THEN now() ELSE budget_sent_at END,
			approved_at    = CASE WHEN $5 THEN now() ELSE approved_at END,
			updated_at     = now()
		WHERE id = $1
		  AND status = ANY($3)
		  AND (NOT $6 OR budget_total > 0)
		RETURNING`+selectCols,
		id, string(t.To), from, t.StampSent, t.StampApproved, t.RequireBudget))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return Order{}, err
		}
		if !exists {
			return Order{}, ErrNotFound
		}
		return Order{}, ErrStateChanged
	}
	return o, err
}
