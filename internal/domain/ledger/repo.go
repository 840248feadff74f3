package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueOrderMaterial = "order_materials_order_material_key"

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func scanEntry(row pgx.Row, extra ...any) (Entry, error) {
	var (
		e    Entry
		cost string
	)
	dst := append([]any{&e.ID, &e.OrderID, &e.MaterialID, &e.Quantity, &cost, &e.CreatedAt}, extra...)
	if err := row.Scan(dst...); err != nil {
		return Entry{}, err
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger entry %d unit_cost_at_link: %w", e.ID, err)
	}
	e.UnitCost = d
	return e, nil
}

// Link records a new reservation. A second link of the same material to the
// same order fails with ErrDuplicate; quantities are never merged.
func (r *Repo) Link(ctx context.Context, p LinkParams) (Entry, error) {
	if p.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		INSERT INTO order_materials (order_id, material_id, quantity, unit_cost_at_link)
		VALUES ($1,$2,$3,$4)
		RETURNING id, order_id, material_id, quantity, unit_cost_at_link::text, created_at
	`, p.OrderID, p.MaterialID, p.Quantity, p.UnitCost.String()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == uniqueOrderMaterial {
			return Entry{}, ErrDuplicate
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *Repo) Get(ctx context.Context, entryID int64) (Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		SELECT id, order_id, material_id, quantity, unit_cost_at_link::text, created_at
		FROM order_materials WHERE id = $1
	`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Unlink deletes the entry and hands back what it held so the caller can
// reverse the stock movement.
func (r *Repo) Unlink(ctx context.Context, entryID int64) (Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		DELETE FROM order_materials WHERE id = $1
		RETURNING id, order_id, material_id, quantity, unit_cost_at_link::text, created_at
	`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (r *Repo) ListForOrder(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT om.id, om.order_id, om.material_id, om.quantity, om.unit_cost_at_link::text, om.created_at,
		       m.name, m.sku
		FROM order_materials om
		JOIN materials m ON m.id = om.material_id
		WHERE om.order_id = $1
		ORDER BY om.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		e, err := scanEntry(rows, &l.MaterialName, &l.MaterialSKU)
		if err != nil {
			return nil, err
		}
		l.Entry = e
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateQuantity changes the reserved quantity; the frozen unit cost stays.
func (r *Repo) UpdateQuantity(ctx context.Context, entryID, qty int64) (Entry, error) {
	if qty <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		UPDATE order_materials SET quantity = $2 WHERE id = $1
		RETURNING id, order_id, material_id, quantity, unit_cost_at_link::text, created_at
	`, entryID, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}
