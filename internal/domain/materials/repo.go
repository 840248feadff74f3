package materials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// numeric columns travel as text so decimals never pass through float64
const selectCols = `
	id, name, sku, unit, unit_cost::text, quantity_on_hand, reorder_threshold,
	supplier, location, created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var (
		m    Material
		cost string
	)
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.SKU,
		&m.Unit,
		&cost,
		&m.QuantityOnHand,
		&m.ReorderThreshold,
		&m.Supplier,
		&m.Location,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return Material{}, err
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return Material{}, fmt.Errorf("material %d unit_cost %q: %w", m.ID, cost, err)
	}
	m.UnitCost = d
	return m, nil
}

func (r *Repo) Create(ctx context.Context, in NewMaterial) (Material, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO materials (name, sku, unit, unit_cost, quantity_on_hand, reorder_threshold, supplier, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING`+selectCols,
		in.Name, in.SKU, in.Unit, in.UnitCost.String(), in.QuantityOnHand, in.ReorderThreshold, in.Supplier, in.Location)
	m, err := scanMaterial(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Material{}, fmt.Errorf("%w: %s", ErrDuplicateSKU, in.SKU)
		}
		return Material{}, err
	}
	return m, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, `SELECT`+selectCols+` FROM materials WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Material{}, ErrNotFound
	}
	return m, err
}

func (r *Repo) List(ctx context.Context) ([]Material, error) {
	return r.list(ctx, `SELECT`+selectCols+` FROM materials ORDER BY name ASC, id ASC`)
}

// ListLowStock returns materials at or under their reorder threshold.
func (r *Repo) ListLowStock(ctx context.Context) ([]Material, error) {
	return r.list(ctx, `
		SELECT`+selectCols+`
		FROM materials
		WHERE reorder_threshold > 0 AND quantity_on_hand <= reorder_threshold
		ORDER BY quantity_on_hand ASC, name ASC`)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Material, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetQuantity overwrites the stock level (manual edits, stock counts).
func (r *Repo) SetQuantity(ctx context.Context, id, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("quantity must be >= 0, got %d", qty)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE materials SET quantity_on_hand = $2, updated_at = now()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Debit takes qty off the shelf only if that much is there, in one statement,
// and returns what is left.
func (r *Repo) Debit(ctx context.Context, id, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("qty must be > 0")
	}
	var left int64
	err := r.pool.QueryRow(ctx, `
		UPDATE materials
		SET quantity_on_hand = quantity_on_hand - $2, updated_at = now()
		WHERE id = $1 AND quantity_on_hand >= $2
		RETURNING quantity_on_hand
	`, id, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		// either the row is gone or the guard failed
		var onHand int64
		err = r.pool.QueryRow(ctx, `SELECT quantity_on_hand FROM materials WHERE id = $1`, id).Scan(&onHand)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return onHand, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, onHand, qty)
	}
	if err != nil {
		return 0, err
	}
	return left, nil
}

// Credit returns qty to the shelf and reports the new level.
func (r *Repo) Credit(ctx context.Context, id, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("qty must be > 0")
	}
	var left int64
	err := r.pool.QueryRow(ctx, `
		UPDATE materials
		SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity_on_hand
	`, id, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return left, err
}
