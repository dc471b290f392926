package bins

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cleancity/wastetrack/internal/platform/db"
)

// Repository provides bin persistence.
type Repository interface {
	List(ctx context.Context) ([]Bin, error)
	Insert(ctx context.Context, b Bin) (Bin, error)
	Update(ctx context.Context, b Bin) (Bin, error)
	Delete(ctx context.Context, id string) error
	InsertBatch(ctx context.Context, batch []Bin) (int, error)
}

// PGRepository stores bins in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const binColumns = `id, location, area, locality, capacity, status, created_at, updated_at`

func scanBin(row pgx.Row) (Bin, error) {
	var b Bin
	if err := row.Scan(&b.ID, &b.Location, &b.Area, &b.Locality, &b.Capacity, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return Bin{}, ErrNotFound
		}
		return Bin{}, err
	}
	return b, nil
}

// List returns every bin newest first.
func (r *PGRepository) List(ctx context.Context) ([]Bin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+binColumns+` FROM bins ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("bins: list: %w", err)
	}
	defer rows.Close()
	var out []Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func insertBin(ctx context.Context, q db.Querier, b Bin) (Bin, error) {
	row := q.QueryRow(ctx, `INSERT INTO bins (location, area, locality, capacity, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+binColumns, b.Location, b.Area, b.Locality, string(b.Capacity), string(b.Status))
	created, err := scanBin(row)
	if err != nil {
		return Bin{}, fmt.Errorf("bins: insert: %w", err)
	}
	return created, nil
}

// Insert stores a new bin.
func (r *PGRepository) Insert(ctx context.Context, b Bin) (Bin, error) {
	return insertBin(ctx, r.pool, b)
}

// Update overwrites the editable fields of a bin.
func (r *PGRepository) Update(ctx context.Context, b Bin) (Bin, error) {
	row := r.pool.QueryRow(ctx, `UPDATE bins
SET location = $2, area = $3, locality = $4, capacity = $5, status = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+binColumns, b.ID, b.Location, b.Area, b.Locality, string(b.Capacity), string(b.Status))
	updated, err := scanBin(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Bin{}, fmt.Errorf("bins: update: %w", err)
	}
	return updated, err
}

// Delete removes a bin.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bins: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertBatch stores all bins in one transaction.
func (r *PGRepository) InsertBatch(ctx context.Context, batch []Bin) (int, error) {
	count := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, b := range batch {
			if _, err := insertBin(ctx, tx, b); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

var _ Repository = (*PGRepository)(nil)
