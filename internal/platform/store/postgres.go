package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carelink/internal/platform/db"
)

// Table maps an entity type onto a PostgreSQL table. Every table has the
// columns seq (identity, insertion order), id, created_at and updated_at in
// addition to Columns.
type Table[T Entity[T]] struct {
	Name    string
	Kind    string
	Columns []string
	// Values returns the values for Columns, in order.
	Values func(e T) []any
	// Scan reads id, Columns..., created_at, updated_at.
	Scan func(row pgx.Row) (T, error)
}

func (t *Table[T]) selectCols() string {
	return "id, " + strings.Join(t.Columns, ", ") + ", created_at, updated_at"
}

// PGRepository is the generic PostgreSQL Repository.
type PGRepository[T Entity[T]] struct {
	pool  *pgxpool.Pool
	table Table[T]
}

func NewPGRepository[T Entity[T]](pool *pgxpool.Pool, table Table[T]) *PGRepository[T] {
	return &PGRepository[T]{pool: pool, table: table}
}

// Conn returns the transaction bound to ctx, falling back to the pool.
func (r *PGRepository[T]) Conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *PGRepository[T]) Create(ctx context.Context, e T) error {
	rec := e.Base()
	rec.ID = uuid.New()

	n := len(r.table.Columns)
	placeholders := make([]string, n+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, %s) VALUES (%s) RETURNING created_at, updated_at`,
		r.table.Name, strings.Join(r.table.Columns, ", "), strings.Join(placeholders, ", "))

	args := append([]any{rec.ID}, r.table.Values(e)...)
	err := r.Conn(ctx).QueryRow(ctx, query, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		rec.ID = uuid.Nil
		return FromPG(r.table.Kind, err)
	}
	return nil
}

func (r *PGRepository[T]) get(ctx context.Context, id uuid.UUID, suffix string) (T, error) {
	query := `SELECT ` + r.table.selectCols() + ` FROM ` + r.table.Name + ` WHERE id = $1` + suffix
	e, err := r.table.Scan(r.Conn(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, NotFound(r.table.Kind, id)
	}
	if err != nil {
		var zero T
		return zero, FromPG(r.table.Kind, err)
	}
	return e, nil
}

func (r *PGRepository[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return r.get(ctx, id, "")
}

func (r *PGRepository[T]) GetForUpdate(ctx context.Context, id uuid.UUID) (T, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *PGRepository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.Conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+r.table.Name+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *PGRepository[T]) Count(ctx context.Context) (int, error) {
	var total int
	err := r.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+r.table.Name).Scan(&total)
	return total, err
}

func (r *PGRepository[T]) List(ctx context.Context, limit, offset int) ([]T, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.Select(ctx, "", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PGRepository[T]) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	return r.Select(ctx, "id = ANY($1::uuid[])", 0, 0, UUIDStrings(ids))
}

// UUIDStrings converts ids for use as a uuid[] query argument.
func UUIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Select returns the rows matching where (a SQL boolean expression using
// $1..$n for args; empty matches everything) in insertion order.
func (r *PGRepository[T]) Select(ctx context.Context, where string, limit, offset int, args ...any) ([]T, error) {
	query := `SELECT ` + r.table.selectCols() + ` FROM ` + r.table.Name
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, offset)
	}

	rows, err := r.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		e, err := r.table.Scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *PGRepository[T]) Update(ctx context.Context, e T) error {
	rec := e.Base()
	sets := make([]string, len(r.table.Columns))
	for i, col := range r.table.Columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
	}
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE id = $1 RETURNING created_at, updated_at`,
		r.table.Name, strings.Join(sets, ", "))

	args := append([]any{rec.ID}, r.table.Values(e)...)
	err := r.Conn(ctx).QueryRow(ctx, query, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(r.table.Kind, rec.ID)
	}
	return FromPG(r.table.Kind, err)
}

func (r *PGRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.Conn(ctx).Exec(ctx, `DELETE FROM `+r.table.Name+` WHERE id = $1`, id)
	if err != nil {
		return false, FromPG(r.table.Kind, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exec runs a statement against the table's connection and returns the
// number of affected rows.
func (r *PGRepository[T]) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, FromPG(r.table.Kind, err)
	}
	return tag.RowsAffected(), nil
}
