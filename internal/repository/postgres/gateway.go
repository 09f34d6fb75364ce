package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skybook/skybook/internal/repository"
)

// Mapping describes how an entity type maps onto its table. Columns is the
// full column set including the primary key; Scan must read exactly those
// columns in order.
type Mapping[T any] struct {
	Table   string
	IDCol   string
	Columns []string
	Scan    func(row Row) (T, error)
}

// Row is the single-row scan surface shared by pgx.Row and pgx.Rows.
type Row interface {
	Scan(dest ...any) error
}

// Gateway is a table-agnostic create/read/update/delete layer over a single
// entity table. It carries no business rules and no joins; anything needing
// cross-row atomicity belongs to the ledger, not here.
type Gateway[T any] struct {
	db DB
	m  Mapping[T]
}

func NewGateway[T any](db DB, m Mapping[T]) *Gateway[T] {
	return &Gateway[T]{db: db, m: m}
}

// With returns a copy of the gateway bound to db, usually a transaction.
func (g *Gateway[T]) With(db DB) *Gateway[T] {
	cp := *g
	cp.db = db
	return &cp
}

// Create inserts a row from the given field map and returns the stored entity.
// Unknown field names fail validation before any SQL runs; schema violations
// (not-null, foreign key) surface as repository.ErrValidation via the driver.
func (g *Gateway[T]) Create(ctx context.Context, fields map[string]any) (*T, error) {
	op := fmt.Sprintf("postgres.Gateway(%s).Create", g.m.Table)

	sql, args, err := buildInsert(g.m, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v, err := g.m.Scan(g.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &v, nil
}

// GetByID fetches a single row. Missing rows surface as repository.ErrNotFound.
func (g *Gateway[T]) GetByID(ctx context.Context, id any) (*T, error) {
	op := fmt.Sprintf("postgres.Gateway(%s).GetByID", g.m.Table)

	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		strings.Join(g.m.Columns, ", "), g.m.Table, g.m.IDCol,
	)

	v, err := g.m.Scan(g.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &v, nil
}

// List returns all rows with no implicit filtering.
func (g *Gateway[T]) List(ctx context.Context) ([]T, error) {
	op := fmt.Sprintf("postgres.Gateway(%s).List", g.m.Table)

	sql := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(g.m.Columns, ", "), g.m.Table, g.m.IDCol,
	)

	rows, err := g.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := g.m.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return out, nil
}

// Update mutates the named fields of exactly one row and returns the number of
// rows touched. A field name outside the table's column set fails with
// repository.ErrValidation; a missing row with repository.ErrNotFound.
func (g *Gateway[T]) Update(ctx context.Context, id any, fields map[string]any) (int64, error) {
	op := fmt.Sprintf("postgres.Gateway(%s).Update", g.m.Table)

	sql, args, err := buildUpdate(g.m, id, fields)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := g.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return tag.RowsAffected(), nil
}

// Delete removes a row, failing with repository.ErrNotFound if it never existed.
func (g *Gateway[T]) Delete(ctx context.Context, id any) (int64, error) {
	op := fmt.Sprintf("postgres.Gateway(%s).Delete", g.m.Table)

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", g.m.Table, g.m.IDCol)

	tag, err := g.db.Exec(ctx, sql, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return tag.RowsAffected(), nil
}

func (m Mapping[T]) hasColumn(name string) bool {
	for _, c := range m.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// sortedFieldNames gives deterministic statement text for a field map.
func sortedFieldNames[T any](m Mapping[T], fields map[string]any) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields: %w", repository.ErrValidation)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !m.hasColumn(name) {
			return nil, fmt.Errorf("unknown column %q: %w", name, repository.ErrValidation)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func buildInsert[T any](m Mapping[T], fields map[string]any) (string, []any, error) {
	names, err := sortedFieldNames(m, fields)
	if err != nil {
		return "", nil, err
	}

	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[name]
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		m.Table,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(m.Columns, ", "),
	)

	return sql, args, nil
}

func buildUpdate[T any](m Mapping[T], id any, fields map[string]any) (string, []any, error) {
	names, err := sortedFieldNames(m, fields)
	if err != nil {
		return "", nil, err
	}

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = $%d", name, i+1)
		args = append(args, fields[name])
	}
	args = append(args, id)

	sql := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		m.Table,
		strings.Join(sets, ", "),
		m.IDCol,
		len(names)+1,
	)

	return sql, args, nil
}
