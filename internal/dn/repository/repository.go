package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Schema lists the TEXT columns stored on dn, dynamic ones included.
type Schema interface {
	StoredTextColumns() []string
}

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool   *pgxpool.Pool
	db     DBTX
	schema Schema
	inTx   bool
}

// New creates a Repo. schema decides which dn columns are read and written.
func New(pool *pgxpool.Pool, schema Schema) *Repo {
	return &Repo{pool: pool, db: pool, schema: schema}
}

// WithSchema returns a Repo sharing the pool with a different schema. A
// Repo without schema serves only the column operations.
func (r *Repo) WithSchema(schema Schema) *Repo {
	return &Repo{pool: r.pool, db: r.db, schema: schema, inTx: r.inTx}
}

var _ Repository = (*Repo)(nil)

// InTx runs fn inside one transaction. Nested calls reuse the outer one.
func (r *Repo) InTx(ctx context.Context, fn func(SyncStore) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.withTx(ctx, func(tx *Repo) error { return fn(tx) })
}

func (r *Repo) withTx(ctx context.Context, fn func(tx *Repo) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repo{pool: r.pool, db: tx, schema: r.schema, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func dnSelectList(textCols []string) string {
	quoted := make([]string, len(textCols))
	for i, col := range textCols {
		quoted[i] = "d." + quoteIdent(col)
	}
	return "d.id, d.dn_number, " + strings.Join(quoted, ", ") +
		", d.gs_row, d.is_deleted, d.update_count, d.created_at, d.updated_at"
}

func scanDN(row scanner, textCols []string) (DN, error) {
	var dn DN
	values := make([]*string, len(textCols))
	dest := make([]interface{}, 0, len(textCols)+7)
	dest = append(dest, &dn.ID, &dn.DNNumber)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &dn.GSRow, &dn.IsDeleted, &dn.UpdateCount, &dn.CreatedAt, &dn.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return DN{}, err
	}
	dn.Fields = make(map[string]*string, len(textCols))
	for i, col := range textCols {
		dn.Fields[col] = values[i]
	}
	return dn, nil
}

func collectDNs(rows pgx.Rows, textCols []string) ([]DN, error) {
	defer rows.Close()
	var out []DN
	for rows.Next() {
		dn, err := scanDN(rows, textCols)
		if err != nil {
			return nil, err
		}
		out = append(out, dn)
	}
	return out, rows.Err()
}
