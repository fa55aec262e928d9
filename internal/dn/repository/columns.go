package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const listDNColumnsQuery = `
    SELECT column_name
    FROM information_schema.columns
    WHERE table_schema = current_schema()
      AND table_name = 'dn'
    ORDER BY ordinal_position`

const recordSchemaColumnQuery = `
    INSERT INTO dn_schema_columns (column_name)
    VALUES ($1)
    ON CONFLICT (column_name) DO NOTHING`

func (r *Repo) ListDNColumns(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listDNColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("list dn columns: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan dn columns: %w", err)
	}
	return names, nil
}

// AddDNTextColumn adds a nullable TEXT column and records it in
// dn_schema_columns. Callers validate name first.
func (r *Repo) AddDNTextColumn(ctx context.Context, name string) error {
	return r.withTx(ctx, func(tx *Repo) error {
		if _, err := tx.db.Exec(ctx, addColumnQuery(name)); err != nil {
			return fmt.Errorf("alter dn add column: %w", err)
		}
		if _, err := tx.db.Exec(ctx, recordSchemaColumnQuery, name); err != nil {
			return fmt.Errorf("record schema column: %w", err)
		}
		return nil
	})
}

func addColumnQuery(name string) string {
	return `ALTER TABLE dn ADD COLUMN IF NOT EXISTS ` + quoteIdent(name) + ` TEXT`
}
