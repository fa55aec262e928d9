package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"dn_tracker_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const (
	dnNotFoundMsg     = "dn not found"
	recordNotFoundMsg = "dn record not found"
)

const recordColumns = `id, dn_number, du_id, status, status_delivery, status_site, remark,
           photo_url, lng, lat, updated_by, phone_number, created_at`

const insertRecordQuery = `
    INSERT INTO dn_record (dn_number, du_id, status, status_delivery, status_site, remark,
                           photo_url, lng, lat, updated_by, phone_number)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    RETURNING ` + recordColumns

const bumpUpdateCountQuery = `
    UPDATE dn
    SET update_count = update_count + 1, updated_at = now()
    WHERE dn_number = $1`

const statusDeliveryCountsQuery = `
    SELECT COALESCE(NULLIF(TRIM(status_delivery), ''), 'NO STATUS') AS status_delivery, COUNT(*)
    FROM dn
    WHERE is_deleted = FALSE
      AND ($1::text = '' OR lsp = $1)
      AND ($2::text = '' OR plan_mos_date = $2)
      AND ($3::text = '' OR region = $3)
    GROUP BY 1
    ORDER BY 1`

// EnsureDN inserts number if missing and sets every non-nil field.
func (r *Repo) EnsureDN(ctx context.Context, number string, fields map[string]*string) (DN, error) {
	textCols := r.schema.StoredTextColumns()
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if value != nil && slices.Contains(textCols, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	cols := []string{"dn_number"}
	placeholders := []string{"$1"}
	args := []interface{}{number}
	sets := []string{"updated_at = now()"}
	for i, name := range names {
		col := quoteIdent(name)
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, *fields[name])
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	query := `INSERT INTO dn AS d (` + strings.Join(cols, ", ") + `)
    VALUES (` + strings.Join(placeholders, ", ") + `)
    ON CONFLICT (dn_number) DO UPDATE SET ` + strings.Join(sets, ", ") + `
    RETURNING ` + dnSelectList(textCols)

	dn, err := scanDN(r.db.QueryRow(ctx, query, args...), textCols)
	if err != nil {
		return DN{}, fmt.Errorf("ensure dn: %w", err)
	}
	return dn, nil
}

// AddRecord appends a history entry and increments the DN's change counter.
func (r *Repo) AddRecord(ctx context.Context, rec NewRecord) (Record, error) {
	var out Record
	err := r.withTx(ctx, func(tx *Repo) error {
		row := tx.db.QueryRow(ctx, insertRecordQuery,
			rec.DNNumber, rec.DUID, rec.Status, rec.StatusDelivery, rec.StatusSite, rec.Remark,
			rec.PhotoURL, rec.Lng, rec.Lat, rec.UpdatedBy, rec.PhoneNumber)
		created, err := scanRecord(row)
		if err != nil {
			return fmt.Errorf("insert dn record: %w", err)
		}
		if _, err := tx.db.Exec(ctx, bumpUpdateCountQuery, rec.DNNumber); err != nil {
			return fmt.Errorf("bump update count: %w", err)
		}
		out = created
		return nil
	})
	return out, err
}

func (r *Repo) GetDN(ctx context.Context, number string) (DN, error) {
	textCols := r.schema.StoredTextColumns()
	dn, err := scanDN(r.db.QueryRow(ctx, `SELECT `+dnSelectList(textCols)+` FROM dn d WHERE d.dn_number = $1`, number), textCols)
	if errors.Is(err, pgx.ErrNoRows) {
		return DN{}, apperr.NotFound(dnNotFoundMsg)
	}
	if err != nil {
		return DN{}, fmt.Errorf("get dn: %w", err)
	}
	return dn, nil
}

// ExistingNumbers returns the subset of numbers already stored.
func (r *Repo) ExistingNumbers(ctx context.Context, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT dn_number FROM dn WHERE dn_number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("existing dn numbers: %w", err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan existing dn numbers: %w", err)
	}
	return existing, nil
}

func (r *Repo) ListDNs(ctx context.Context, filter ListFilter) (ListResult, error) {
	where, args := listWhere(filter)
	textCols := r.schema.StoredTextColumns()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM dn d WHERE `+where, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count dn: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	pageArgs := append(slices.Clone(args), limit, max(filter.Offset, 0))
	query := `SELECT ` + dnSelectList(textCols) + `
    FROM dn d
    WHERE ` + where + `
    ORDER BY d.updated_at DESC NULLS LAST, d.id DESC
    LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)

	rows, err := r.db.Query(ctx, query, pageArgs...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list dn: %w", err)
	}
	items, err := collectDNs(rows, textCols)
	if err != nil {
		return ListResult{}, fmt.Errorf("scan dn list: %w", err)
	}
	if items == nil {
		items = []DN{}
	}
	return ListResult{Items: items, Total: total}, nil
}

func listWhere(filter ListFilter) (string, []interface{}) {
	clauses := []string{"TRUE"}
	var args []interface{}
	anyOf := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		args = append(args, values)
		clauses = append(clauses, fmt.Sprintf("d.%s = ANY($%d)", col, len(args)))
	}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "d.is_deleted = FALSE")
	}
	anyOf("dn_number", filter.Numbers)
	anyOf("du_id", filter.DUIDs)
	anyOf("status_delivery", filter.StatusDelivery)
	anyOf("status", filter.Statuses)
	anyOf("lsp", filter.LSPs)
	anyOf("region", filter.Regions)
	anyOf("area", filter.Areas)
	anyOf("plan_mos_date", filter.PlanMOSDates)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(d.dn_number ILIKE $%d OR d.du_id ILIKE $%d OR d.lsp ILIKE $%d OR d.region ILIKE $%d OR d.area ILIKE $%d)",
			n, n, n, n, n))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repo) ListRecords(ctx context.Context, number string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+`
    FROM dn_record
    WHERE dn_number = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2`, number, limit)
	if err != nil {
		return nil, fmt.Errorf("list dn records: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan dn records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (r *Repo) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM dn_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound(recordNotFoundMsg)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get dn record: %w", err)
	}
	return rec, nil
}

func (r *Repo) UpdateRecord(ctx context.Context, id int64, patch RecordPatch) (Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `
    UPDATE dn_record
    SET status = COALESCE($2, status),
        remark = COALESCE($3, remark),
        photo_url = COALESCE($4, photo_url)
    WHERE id = $1
    RETURNING `+recordColumns, id, patch.Status, patch.Remark, patch.PhotoURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound(recordNotFoundMsg)
	}
	if err != nil {
		return Record{}, fmt.Errorf("update dn record: %w", err)
	}
	return rec, nil
}

func (r *Repo) DeleteRecord(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM dn_record WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dn record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(recordNotFoundMsg)
	}
	return nil
}

// DeleteDN removes a DN and its whole history.
func (r *Repo) DeleteDN(ctx context.Context, number string) error {
	return r.withTx(ctx, func(tx *Repo) error {
		if _, err := tx.db.Exec(ctx, `DELETE FROM dn_record WHERE dn_number = $1`, number); err != nil {
			return fmt.Errorf("delete dn records: %w", err)
		}
		tag, err := tx.db.Exec(ctx, `DELETE FROM dn WHERE dn_number = $1`, number)
		if err != nil {
			return fmt.Errorf("delete dn: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound(dnNotFoundMsg)
		}
		return nil
	})
}

func (r *Repo) StatusDeliveryCounts(ctx context.Context, filter StatsFilter) ([]StatusCount, error) {
	rows, err := r.db.Query(ctx, statusDeliveryCountsQuery,
		strings.TrimSpace(filter.LSP), strings.TrimSpace(filter.PlanMOSDate), strings.TrimSpace(filter.Region))
	if err != nil {
		return nil, fmt.Errorf("status delivery counts: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.StatusDelivery, &c.Count); err != nil {
			return nil, fmt.Errorf("scan status delivery count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.DNNumber, &rec.DUID, &rec.Status, &rec.StatusDelivery, &rec.StatusSite,
		&rec.Remark, &rec.PhotoURL, &rec.Lng, &rec.Lat, &rec.UpdatedBy, &rec.PhoneNumber, &rec.CreatedAt)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
