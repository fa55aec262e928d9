package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const latestHistoryQuery = `
    SELECT DISTINCT ON (dn_number)
           id, dn_number, du_id, status, status_delivery, status_site, remark,
           photo_url, lng, lat, updated_by, phone_number, created_at
    FROM dn_record
    WHERE dn_number = ANY($1)
    ORDER BY dn_number, created_at DESC, id DESC`

const markMissingAsDeletedQuery = `
    UPDATE dn
    SET is_deleted = TRUE, updated_at = now()
    WHERE is_deleted = FALSE
      AND NOT (dn_number = ANY($1))`

const resetPresentAsActiveQuery = `
    UPDATE dn
    SET is_deleted = FALSE, updated_at = now()
    WHERE is_deleted = TRUE
      AND dn_number = ANY($1)`

func (r *Repo) GetSnapshotMap(ctx context.Context, numbers []string) (map[string]DN, error) {
	out := make(map[string]DN, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	textCols := r.schema.StoredTextColumns()
	rows, err := r.db.Query(ctx, `SELECT `+dnSelectList(textCols)+` FROM dn d WHERE d.dn_number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("get snapshot map: %w", err)
	}
	dns, err := collectDNs(rows, textCols)
	if err != nil {
		return nil, fmt.Errorf("scan snapshot map: %w", err)
	}
	for _, dn := range dns {
		out[dn.DNNumber] = dn
	}
	return out, nil
}

func (r *Repo) GetLatestHistoryMap(ctx context.Context, numbers []string) (map[string]Record, error) {
	out := make(map[string]Record, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, latestHistoryQuery, numbers)
	if err != nil {
		return nil, fmt.Errorf("get latest history map: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan latest history map: %w", err)
	}
	for _, rec := range records {
		out[rec.DNNumber] = rec
	}
	return out, nil
}

// BulkCreate inserts payloads in one statement. Numbers that already exist
// are skipped, so racing writers never hit the unique constraint.
func (r *Repo) BulkCreate(ctx context.Context, payloads []Payload) (int64, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		return 0, fmt.Errorf("encode create payloads: %w", err)
	}
	tag, err := r.db.Exec(ctx, bulkCreateQuery(payloadColumns(payloads)), string(body))
	if err != nil {
		return 0, fmt.Errorf("bulk create dn: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkUpdate applies the changed columns of every payload in one statement.
func (r *Repo) BulkUpdate(ctx context.Context, payloads []UpdatePayload) (int64, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	type row struct {
		ID      int64   `json:"id"`
		Payload Payload `json:"payload"`
	}
	rows := make([]row, len(payloads))
	fields := make([]Payload, len(payloads))
	for i, p := range payloads {
		rows[i] = row{ID: p.ID, Payload: p.Fields}
		fields[i] = p.Fields
	}
	cols := payloadColumns(fields)
	if len(cols) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("encode update payloads: %w", err)
	}
	tag, err := r.db.Exec(ctx, bulkUpdateQuery(cols), string(body))
	if err != nil {
		return 0, fmt.Errorf("bulk update dn: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) MarkMissingAsDeleted(ctx context.Context, present []string) (int64, error) {
	tag, err := r.db.Exec(ctx, markMissingAsDeletedQuery, present)
	if err != nil {
		return 0, fmt.Errorf("mark missing dn as deleted: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) ResetPresentAsActive(ctx context.Context, present []string) (int64, error) {
	tag, err := r.db.Exec(ctx, resetPresentAsActiveQuery, present)
	if err != nil {
		return 0, fmt.Errorf("reset present dn as active: %w", err)
	}
	return tag.RowsAffected(), nil
}

// NormalizeStoredFields rewrites every DN for which fn returns changes. The
// transaction is committed only when at least one row changed.
func (r *Repo) NormalizeStoredFields(ctx context.Context, fn NormalizeFunc) (int, error) {
	changed := 0
	err := r.withTx(ctx, func(tx *Repo) error {
		textCols := tx.schema.StoredTextColumns()
		rows, err := tx.db.Query(ctx, normalizeScanQuery(textCols))
		if err != nil {
			return fmt.Errorf("load dn for normalization: %w", err)
		}
		dns, err := collectDNs(rows, textCols)
		if err != nil {
			return fmt.Errorf("scan dn for normalization: %w", err)
		}

		var updates []UpdatePayload
		for _, dn := range dns {
			if fields := fn(dn); len(fields) > 0 {
				updates = append(updates, UpdatePayload{ID: dn.ID, DNNumber: dn.DNNumber, Fields: fields})
			}
		}
		if len(updates) == 0 {
			return errNothingChanged
		}
		if _, err := tx.BulkUpdate(ctx, updates); err != nil {
			return err
		}
		changed = len(updates)
		return nil
	})
	if errors.Is(err, errNothingChanged) {
		return 0, nil
	}
	return changed, err
}

var errNothingChanged = errors.New("nothing changed")

// normalizeScanQuery loads live DNs only; soft-deleted rows keep their values.
func normalizeScanQuery(textCols []string) string {
	return `SELECT ` + dnSelectList(textCols) + ` FROM dn d WHERE d.is_deleted = FALSE ORDER BY d.id`
}

func payloadColumns(payloads []Payload) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, p := range payloads {
		for col := range p {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			cols = append(cols, col)
		}
	}
	slices.Sort(cols)
	return cols
}

func bulkCreateQuery(cols []string) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}
	list := strings.Join(quoted, ", ")
	return `INSERT INTO dn (` + list + `)
    SELECT ` + list + `
    FROM jsonb_populate_recordset(NULL::dn, $1::jsonb)
    ON CONFLICT (dn_number) DO NOTHING`
}

func bulkUpdateQuery(cols []string) string {
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		if col == "dn_number" {
			continue
		}
		value := `p.payload->>` + quoteLiteral(col)
		if col == "gs_row" {
			value = `(` + value + `)::integer`
		}
		sets = append(sets, fmt.Sprintf(`%s = CASE WHEN p.payload ? %s THEN %s ELSE d.%s END`,
			quoteIdent(col), quoteLiteral(col), value, quoteIdent(col)))
	}
	sets = append(sets, "updated_at = now()")
	return `UPDATE dn AS d
    SET ` + strings.Join(sets, ",\n        ") + `
    FROM jsonb_to_recordset($1::jsonb) AS p(id bigint, payload jsonb)
    WHERE d.id = p.id`
}
