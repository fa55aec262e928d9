package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const insertSyncLogQuery = `
    INSERT INTO dn_sync_log (status, synced_count, dn_numbers_json, message, error_message, error_traceback)
    VALUES ($1, $2, $3::jsonb, $4, $5, $6)
    RETURNING id, created_at`

const latestSyncLogQuery = `
    SELECT id, status, synced_count, dn_numbers_json, message, error_message, error_traceback, created_at
    FROM dn_sync_log
    ORDER BY created_at DESC, id DESC
    LIMIT 1`

func (r *Repo) CreateSyncLog(ctx context.Context, entry SyncLog) (SyncLog, error) {
	numbers := entry.DNNumbers
	if numbers == nil {
		numbers = []string{}
	}
	body, err := json.Marshal(numbers)
	if err != nil {
		return SyncLog{}, fmt.Errorf("encode sync log numbers: %w", err)
	}
	err = r.db.QueryRow(ctx, insertSyncLogQuery,
		entry.Status, entry.SyncedCount, string(body), entry.Message, entry.ErrorMessage, entry.ErrorTraceback,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return SyncLog{}, fmt.Errorf("create sync log: %w", err)
	}
	entry.DNNumbers = numbers
	return entry, nil
}

// LatestSyncLog returns the newest audit row, or nil when none exists.
func (r *Repo) LatestSyncLog(ctx context.Context) (*SyncLog, error) {
	var (
		entry SyncLog
		raw   []byte
	)
	err := r.db.QueryRow(ctx, latestSyncLogQuery).Scan(
		&entry.ID, &entry.Status, &entry.SyncedCount, &raw, &entry.Message,
		&entry.ErrorMessage, &entry.ErrorTraceback, &entry.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sync log: %w", err)
	}
	if err := json.Unmarshal(raw, &entry.DNNumbers); err != nil {
		return nil, fmt.Errorf("decode sync log numbers: %w", err)
	}
	return &entry, nil
}
