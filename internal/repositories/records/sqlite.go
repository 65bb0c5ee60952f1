package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/dbx"
	"github.com/dmitrijs2005/dreamsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `id, owner_id, title, description, transcript, tags, style,
	dream_date, media_url, local_media_path, created_at, updated_at,
	last_synced_at, sync_state, processing_state`

// Upsert inserts or updates a record by id. On conflict every mutable
// column is replaced, including local_media_path: the repository persists
// whatever the in-memory record holds, the merge policy lives upstream.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			transcript = excluded.transcript,
			tags = excluded.tags,
			style = excluded.style,
			dream_date = excluded.dream_date,
			media_url = excluded.media_url,
			local_media_path = excluded.local_media_path,
			updated_at = excluded.updated_at,
			last_synced_at = excluded.last_synced_at,
			sync_state = excluded.sync_state,
			processing_state = excluded.processing_state
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, rec.Title, rec.Description, rec.Transcript,
		string(tags), rec.Style, epochMillis(rec.DreamDate), rec.MediaURL,
		rec.LocalMediaPath, epochMillis(rec.CreatedAt), epochMillis(rec.UpdatedAt),
		epochMillis(rec.LastSyncedAt), string(rec.SyncState), string(rec.ProcessingState))
	if err != nil {
		return fmt.Errorf("%w: failed to upsert record: %v", common.ErrLocalStore, err)
	}
	return nil
}

// GetByID returns a single record, or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to select record: %v", common.ErrLocalStore, err)
	}
	return rec, nil
}

// GetAllByOwner lists every record owned by ownerID.
func (r *SQLiteRepository) GetAllByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = ? ORDER BY dream_date DESC`
	return r.queryRecords(ctx, query, ownerID)
}

// GetPendingByOwner lists records still waiting for upload.
func (r *SQLiteRepository) GetPendingByOwner(ctx context.Context, ownerID string) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND sync_state IN ('pending', 'failed')
		ORDER BY created_at`
	return r.queryRecords(ctx, query, ownerID)
}

// DeleteByID removes a record row.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete record: %v", common.ErrLocalStore, err)
	}
	return nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select records: %v", common.ErrLocalStore, err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", common.ErrLocalStore, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var tags string
	var dreamDate, createdAt, updatedAt, lastSyncedAt int64
	var syncState, processingState string

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Description,
		&rec.Transcript, &tags, &rec.Style, &dreamDate, &rec.MediaURL,
		&rec.LocalMediaPath, &createdAt, &updatedAt, &lastSyncedAt,
		&syncState, &processingState)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	rec.DreamDate = fromMillis(dreamDate)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.LastSyncedAt = fromMillis(lastSyncedAt)
	rec.SyncState = models.ParseSyncState(syncState)
	rec.ProcessingState = models.ParseProcessingState(processingState)
	return &rec, nil
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
