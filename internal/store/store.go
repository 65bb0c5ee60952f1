// Package store exposes the local record store: a SQLite-backed repository
// with buffered in-memory mutations and an explicit atomic flush.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/dbx"
	"github.com/dmitrijs2005/dreamsync/internal/models"
	"github.com/dmitrijs2005/dreamsync/internal/repositories/records"
)

// RecordStore buffers record mutations in memory and commits them to SQLite
// in a single transaction on Save. Queries read committed state only: a
// crash between a mutation and Save loses the mutation, which is acceptable
// because records are re-derived from the remote collection on the next
// sync pass.
type RecordStore struct {
	db   *sql.DB
	repo records.Repository

	mu    sync.Mutex
	seq   uint64
	dirty map[string]dirtyRecord
}

// dirtyRecord pairs a buffered record with the sequence number of the
// MarkDirty call that buffered it, so Save can tell a re-dirtied record
// from the one it just flushed.
type dirtyRecord struct {
	rec *models.Record
	seq uint64
}

// NewRecordStore wraps an open database handle.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{
		db:    db,
		repo:  records.NewSQLiteRepository(db),
		dirty: make(map[string]dirtyRecord),
	}
}

// Insert registers a brand-new record for the next flush.
func (s *RecordStore) Insert(rec *models.Record) {
	s.MarkDirty(rec)
}

// MarkDirty schedules the record's current in-memory state to be written on
// the next Save. Marking the same record twice is harmless.
func (s *RecordStore) MarkDirty(rec *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.dirty[rec.ID] = dirtyRecord{rec: rec, seq: s.seq}
}

// Pending reports how many records are waiting to be flushed.
func (s *RecordStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// newFlushRepository is a test seam for the per-transaction repository.
var newFlushRepository = func(tx dbx.DBTX) records.Repository {
	return records.NewSQLiteRepository(tx)
}

// Save flushes all accumulated mutations in one transaction. On success the
// flushed entries are cleared; on failure the buffer is kept so a retry can
// flush again. A record re-dirtied while the flush is in progress stays
// buffered, so a concurrent MarkDirty is never lost.
func (s *RecordStore) Save(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := make([]dirtyRecord, 0, len(s.dirty))
	for _, d := range s.dirty {
		batch = append(batch, d)
	}
	s.mu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := newFlushRepository(tx)
		for _, d := range batch {
			if err := repo.Upsert(ctx, d.rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to flush record store: %w", err)
	}

	s.mu.Lock()
	for _, d := range batch {
		// Only clear the exact entry that was flushed. A newer sequence
		// means someone re-dirtied the record mid-flush and its latest
		// state still needs the next Save.
		if cur, ok := s.dirty[d.rec.ID]; ok && cur.seq == d.seq {
			delete(s.dirty, d.rec.ID)
		}
	}
	s.mu.Unlock()
	return nil
}

// FetchAll returns the committed records of the given owner.
func (s *RecordStore) FetchAll(ctx context.Context, ownerID string) ([]*models.Record, error) {
	return s.repo.GetAllByOwner(ctx, ownerID)
}

// FetchPending returns the owner's committed records still waiting for
// upload.
func (s *RecordStore) FetchPending(ctx context.Context, ownerID string) ([]*models.Record, error) {
	return s.repo.GetPendingByOwner(ctx, ownerID)
}

// GetByID returns one committed record, or common.ErrNotFound.
func (s *RecordStore) GetByID(ctx context.Context, id string) (*models.Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record immediately (explicit user action, not buffered).
// The cached media file, if any, is reclaimed by the next cleanup pass.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.dirty, id)
	s.mu.Unlock()
	return nil
}

// Close closes the underlying database. It refuses while unflushed
// mutations remain; call Save first.
func (s *RecordStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if n := s.Pending(); n > 0 {
		return fmt.Errorf("%w: closing with %d unflushed records", common.ErrLocalStore, n)
	}
	return s.db.Close()
}
