// Package syncer reconciles the local record store against the remote
// document collection and pushes locally-recorded dreams upstream.
package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/dreamsync/internal/logging"
	"github.com/dmitrijs2005/dreamsync/internal/models"
	"github.com/dmitrijs2005/dreamsync/internal/objstore"
	"github.com/dmitrijs2005/dreamsync/internal/remote"
	"github.com/dmitrijs2005/dreamsync/internal/store"
)

// mediaKind is the object-store path segment for dream videos.
const mediaKind = "videos"

// MediaLocator resolves a record's cached media file on disk. The cache
// manager satisfies this interface.
type MediaLocator interface {
	// LocalPath returns the full on-disk path derived from the record's
	// LocalMediaPath. The bool reports whether the file actually exists.
	LocalPath(rec *models.Record) (string, bool)
}

// Reconciler performs one-directional (remote→local) metadata merges and
// the upload half of the record lifecycle. At most one pass runs per owner
// at a time; different owners proceed independently.
type Reconciler struct {
	mirror remote.Mirror
	store  *store.RecordStore
	blobs  objstore.Store
	media  MediaLocator
	log    logging.Logger

	// now is a test seam.
	now func() time.Time

	mu       sync.Mutex
	ownerMus map[string]*sync.Mutex
}

// New builds a reconciler. blobs and media may be nil when the upload path
// is not used (pull-only deployments).
func New(mirror remote.Mirror, st *store.RecordStore, blobs objstore.Store, media MediaLocator, log logging.Logger) *Reconciler {
	return &Reconciler{
		mirror:   mirror,
		store:    st,
		blobs:    blobs,
		media:    media,
		log:      log,
		now:      time.Now,
		ownerMus: make(map[string]*sync.Mutex),
	}
}

// lockOwner serializes sync passes per owner. The returned func releases
// the lock.
func (r *Reconciler) lockOwner(ownerID string) func() {
	r.mu.Lock()
	m, ok := r.ownerMus[ownerID]
	if !ok {
		m = &sync.Mutex{}
		r.ownerMus[ownerID] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// SyncMetadata pulls the owner's remote documents and merges them into the
// local store.
//
// Merge policy is timestamp-compared last-writer-wins: a remote version is
// applied only when its UpdatedAt is strictly newer than the local one, so
// an offline local edit with a later timestamp survives the pass. Content
// fields are overwritten wholesale; LocalMediaPath is never touched,
// caching being a local-only concern. Documents missing required fields are
// skipped with a warning, never failing the batch. Records absent remotely
// are never deleted here: deletion is an explicit separate path, and wiping
// local data on a transient remote outage would be destructive.
//
// The pass is idempotent: with no remote changes a second run applies
// nothing and flushes nothing.
func (r *Reconciler) SyncMetadata(ctx context.Context, ownerID string) error {
	defer r.lockOwner(ownerID)()

	docs, err := r.mirror.FetchAll(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to fetch remote documents: %w", err)
	}

	locals, err := r.store.FetchAll(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to fetch local records: %w", err)
	}

	byID := make(map[string]*models.Record, len(locals))
	for _, rec := range locals {
		byID[rec.ID] = rec
	}

	now := r.now().UTC()
	var applied, inserted, skipped int

	for i := range docs {
		rec, err := docs[i].Record()
		if err != nil {
			skipped++
			r.log.Warn(ctx, "skipping malformed document", "err", err)
			continue
		}
		// The query is owner-scoped already; a document claiming another
		// owner must not leak into this owner's pass.
		if rec.OwnerID != ownerID {
			skipped++
			r.log.Warn(ctx, "skipping document with foreign owner", "id", rec.ID, "owner", rec.OwnerID)
			continue
		}

		local, ok := byID[rec.ID]
		if !ok {
			rec.LastSyncedAt = now
			r.store.Insert(rec)
			inserted++
			continue
		}

		if !rec.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		local.ApplyRemote(rec, now)
		r.store.MarkDirty(local)
		applied++
	}

	if err := r.store.Save(ctx); err != nil {
		return err
	}

	r.log.Info(ctx, "metadata sync finished", "owner", ownerID,
		"remote", len(docs), "applied", applied, "inserted", inserted, "skipped", skipped)
	return nil
}

// PushPending uploads the owner's locally-recorded dreams: for every record
// whose upload has not completed, the cached media file goes to the object
// store under <owner>/videos/<id>.<ext>, MediaURL is rewritten to the
// store's locator, and the document is written to the mirror. Per-record
// failures mark the record failed and move on; a later pass retries them.
func (r *Reconciler) PushPending(ctx context.Context, ownerID string) error {
	defer r.lockOwner(ownerID)()

	if r.blobs == nil || r.media == nil {
		return nil
	}

	pending, err := r.store.FetchPending(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to fetch pending records: %w", err)
	}

	for _, rec := range pending {
		r.pushOne(ctx, rec)
		r.store.MarkDirty(rec)
	}

	return r.store.Save(ctx)
}

func (r *Reconciler) pushOne(ctx context.Context, rec *models.Record) {
	localPath, exists := r.media.LocalPath(rec)
	if !exists {
		// Nothing to upload yet; leave the record pending.
		r.log.Warn(ctx, "pending record has no local media", "id", rec.ID)
		return
	}

	ext := filepath.Ext(rec.LocalMediaPath)
	if ext == "" {
		ext = ".mp4"
	}
	key := objstore.ObjectKey(rec.OwnerID, mediaKind, rec.ID, ext)

	rec.SyncState = models.SyncStateUploading

	if err := r.blobs.Upload(ctx, localPath, key); err != nil {
		rec.SyncState = models.SyncStateFailed
		r.log.Error(ctx, "media upload failed", "id", rec.ID, "err", err)
		return
	}
	rec.SyncState = models.SyncStateUploaded
	rec.MediaURL = r.blobs.URL(key)

	now := r.now().UTC()
	rec.UpdatedAt = now

	if err := r.mirror.Put(ctx, models.NewDocument(rec)); err != nil {
		// The object is uploaded; re-running the pass re-puts the same key
		// and retries the document write.
		rec.SyncState = models.SyncStateFailed
		r.log.Error(ctx, "document write failed", "id", rec.ID, "err", err)
		return
	}

	rec.SyncState = models.SyncStateSynced
	rec.LastSyncedAt = now
}
