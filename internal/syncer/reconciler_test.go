package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/logging"
	"github.com/dmitrijs2005/dreamsync/internal/models"
	"github.com/dmitrijs2005/dreamsync/internal/store"
)

type fakeMirror struct {
	docs   []models.Document
	err    error
	puts   []models.Document
	putErr error
}

func (m *fakeMirror) FetchAll(ctx context.Context, ownerID string) ([]models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *fakeMirror) Put(ctx context.Context, doc *models.Document) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts = append(m.puts, *doc)
	return nil
}

type fakeBlobs struct {
	uploads map[string]string // key -> local path
	err     error
}

func (b *fakeBlobs) Upload(ctx context.Context, localPath, key string) error {
	if b.err != nil {
		return b.err
	}
	if b.uploads == nil {
		b.uploads = make(map[string]string)
	}
	b.uploads[key] = localPath
	return nil
}

func (b *fakeBlobs) DownloadURL(ctx context.Context, key string) (string, error) {
	return "https://minio/dreams/" + key, nil
}

func (b *fakeBlobs) URL(key string) string {
	return "s3://dreams/" + key
}

type fakeMedia struct {
	paths map[string]string // record id -> existing local path
}

func (f *fakeMedia) LocalPath(rec *models.Record) (string, bool) {
	p, ok := f.paths[rec.ID]
	return p, ok
}

func discardLogger() logging.Logger {
	return logging.NewTextLogger(io.Discard, slog.LevelError)
}

func setupStore(t *testing.T) *store.RecordStore {
	t.Helper()
	st, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "dreams.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func doc(id, owner, title string, updated time.Time) models.Document {
	return models.Document{
		ID:        id,
		OwnerID:   owner,
		Title:     title,
		MediaURL:  "https://cdn/" + id + ".mp4",
		UpdatedAt: updated.UnixMilli(),
		SyncState: "synced",
	}
}

func TestSyncMetadata_InsertsMissingRecords(t *testing.T) {
	st := setupStore(t)
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mirror := &fakeMirror{docs: []models.Document{doc("d1", "u1", "T1", t1)}}

	r := New(mirror, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(context.Background(), "u1"))

	got, err := st.FetchAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "T1", got[0].Title)
	assert.False(t, got[0].LastSyncedAt.IsZero())
}

func TestSyncMetadata_MergeKeepsLocalMediaPath(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	local := &models.Record{
		ID: "d1", OwnerID: "u1", Title: "Old",
		MediaURL: "https://cdn/d1.mp4", LocalMediaPath: "x.mp4",
		UpdatedAt: t1,
	}
	st.Insert(local)
	require.NoError(t, st.Save(ctx))

	mirror := &fakeMirror{docs: []models.Document{doc("d1", "u1", "New", t1.Add(time.Hour))}}
	r := New(mirror, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(ctx, "u1"))

	got, err := st.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "x.mp4", got.LocalMediaPath)
}

func TestSyncMetadata_LocalNewerWins(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	local := &models.Record{
		ID: "d1", OwnerID: "u1", Title: "Edited offline",
		MediaURL: "https://cdn/d1.mp4", UpdatedAt: t1.Add(time.Hour),
	}
	st.Insert(local)
	require.NoError(t, st.Save(ctx))

	mirror := &fakeMirror{docs: []models.Document{doc("d1", "u1", "Stale remote", t1)}}
	r := New(mirror, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(ctx, "u1"))

	got, err := st.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Edited offline", got.Title)
}

func TestSyncMetadata_Idempotent(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mirror := &fakeMirror{docs: []models.Document{doc("d1", "u1", "T1", t1)}}
	r := New(mirror, st, nil, nil, discardLogger())

	require.NoError(t, r.SyncMetadata(ctx, "u1"))
	first, err := st.FetchAll(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, r.SyncMetadata(ctx, "u1"))
	second, err := st.FetchAll(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyncMetadata_NoCrossOwnerLeakage(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mirror := &fakeMirror{docs: []models.Document{
		doc("d1", "alice", "A", t1),
		doc("d2", "bob", "B", t1), // must not leak into alice's store
	}}
	r := New(mirror, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(ctx, "alice"))

	alices, err := st.FetchAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alices, 1)
	assert.Equal(t, "d1", alices[0].ID)

	bobs, err := st.FetchAll(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestSyncMetadata_SkipsMalformedDocuments(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	bad := models.Document{ID: "d0", OwnerID: "u1"} // no media_url
	mirror := &fakeMirror{docs: []models.Document{bad, doc("d1", "u1", "T1", t1)}}

	r := New(mirror, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(ctx, "u1"))

	got, err := st.FetchAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}

func TestSyncMetadata_NeverDeletesLocalRecords(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	local := &models.Record{ID: "d1", OwnerID: "u1", MediaURL: "https://cdn/d1.mp4"}
	st.Insert(local)
	require.NoError(t, st.Save(ctx))

	// Remote outage scenario: the mirror returns an empty set.
	r := New(&fakeMirror{}, st, nil, nil, discardLogger())
	require.NoError(t, r.SyncMetadata(ctx, "u1"))

	got, err := st.FetchAll(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSyncMetadata_PropagatesTransportError(t *testing.T) {
	st := setupStore(t)
	mirror := &fakeMirror{err: fmt.Errorf("%w: dial tcp: connection refused", common.ErrNoNetwork)}

	r := New(mirror, st, nil, nil, discardLogger())
	err := r.SyncMetadata(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrNoNetwork)
}

// gatedMirror blocks its first FetchAll until released and counts calls,
// so a test can hold one sync pass open while a second one tries to start.
type gatedMirror struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (m *gatedMirror) FetchAll(ctx context.Context, ownerID string) ([]models.Document, error) {
	if m.calls.Add(1) == 1 {
		close(m.entered)
		<-m.release
	}
	return nil, nil
}

func (m *gatedMirror) Put(ctx context.Context, doc *models.Document) error { return nil }

func TestSyncMetadata_OnePassPerOwnerAtATime(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	mirror := &gatedMirror{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := New(mirror, st, nil, nil, discardLogger())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- r.SyncMetadata(ctx, "u1")
	}()

	// The first pass is now inside its remote fetch, holding the owner
	// lock. A second pass for the same owner must not reach the mirror
	// until the first finishes.
	<-mirror.entered
	go func() {
		defer wg.Done()
		errs <- r.SyncMetadata(ctx, "u1")
	}()

	assert.Never(t, func() bool {
		return mirror.calls.Load() > 1
	}, 150*time.Millisecond, 10*time.Millisecond)

	close(mirror.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), mirror.calls.Load())
}

func TestPushPending_UploadsAndSyncs(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	clip := filepath.Join(t.TempDir(), "d1.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("bytes"), 0o600))

	rec := &models.Record{
		ID: "d1", OwnerID: "u1", Title: "T1",
		MediaURL: "local://d1", LocalMediaPath: "d1.mp4",
		SyncState: models.SyncStatePending,
	}
	st.Insert(rec)
	require.NoError(t, st.Save(ctx))

	mirror := &fakeMirror{}
	blobs := &fakeBlobs{}
	media := &fakeMedia{paths: map[string]string{"d1": clip}}

	r := New(mirror, st, blobs, media, discardLogger())
	require.NoError(t, r.PushPending(ctx, "u1"))

	got, err := st.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateSynced, got.SyncState)
	assert.Equal(t, "s3://dreams/u1/videos/d1.mp4", got.MediaURL)
	assert.Contains(t, blobs.uploads, "u1/videos/d1.mp4")

	require.Len(t, mirror.puts, 1)
	assert.Equal(t, "d1", mirror.puts[0].ID)
	assert.Equal(t, "s3://dreams/u1/videos/d1.mp4", mirror.puts[0].MediaURL)
}

func TestPushPending_UploadFailureMarksFailed(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	clip := filepath.Join(t.TempDir(), "d1.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("bytes"), 0o600))

	rec := &models.Record{
		ID: "d1", OwnerID: "u1", MediaURL: "local://d1",
		LocalMediaPath: "d1.mp4", SyncState: models.SyncStatePending,
	}
	st.Insert(rec)
	require.NoError(t, st.Save(ctx))

	blobs := &fakeBlobs{err: fmt.Errorf("quota exceeded")}
	media := &fakeMedia{paths: map[string]string{"d1": clip}}

	r := New(&fakeMirror{}, st, blobs, media, discardLogger())
	require.NoError(t, r.PushPending(ctx, "u1"))

	got, err := st.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateFailed, got.SyncState)
	// The locator must not change when nothing was uploaded.
	assert.Equal(t, "local://d1", got.MediaURL)
}

func TestPushPending_MissingMediaStaysPending(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	rec := &models.Record{
		ID: "d1", OwnerID: "u1", MediaURL: "local://d1",
		SyncState: models.SyncStatePending,
	}
	st.Insert(rec)
	require.NoError(t, st.Save(ctx))

	r := New(&fakeMirror{}, st, &fakeBlobs{}, &fakeMedia{paths: map[string]string{}}, discardLogger())
	require.NoError(t, r.PushPending(ctx, "u1"))

	got, err := st.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePending, got.SyncState)
}
