// Package cache manages the on-device media cache: lazy materialization of
// remote video assets and garbage collection of files no longer referenced
// by any local record.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/logging"
	"github.com/dmitrijs2005/dreamsync/internal/models"
	"github.com/dmitrijs2005/dreamsync/internal/netx"
	"github.com/dmitrijs2005/dreamsync/internal/objstore"
	"github.com/dmitrijs2005/dreamsync/internal/store"
)

// Manager materializes media files under <root>/<kind>/<ownerID>/<filename>
// and garbage-collects what no record references anymore. Concurrent
// EnsureLocal calls for the same record are coalesced so an asset is never
// downloaded twice at once; different records proceed in parallel.
type Manager struct {
	root  string
	kind  string
	store *store.RecordStore
	blobs objstore.Store // resolves s3:// locators; may be nil
	log   logging.Logger

	client *http.Client
	group  singleflight.Group
}

// NewManager builds a cache manager rooted at root. blobs may be nil when
// records only carry plain HTTP media URLs.
func NewManager(root string, kind string, st *store.RecordStore, blobs objstore.Store, log logging.Logger) *Manager {
	return &Manager{
		root:   root,
		kind:   kind,
		store:  st,
		blobs:  blobs,
		log:    log,
		client: &http.Client{},
	}
}

func (m *Manager) ownerDir(ownerID string) string {
	return filepath.Join(m.root, m.kind, ownerID)
}

// LocalPath derives the record's on-disk path and reports whether the file
// exists. No side effects, no network.
func (m *Manager) LocalPath(rec *models.Record) (string, bool) {
	if rec.LocalMediaPath == "" {
		return "", false
	}
	p := filepath.Join(m.ownerDir(rec.OwnerID), rec.LocalMediaPath)
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return p, false
	}
	return p, true
}

// IsLocal reports whether the record's media is already cached on disk.
func (m *Manager) IsLocal(rec *models.Record) bool {
	_, ok := m.LocalPath(rec)
	return ok
}

// EnsureLocal returns the on-disk path of the record's media, downloading
// it first if needed.
//
// A set LocalMediaPath whose file is gone (evicted by the OS under storage
// pressure) counts as a miss and is healed by re-downloading, never
// surfaced as an error. On a miss the asset is fetched from MediaURL, only
// the filename is written back onto the record (full paths do not survive
// reinstalls), the store is flushed, and the file's existence is verified.
// Download failures leave LocalMediaPath untouched.
func (m *Manager) EnsureLocal(ctx context.Context, rec *models.Record) (string, error) {
	// All record access runs inside the flight so concurrent calls for the
	// same record never race: a hit is a cheap Stat, a miss downloads once
	// and every waiter shares the result.
	v, err, _ := m.group.Do(rec.ID, func() (any, error) {
		if p, ok := m.LocalPath(rec); ok {
			return p, nil
		}
		return m.download(ctx, rec)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) download(ctx context.Context, rec *models.Record) (string, error) {
	dir := m.ownerDir(rec.OwnerID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: failed to create cache dir: %v", common.ErrDownloadFailed, err)
	}

	filename := rec.LocalMediaPath
	if filename == "" {
		filename = m.filenameFor(rec)
	}
	dst := filepath.Join(dir, filename)

	srcURL, err := m.resolveURL(ctx, rec.MediaURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDownloadFailed, err)
	}

	if err := netx.DownloadToFile(ctx, m.client, srcURL, dst); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDownloadFailed, err)
	}

	rec.LocalMediaPath = filename
	m.store.MarkDirty(rec)
	if err := m.store.Save(ctx); err != nil {
		return "", err
	}

	if _, err := os.Stat(dst); err != nil {
		return "", fmt.Errorf("%w: %s", common.ErrFileMissingAfterDownload, dst)
	}

	m.log.Debug(ctx, "media cached", "id", rec.ID, "file", filename)
	return dst, nil
}

// filenameFor derives the cache filename from the media URL's last path
// component, falling back to <id>.mp4 when the URL yields nothing usable.
func (m *Manager) filenameFor(rec *models.Record) string {
	if u, err := url.Parse(rec.MediaURL); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" && !strings.ContainsAny(base, `\:`) {
			return base
		}
	}
	return rec.ID + ".mp4"
}

// resolveURL turns an s3:// locator into a presigned HTTP URL; plain HTTP
// URLs pass through untouched.
func (m *Manager) resolveURL(ctx context.Context, mediaURL string) (string, error) {
	_, key, ok := objstore.ParseURL(mediaURL)
	if !ok {
		return mediaURL, nil
	}
	if m.blobs == nil {
		return "", errors.New("s3 media URL but no object store configured")
	}
	return m.blobs.DownloadURL(ctx, key)
}

// Adopt copies a freshly recorded file into the cache under the record's
// identity and sets LocalMediaPath. Used when a record is created locally,
// before its first upload.
func (m *Manager) Adopt(ctx context.Context, rec *models.Record, srcPath string) error {
	dir := m.ownerDir(rec.OwnerID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	ext := filepath.Ext(srcPath)
	if ext == "" {
		ext = ".mp4"
	}
	filename := rec.ID + ext

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	rec.LocalMediaPath = filename
	m.store.MarkDirty(rec)
	return m.store.Save(ctx)
}

// Cleanup deletes every file in the owner's cache directory that no local
// record references anymore. This is the only garbage-collection mechanism:
// no reference counting, no LRU, just "still pointed to by a record".
// Per-file deletion failures are logged and skipped so one bad file never
// stalls the pass.
func (m *Manager) Cleanup(ctx context.Context, ownerID string) error {
	recs, err := m.store.FetchAll(ctx, ownerID)
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		if rec.LocalMediaPath != "" {
			live[rec.LocalMediaPath] = struct{}{}
		}
	}

	dir := m.ownerDir(ownerID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := live[e.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			m.log.Warn(ctx, "failed to remove orphaned file", "file", e.Name(), "err", err)
			continue
		}
		removed++
	}

	m.log.Info(ctx, "cache cleanup finished", "owner", ownerID, "removed", removed, "live", len(live))
	return nil
}
