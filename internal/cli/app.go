// Package cli implements the one-shot dreamsync command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/dreamsync/internal/cache"
	"github.com/dmitrijs2005/dreamsync/internal/config"
	"github.com/dmitrijs2005/dreamsync/internal/logging"
	"github.com/dmitrijs2005/dreamsync/internal/objstore"
	"github.com/dmitrijs2005/dreamsync/internal/remote"
	"github.com/dmitrijs2005/dreamsync/internal/store"
	"github.com/dmitrijs2005/dreamsync/internal/syncer"
)

// App wires the engine's services together for the CLI commands.
type App struct {
	config     *config.Config
	store      *store.RecordStore
	cache      *cache.Manager
	reconciler *syncer.Reconciler
	log        logging.Logger

	// out is a test seam for user-facing output.
	out io.Writer
}

// NewApp builds the service graph from the loaded configuration. The S3
// object store is optional: without credentials the app still pulls
// metadata and caches plain-HTTP media, it just cannot upload.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	st, err := store.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	tokens := remote.NewFileTokenSource(cfg.TokenFile)
	mirror := remote.NewHTTPMirror(cfg.ServerURL, cfg.HTTPTimeout, tokens)

	var blobs objstore.Store
	if cfg.S3AccessKey != "" {
		s3store, err := objstore.NewS3Store(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object store: %w", err)
		}
		blobs = s3store
	}

	mediaCache := cache.NewManager(cfg.CacheDir, "videos", st, blobs, log)
	rec := syncer.New(mirror, st, blobs, mediaCache, log)

	return &App{
		config:     cfg,
		store:      st,
		cache:      mediaCache,
		reconciler: rec,
		log:        log,
		out:        os.Stdout,
	}, nil
}

// Close releases the local store.
func (a *App) Close() error {
	return a.store.Close()
}

// Run dispatches a single command. Usage:
//
//	dreamsync add   -owner u1 -file clip.mp4 [-title t] [-tags a,b] [-style s] [-date 2006-01-02]
//	dreamsync sync  -owner u1
//	dreamsync fetch -id d1
//	dreamsync rm    -id d1
//	dreamsync gc    -owner u1
//	dreamsync list  -owner u1
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "add":
		return a.Add(ctx, rest)
	case "sync":
		return a.Sync(ctx, rest)
	case "fetch":
		return a.Fetch(ctx, rest)
	case "rm":
		return a.Remove(ctx, rest)
	case "gc":
		return a.GC(ctx, rest)
	case "list":
		return a.List(ctx, rest)
	case "help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: dreamsync <add|sync|fetch|rm|gc|list> [flags]")
	fmt.Fprintln(a.out, "Global flags: -c config.json -s server -db path -cache dir -t timeout")
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
