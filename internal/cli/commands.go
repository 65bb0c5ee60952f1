package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/models"
)

// Add registers a local recording as a new dream record in pending/pending
// state. The media file is copied into the cache; MediaURL stays a
// local-only placeholder until the first sync uploads the asset.
func (a *App) Add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id")
	file := fs.String("file", "", "path of the recorded video")
	title := fs.String("title", "", "dream title")
	description := fs.String("description", "", "dream description")
	style := fs.String("style", "", "visual style selector")
	tags := fs.String("tags", "", "comma-separated category tags")
	date := fs.String("date", "", "dream date (2006-01-02, defaults to today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" || *file == "" {
		return errors.New("add: -owner and -file are required")
	}

	dreamDate := time.Now().UTC().Truncate(24 * time.Hour)
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("add: invalid -date: %w", err)
		}
		dreamDate = parsed
	}

	now := time.Now().UTC()
	rec := &models.Record{
		ID:              uuid.NewString(),
		OwnerID:         *owner,
		Title:           *title,
		Description:     *description,
		Style:           *style,
		Tags:            splitTags(*tags),
		DreamDate:       dreamDate,
		CreatedAt:       now,
		UpdatedAt:       now,
		SyncState:       models.SyncStatePending,
		ProcessingState: models.ProcessingStatePending,
	}
	rec.MediaURL = "local://" + rec.ID

	a.store.Insert(rec)
	if err := a.cache.Adopt(ctx, rec, *file); err != nil {
		return fmt.Errorf("add: failed to copy media into cache: %w", err)
	}

	a.printf("added %s (%s)\n", rec.ID, rec.Title)
	return nil
}

// Sync pushes pending local records upstream and then pulls remote
// metadata.
func (a *App) Sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		return errors.New("sync: -owner is required")
	}

	if err := a.reconciler.PushPending(ctx, *owner); err != nil {
		return err
	}
	if err := a.reconciler.SyncMetadata(ctx, *owner); err != nil {
		return err
	}

	a.printf("sync finished for %s\n", *owner)
	return nil
}

// Fetch materializes one record's media locally and prints its path.
func (a *App) Fetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("fetch: -id is required")
	}

	rec, err := a.store.GetByID(ctx, *id)
	if err != nil {
		return err
	}

	p, err := a.cache.EnsureLocal(ctx, rec)
	if err != nil {
		return err
	}

	a.printf("%s\n", p)
	return nil
}

// Remove deletes a record from the local store. The cached media file is
// left for the next gc pass to reclaim.
func (a *App) Remove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("rm: -id is required")
	}

	rec, err := a.store.GetByID(ctx, *id)
	if err != nil {
		return err
	}
	if err := a.store.Delete(ctx, *id); err != nil {
		return err
	}

	a.printf("removed %s (%s); run 'gc -owner %s' to reclaim cached media\n",
		rec.ID, rec.Title, rec.OwnerID)
	return nil
}

// GC garbage-collects the owner's cache directory.
func (a *App) GC(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		return errors.New("gc: -owner is required")
	}

	return a.cache.Cleanup(ctx, *owner)
}

// List prints the owner's records with their lifecycle states.
func (a *App) List(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		return errors.New("list: -owner is required")
	}

	recs, err := a.store.FetchAll(ctx, *owner)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		cached := " "
		if a.cache.IsLocal(rec) {
			cached = "*"
		}
		a.printf("%s %s  %-10s %-10s %s\n",
			cached, rec.ID, rec.SyncState, rec.ProcessingState, rec.Title)
	}
	a.printf("%d record(s)\n", len(recs))
	return nil
}

// FormatError renders an engine error for the terminal. ErrNoNetwork gets
// a distinct offline message instead of a generic failure.
func FormatError(err error) string {
	if errors.Is(err, common.ErrNoNetwork) {
		return "offline: sync deferred until connectivity returns"
	}
	return "error: " + err.Error()
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
