// Package export writes a user's notes to object storage as JSON and
// returns a short-lived download link.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/obs"
)

const (
	// LinkTTL is how long a presigned download link stays valid.
	LinkTTL = 15 * time.Minute

	// KeepPerUser is how many exports a user keeps in the bucket. Older
	// ones are deleted after each new export.
	KeepPerUser = 3
)

// ErrUnauthorized is returned when no user identity is supplied.
var ErrUnauthorized = notes.ErrUnauthorized

// Snapshotter produces the data to export. *notes.Service satisfies it.
type Snapshotter interface {
	Export(ctx context.Context, userID string) (*notes.Export, error)
}

// ObjectStore is the storage the exporter writes to. *s3client.Client
// satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteObjects(ctx context.Context, keys []string) error
}

// Result describes a finished export.
type Result struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Notes     int
	Binned    int
}

type Exporter struct {
	source Snapshotter
	store  ObjectStore
	clock  clock.Clock
}

func NewExporter(source Snapshotter, store ObjectStore, c clock.Clock) *Exporter {
	if c == nil {
		c = clock.Real{}
	}
	return &Exporter{source: source, store: store, clock: c}
}

func prefix(userID string) string {
	return "exports/" + userID + "/"
}

// Key returns the object key for userID's export taken at t. Keys of one
// user sort oldest first.
func Key(userID string, t time.Time) string {
	return prefix(userID) + t.UTC().Format("20060102T150405Z") + ".json"
}

// Run snapshots the user's notes, uploads them and presigns a link.
func (e *Exporter) Run(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, ErrUnauthorized
	}
	snap, err := e.source.Export(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot notes: %w", err)
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "encode export", err)
	}

	key := Key(userID, snap.ExportedAt)
	if err := e.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return Result{}, fmt.Errorf("upload export: %w", err)
	}
	url, err := e.store.PresignGet(ctx, key, LinkTTL)
	if err != nil {
		return Result{}, fmt.Errorf("presign export: %w", err)
	}

	log := obs.From(ctx).With("pkg", "export")
	log.Info("export_written",
		"key", key, "notes", len(snap.Notes), "binned", len(snap.RecycleBin), "bytes", len(body))
	if pruned, err := e.prune(ctx, userID); err != nil {
		log.Warn("export_prune_failed", "error", err)
	} else if pruned > 0 {
		log.Info("exports_pruned", "count", pruned)
	}
	return Result{
		Key:       key,
		URL:       url,
		ExpiresAt: e.clock.Now().Add(LinkTTL),
		Notes:     len(snap.Notes),
		Binned:    len(snap.RecycleBin),
	}, nil
}

// prune deletes all but the newest KeepPerUser exports of userID.
func (e *Exporter) prune(ctx context.Context, userID string) (int, error) {
	keys, err := e.store.ListKeys(ctx, prefix(userID))
	if err != nil {
		return 0, err
	}
	if len(keys) <= KeepPerUser {
		return 0, nil
	}
	slices.Sort(keys)
	stale := keys[:len(keys)-KeepPerUser]
	if err := e.store.DeleteObjects(ctx, stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}
