// Command binsweep permanently deletes recycle-bin entries older than the
// retention window. Run it from cron; the web app itself never hard-expires
// binned notes.
//
// Usage:
//
//	binsweep [--older-than 720h] [--dry-run] [--db ./data/notesaas.db]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/config"
	"github.com/kuitang/notesaas/internal/crypto"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/obs"
)

// dbKeyVersion must match the server's.
const dbKeyVersion = 1

type sweepOptions struct {
	olderThan time.Duration
	dryRun    bool
	dbPath    string
	envFile   string
	clock     clock.Clock
}

func main() {
	if err := newRootCmd(clock.Real{}).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c clock.Clock) *cobra.Command {
	opts := sweepOptions{clock: c}
	cmd := &cobra.Command{
		Use:           "binsweep",
		Short:         "Permanently delete expired recycle-bin entries",
		Args:          cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().DurationVar(&opts.olderThan, "older-than", notes.RetentionPeriod, "Delete entries binned longer ago than this")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List what would be deleted without deleting")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Database path (default $DATABASE_PATH or "+db.DefaultPath+")")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "Optional env file with MASTER_KEY")
	return cmd
}

func runSweep(ctx context.Context, out io.Writer, opts sweepOptions) error {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	masterKey, err := crypto.ParseMasterKey(strings.TrimSpace(os.Getenv("MASTER_KEY")))
	if err != nil {
		return fmt.Errorf("MASTER_KEY: %w", err)
	}
	path := opts.dbPath
	if path == "" {
		path = os.Getenv("DATABASE_PATH")
	}

	d, err := db.Open(path, crypto.DatabaseKey(masterKey, dbKeyVersion))
	if err != nil {
		return err
	}
	defer d.Close()

	svc := notes.NewService(d, entitlement.NewResolver(d), notes.WithClock(opts.clock))
	res, err := svc.PurgeExpired(ctx, opts.olderThan, opts.dryRun)
	if err != nil {
		return err
	}

	obs.Pkg("binsweep").Info("sweep_finished",
		"cutoff", res.Cutoff,
		"expired", len(res.Entries),
		"purged", res.Purged,
		"dry_run", opts.dryRun,
	)
	for _, e := range res.Entries {
		fmt.Fprintf(out, "%s\tdeleted %s\t%q\n", e.ID, e.DeletedAt.Format(time.RFC3339), e.Title)
	}
	if opts.dryRun {
		fmt.Fprintf(out, "dry run: %d entries binned before %s would be deleted\n", len(res.Entries), res.Cutoff.Format(time.RFC3339))
		return nil
	}
	fmt.Fprintf(out, "deleted %d entries binned before %s\n", res.Purged, res.Cutoff.Format(time.RFC3339))
	return nil
}
