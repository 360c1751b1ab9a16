package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/notesaas/internal/db"
)

// SoftDelete moves a live note into the recycle bin. The bin copy is written
// first; if removing the live row then fails, the copy is removed again.
func (s *Service) SoftDelete(ctx context.Context, userID, noteID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	deletedAt := s.clock.Now().UTC().Unix()

	return s.atomically(ctx, "soft delete", func(u *unit) error {
		row, err := u.store.GetNote(ctx, db.GetNoteParams{ID: noteID, UserID: userID})
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read note: %w", err)
		}

		err = u.store.InsertBinEntry(ctx, db.InsertBinEntryParams{
			ID:          row.ID,
			UserID:      row.UserID,
			Title:       row.Title,
			Description: row.Description,
			Pinned:      row.Pinned,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			DeletedAt:   deletedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to copy note to recycle bin: %w", err)
		}
		u.compensate(func(ctx context.Context) error {
			_, err := u.store.DeleteBinEntry(ctx, db.DeleteBinEntryParams{ID: row.ID, UserID: userID})
			return err
		})

		removed, err := u.store.DeleteNote(ctx, db.DeleteNoteParams{ID: row.ID, UserID: userID})
		if err != nil {
			return fmt.Errorf("failed to remove live note: %w", err)
		}
		if removed == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Restore moves a binned note back to the live table with its original id,
// creation time and pin flag. Restoring counts against the live-note quota.
func (s *Service) Restore(ctx context.Context, userID, noteID string) (*Note, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC().Unix()

	var restored db.Note
	err := s.atomically(ctx, "restore", func(u *unit) error {
		entry, err := u.store.GetBinEntry(ctx, db.GetBinEntryParams{ID: noteID, UserID: userID})
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read recycle bin entry: %w", err)
		}

		restored = db.Note{
			ID:          entry.ID,
			UserID:      entry.UserID,
			Title:       entry.Title,
			Description: entry.Description,
			Pinned:      entry.Pinned,
			CreatedAt:   entry.CreatedAt,
			UpdatedAt:   max(now, entry.UpdatedAt),
		}
		if err := u.store.CreateNote(ctx, db.CreateNoteParams(restored)); err != nil {
			return fmt.Errorf("failed to restore live note: %w", err)
		}
		u.compensate(func(ctx context.Context) error {
			_, err := u.store.DeleteNote(ctx, db.DeleteNoteParams{ID: entry.ID, UserID: userID})
			return err
		})

		removed, err := u.store.DeleteBinEntry(ctx, db.DeleteBinEntryParams{ID: entry.ID, UserID: userID})
		if err != nil {
			return fmt.Errorf("failed to remove recycle bin entry: %w", err)
		}
		if removed == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	n := fromDB(restored)
	return &n, nil
}

// Purge permanently deletes one binned note. Purging something that is not
// in the bin is a no-op.
func (s *Service) Purge(ctx context.Context, userID, noteID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if _, err := s.store.DeleteBinEntry(ctx, db.DeleteBinEntryParams{ID: noteID, UserID: userID}); err != nil {
		return fmt.Errorf("failed to purge note: %w", err)
	}
	return nil
}

// EmptyBin permanently deletes every binned note of the user and reports how
// many were removed.
func (s *Service) EmptyBin(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUnauthorized
	}
	n, err := s.store.DeleteAllBinEntries(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to empty recycle bin: %w", err)
	}
	return n, nil
}

// ListBin returns the user's binned notes, most recently deleted first.
func (s *Service) ListBin(ctx context.Context, userID string) ([]BinEntry, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	rows, err := s.store.ListBinEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recycle bin: %w", err)
	}
	now := s.clock.Now()
	out := make([]BinEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, binEntry(r, now))
	}
	return out, nil
}

// PurgeExpired permanently deletes, across all users, bin entries deleted
// more than olderThan ago. With dryRun it only reports them.
func (s *Service) PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool) (SweepResult, error) {
	if olderThan <= 0 {
		return SweepResult{}, fmt.Errorf("retention must be positive, got %s", olderThan)
	}
	now := s.clock.Now()
	cutoff := now.Add(-olderThan).UTC()

	rows, err := s.store.ListBinEntriesBefore(ctx, cutoff.Unix())
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list expired entries: %w", err)
	}
	res := SweepResult{Cutoff: cutoff}
	for _, r := range rows {
		res.Entries = append(res.Entries, binEntry(r, now))
	}
	if dryRun {
		return res, nil
	}

	res.Purged, err = s.store.DeleteBinEntriesBefore(ctx, cutoff.Unix())
	if err != nil {
		return res, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return res, nil
}

// Export snapshots the user's live notes and recycle bin.
func (s *Service) Export(ctx context.Context, userID string) (*Export, error) {
	live, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	bin, err := s.ListBin(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Export{
		ExportedAt: s.clock.Now().UTC(),
		Notes:      live,
		RecycleBin: bin,
	}, nil
}

// DaysRemaining is the whole days left before a note deleted at deletedAt
// becomes eligible for permanent deletion, never negative.
func DaysRemaining(deletedAt, now time.Time) int {
	left := deletedAt.Add(RetentionPeriod).Sub(now)
	if left <= 0 {
		return 0
	}
	day := 24 * time.Hour
	return int((left + day - 1) / day)
}

func binEntry(r db.RecycleBinEntry, now time.Time) BinEntry {
	deletedAt := time.Unix(r.DeletedAt, 0).UTC()
	days := DaysRemaining(deletedAt, now)
	return BinEntry{
		Note: Note{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Pinned:      r.Pinned != 0,
			CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
			UpdatedAt:   time.Unix(r.UpdatedAt, 0).UTC(),
		},
		DeletedAt:      deletedAt,
		DaysRemaining:  days,
		DueForDeletion: days == 0,
		ExpiringSoon:   days <= ExpiryWarningDays,
	}
}
