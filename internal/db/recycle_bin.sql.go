package db

import (
	"context"
)

const binColumns = `id, user_id, title, description, pinned, created_at, updated_at, deleted_at`

func scanBinEntry(row interface{ Scan(...any) error }) (RecycleBinEntry, error) {
	var i RecycleBinEntry
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.Description,
		&i.Pinned,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
	)
	return i, err
}

func (q *Queries) listBin(ctx context.Context, query string, args ...any) ([]RecycleBinEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecycleBinEntry
	for rows.Next() {
		i, err := scanBinEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertBinEntry = `INSERT INTO recycle_bin (` + binColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type InsertBinEntryParams struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Pinned      int64
	CreatedAt   int64
	UpdatedAt   int64
	DeletedAt   int64
}

func (q *Queries) InsertBinEntry(ctx context.Context, arg InsertBinEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertBinEntry,
		arg.ID,
		arg.UserID,
		arg.Title,
		arg.Description,
		arg.Pinned,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.DeletedAt,
	)
	return err
}

const getBinEntry = `SELECT ` + binColumns + ` FROM recycle_bin WHERE id = ? AND user_id = ?`

type GetBinEntryParams struct {
	ID     string
	UserID string
}

func (q *Queries) GetBinEntry(ctx context.Context, arg GetBinEntryParams) (RecycleBinEntry, error) {
	return scanBinEntry(q.db.QueryRowContext(ctx, getBinEntry, arg.ID, arg.UserID))
}

const listBinEntries = `SELECT ` + binColumns + ` FROM recycle_bin WHERE user_id = ?
ORDER BY deleted_at DESC, id`

func (q *Queries) ListBinEntries(ctx context.Context, userID string) ([]RecycleBinEntry, error) {
	return q.listBin(ctx, listBinEntries, userID)
}

const listBinEntriesBefore = `SELECT ` + binColumns + ` FROM recycle_bin WHERE deleted_at < ?
ORDER BY deleted_at, id`

// ListBinEntriesBefore spans all users; it backs the retention sweep.
func (q *Queries) ListBinEntriesBefore(ctx context.Context, cutoff int64) ([]RecycleBinEntry, error) {
	return q.listBin(ctx, listBinEntriesBefore, cutoff)
}

const deleteBinEntry = `DELETE FROM recycle_bin WHERE id = ? AND user_id = ?`

type DeleteBinEntryParams struct {
	ID     string
	UserID string
}

func (q *Queries) DeleteBinEntry(ctx context.Context, arg DeleteBinEntryParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteBinEntry, arg.ID, arg.UserID))
}

const deleteAllBinEntries = `DELETE FROM recycle_bin WHERE user_id = ?`

func (q *Queries) DeleteAllBinEntries(ctx context.Context, userID string) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteAllBinEntries, userID))
}

const deleteBinEntriesBefore = `DELETE FROM recycle_bin WHERE deleted_at < ?`

func (q *Queries) DeleteBinEntriesBefore(ctx context.Context, cutoff int64) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteBinEntriesBefore, cutoff))
}
