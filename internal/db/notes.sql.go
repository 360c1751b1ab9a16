package db

import (
	"context"
)

const noteColumns = `id, user_id, title, description, pinned, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var i Note
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.Description,
		&i.Pinned,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createNote = `INSERT INTO notes (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateNoteParams struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Pinned      int64
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) error {
	_, err := q.db.ExecContext(ctx, createNote,
		arg.ID,
		arg.UserID,
		arg.Title,
		arg.Description,
		arg.Pinned,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getNote = `SELECT ` + noteColumns + ` FROM notes WHERE id = ? AND user_id = ?`

type GetNoteParams struct {
	ID     string
	UserID string
}

func (q *Queries) GetNote(ctx context.Context, arg GetNoteParams) (Note, error) {
	return scanNote(q.db.QueryRowContext(ctx, getNote, arg.ID, arg.UserID))
}

const listNotes = `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ?
ORDER BY pinned DESC, created_at DESC, id`

func (q *Queries) ListNotes(ctx context.Context, userID string) ([]Note, error) {
	rows, err := q.db.QueryContext(ctx, listNotes, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Note
	for rows.Next() {
		i, err := scanNote(rows)
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

const countNotes = `SELECT COUNT(*) FROM notes WHERE user_id = ?`

func (q *Queries) CountNotes(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countNotes, userID).Scan(&count)
	return count, err
}

const updateNote = `UPDATE notes SET title = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`

type UpdateNoteParams struct {
	ID          string
	UserID      string
	Title       string
	Description string
	UpdatedAt   int64
}

func (q *Queries) UpdateNote(ctx context.Context, arg UpdateNoteParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, updateNote, arg.Title, arg.Description, arg.UpdatedAt, arg.ID, arg.UserID))
}

const setNotePinned = `UPDATE notes SET pinned = ?, updated_at = ? WHERE id = ? AND user_id = ?`

type SetNotePinnedParams struct {
	ID        string
	UserID    string
	Pinned    int64
	UpdatedAt int64
}

func (q *Queries) SetNotePinned(ctx context.Context, arg SetNotePinnedParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, setNotePinned, arg.Pinned, arg.UpdatedAt, arg.ID, arg.UserID))
}

const deleteNote = `DELETE FROM notes WHERE id = ? AND user_id = ?`

type DeleteNoteParams struct {
	ID     string
	UserID string
}

func (q *Queries) DeleteNote(ctx context.Context, arg DeleteNoteParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteNote, arg.ID, arg.UserID))
}
