package db

import (
	"context"
)

const createSession = `INSERT INTO sessions (session_hash, user_id, expires_at, created_at)
VALUES (sha3(?, 256), ?, ?, ?)`

type CreateSessionParams struct {
	Token     string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession, arg.Token, arg.UserID, arg.ExpiresAt, arg.CreatedAt)
	return err
}

const getValidSession = `SELECT user_id, expires_at, created_at FROM sessions
WHERE session_hash = sha3(?, 256) AND expires_at > ?`

type GetValidSessionParams struct {
	Token string
	Now   int64
}

func (q *Queries) GetValidSession(ctx context.Context, arg GetValidSessionParams) (Session, error) {
	var i Session
	err := q.db.QueryRowContext(ctx, getValidSession, arg.Token, arg.Now).Scan(&i.UserID, &i.ExpiresAt, &i.CreatedAt)
	return i, err
}

const deleteSession = `DELETE FROM sessions WHERE session_hash = sha3(?, 256)`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, token)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteExpiredSessions, now))
}

const processedWebhookEvent = `SELECT EXISTS(SELECT 1 FROM processed_webhook_events WHERE event_id = ?)`

func (q *Queries) IsWebhookEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, processedWebhookEvent, eventID).Scan(&exists)
	return exists, err
}

const markWebhookEventProcessed = `INSERT OR IGNORE INTO processed_webhook_events (event_id, processed_at) VALUES (?, ?)`

func (q *Queries) MarkWebhookEventProcessed(ctx context.Context, eventID string, processedAt int64) error {
	_, err := q.db.ExecContext(ctx, markWebhookEventProcessed, eventID, processedAt)
	return err
}
