package db

// Schema is applied on every Open. Timestamps are unix seconds.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    color_scheme TEXT NOT NULL DEFAULT 'theme-green',
    stripe_customer_id TEXT UNIQUE,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Live notes. description holds sanitized HTML.
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL CHECK(length(description) <= 1048576),
    pinned INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user_order ON notes(user_id, pinned DESC, created_at DESC);

-- Soft-deleted notes keep their original id.
CREATE TABLE IF NOT EXISTS recycle_bin (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    pinned INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recycle_bin_user_deleted ON recycle_bin(user_id, deleted_at DESC);
CREATE INDEX IF NOT EXISTS idx_recycle_bin_deleted_at ON recycle_bin(deleted_at);

-- Mirror of the provider's subscription; one row per user.
CREATE TABLE IF NOT EXISTS subscriptions (
    stripe_subscription_id TEXT PRIMARY KEY,
    user_id TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL,
    plan_id TEXT NOT NULL DEFAULT '',
    interval TEXT NOT NULL DEFAULT '',
    current_period_start INTEGER NOT NULL DEFAULT 0,
    current_period_end INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- session_hash is sha3-256 of the cookie token; the raw token is never stored.
CREATE TABLE IF NOT EXISTS sessions (
    session_hash BLOB PRIMARY KEY,
    user_id TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

-- Idempotency guard for Stripe webhooks
CREATE TABLE IF NOT EXISTS processed_webhook_events (
    event_id TEXT PRIMARY KEY,
    processed_at INTEGER NOT NULL
);
`

// Migrations holds idempotent statements for databases created by older
// builds. Duplicate column errors are ignored by ApplySchema.
const Migrations = `
ALTER TABLE users ADD COLUMN color_scheme TEXT NOT NULL DEFAULT 'theme-green';
CREATE INDEX IF NOT EXISTS idx_recycle_bin_deleted_at ON recycle_bin(deleted_at);
`
