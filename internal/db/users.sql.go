package db

import (
	"context"
	"database/sql"
)

const userColumns = `id, email, name, color_scheme, stripe_customer_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.ColorScheme,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

type CreateUserParams struct {
	ID        string
	Email     string
	Name      string
	CreatedAt int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Email, arg.Name, arg.CreatedAt, arg.CreatedAt)
	return err
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByStripeCustomerID = `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = ?`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByStripeCustomerID, stripeCustomerID))
}

const setStripeCustomerID = `UPDATE users SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`

type SetStripeCustomerIDParams struct {
	ID               string
	StripeCustomerID string
	UpdatedAt        int64
}

func (q *Queries) SetStripeCustomerID(ctx context.Context, arg SetStripeCustomerIDParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, setStripeCustomerID,
		sql.NullString{String: arg.StripeCustomerID, Valid: arg.StripeCustomerID != ""},
		arg.UpdatedAt,
		arg.ID,
	))
}

const updateProfile = `UPDATE users SET name = ?, color_scheme = ?, updated_at = ? WHERE id = ?`

type UpdateProfileParams struct {
	ID          string
	Name        string
	ColorScheme string
	UpdatedAt   int64
}

func (q *Queries) UpdateProfile(ctx context.Context, arg UpdateProfileParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, updateProfile, arg.Name, arg.ColorScheme, arg.UpdatedAt, arg.ID))
}
