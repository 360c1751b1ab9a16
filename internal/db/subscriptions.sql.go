package db

import (
	"context"
)

const subscriptionColumns = `stripe_subscription_id, user_id, status, plan_id, interval,
current_period_start, current_period_end, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var i Subscription
	err := row.Scan(
		&i.StripeSubscriptionID,
		&i.UserID,
		&i.Status,
		&i.PlanID,
		&i.Interval,
		&i.CurrentPeriodStart,
		&i.CurrentPeriodEnd,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSubscriptionByUser = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ?`

func (q *Queries) GetSubscriptionByUser(ctx context.Context, userID string) (Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByUser, userID))
}

const getSubscription = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = ?`

func (q *Queries) GetSubscription(ctx context.Context, stripeSubscriptionID string) (Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscription, stripeSubscriptionID))
}

const upsertSubscription = `INSERT INTO subscriptions (
    stripe_subscription_id, user_id, status, plan_id, interval,
    current_period_start, current_period_end, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(stripe_subscription_id) DO UPDATE SET
    user_id = excluded.user_id,
    status = excluded.status,
    plan_id = excluded.plan_id,
    interval = excluded.interval,
    current_period_start = excluded.current_period_start,
    current_period_end = excluded.current_period_end,
    updated_at = excluded.updated_at`

type UpsertSubscriptionParams struct {
	StripeSubscriptionID string
	UserID               string
	Status               string
	PlanID               string
	Interval             string
	CurrentPeriodStart   int64
	CurrentPeriodEnd     int64
	Now                  int64
}

// UpsertSubscription fails on the user_id constraint if the user holds a row
// under another subscription id; callers clear that first with
// DeleteOtherSubscriptions in the same transaction.
func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSubscription,
		arg.StripeSubscriptionID,
		arg.UserID,
		arg.Status,
		arg.PlanID,
		arg.Interval,
		arg.CurrentPeriodStart,
		arg.CurrentPeriodEnd,
		arg.Now,
		arg.Now,
	)
	return err
}

const deleteOtherSubscriptions = `DELETE FROM subscriptions WHERE user_id = ? AND stripe_subscription_id <> ?`

type DeleteOtherSubscriptionsParams struct {
	UserID               string
	StripeSubscriptionID string
}

func (q *Queries) DeleteOtherSubscriptions(ctx context.Context, arg DeleteOtherSubscriptionsParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, deleteOtherSubscriptions, arg.UserID, arg.StripeSubscriptionID))
}

const updateSubscriptionPeriod = `UPDATE subscriptions SET
    status = ?, plan_id = ?, interval = ?,
    current_period_start = ?, current_period_end = ?, updated_at = ?
WHERE stripe_subscription_id = ?`

type UpdateSubscriptionPeriodParams struct {
	StripeSubscriptionID string
	Status               string
	PlanID               string
	Interval             string
	CurrentPeriodStart   int64
	CurrentPeriodEnd     int64
	UpdatedAt            int64
}

func (q *Queries) UpdateSubscriptionPeriod(ctx context.Context, arg UpdateSubscriptionPeriodParams) (int64, error) {
	return execRows(q.db.ExecContext(ctx, updateSubscriptionPeriod,
		arg.Status,
		arg.PlanID,
		arg.Interval,
		arg.CurrentPeriodStart,
		arg.CurrentPeriodEnd,
		arg.UpdatedAt,
		arg.StripeSubscriptionID,
	))
}
