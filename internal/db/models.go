package db

import "database/sql"

type User struct {
	ID               string
	Email            string
	Name             string
	ColorScheme      string
	StripeCustomerID sql.NullString
	CreatedAt        int64
	UpdatedAt        int64
}

type Note struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Pinned      int64
	CreatedAt   int64
	UpdatedAt   int64
}

type RecycleBinEntry struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Pinned      int64
	CreatedAt   int64
	UpdatedAt   int64
	DeletedAt   int64
}

type Subscription struct {
	StripeSubscriptionID string
	UserID               string
	Status               string
	PlanID               string
	Interval             string
	CurrentPeriodStart   int64
	CurrentPeriodEnd     int64
	CreatedAt            int64
	UpdatedAt            int64
}

type Session struct {
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}
