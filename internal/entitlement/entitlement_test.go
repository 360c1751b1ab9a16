package entitlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/testdb"
)

func seedNotes(t interface{ Fatalf(string, ...any) }, d *db.DB, userID string, n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := d.CreateNote(ctx, db.CreateNoteParams{
			ID: fmt.Sprintf("%s-note-%d", userID, i), UserID: userID,
			Title: "t", Description: "<p>d</p>", CreatedAt: int64(i), UpdatedAt: int64(i),
		})
		if err != nil {
			t.Fatalf("seed note: %v", err)
		}
	}
}

func testCanCreateNote_MatchesTier(t *rapid.T) {
	d, err := testdb.NewInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	ctx := context.Background()

	count := rapid.IntRange(0, 15).Draw(t, "count")
	status := rapid.SampledFrom([]string{"", "active", "past_due", "canceled", "incomplete"}).Draw(t, "status")

	seedNotes(t, d, "u1", count)
	if status != "" {
		if err := d.UpsertSubscription(ctx, db.UpsertSubscriptionParams{
			StripeSubscriptionID: "sub_1", UserID: "u1", Status: status, Now: 1,
		}); err != nil {
			t.Fatalf("seed subscription: %v", err)
		}
	}

	decision, err := NewResolver(d).CanCreateNote(ctx, "u1")
	if err != nil {
		t.Fatalf("CanCreateNote: %v", err)
	}

	switch {
	case status == StatusActive:
		if !decision.Allowed || !decision.Active || decision.Remaining != Unlimited {
			t.Fatalf("active subscriber denied or capped: %+v", decision)
		}
	case count < FreeNoteLimit:
		if !decision.Allowed || decision.Remaining != FreeNoteLimit-count {
			t.Fatalf("free user under limit: count=%d decision=%+v", count, decision)
		}
	default:
		if decision.Allowed || decision.Reason != ReasonQuota || decision.Remaining != 0 {
			t.Fatalf("free user at limit allowed: count=%d decision=%+v", count, decision)
		}
	}
}

func TestCanCreateNote_MatchesTier(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCanCreateNote_MatchesTier)
}

func FuzzCanCreateNote_MatchesTier(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testCanCreateNote_MatchesTier))
}

func TestCanCreateNote_EmptyUserIsUnauthorized(t *testing.T) {
	t.Parallel()
	_, err := NewResolver(testdb.New(t)).CanCreateNote(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, errs.Unauthenticated, errs.CodeOf(err))
}

func TestCanCreateNote_NotesOfOtherUsersDoNotCount(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	seedNotes(t, d, "someone-else", FreeNoteLimit)

	decision, err := NewResolver(d).CanCreateNote(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, FreeNoteLimit, decision.Remaining)
}

type failingStore struct{ err error }

func (f failingStore) GetSubscriptionByUser(context.Context, string) (db.Subscription, error) {
	return db.Subscription{}, f.err
}

func (f failingStore) CountNotes(context.Context, string) (int64, error) { return 0, f.err }

func TestCanCreateNote_StorageErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk gone")
	_, err := NewResolver(failingStore{err: boom}).CanCreateNote(context.Background(), "u1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, errs.Internal, errs.CodeOf(err))
}

func TestUsage_ApproachingBanner(t *testing.T) {
	t.Parallel()
	cases := []struct {
		count       int
		approaching bool
		atLimit     bool
	}{
		{0, false, false},
		{7, false, false},
		{8, true, false},
		{9, true, false},
		{10, false, true},
	}
	for _, tc := range cases {
		d := testdb.New(t)
		seedNotes(t, d, "u1", tc.count)
		u, err := NewResolver(d).Usage(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, tc.approaching, u.Approaching, "count=%d", tc.count)
		assert.Equal(t, tc.atLimit, u.AtLimit, "count=%d", tc.count)
		assert.Equal(t, FreeNoteLimit-tc.count, u.Remaining, "count=%d", tc.count)
	}
}
