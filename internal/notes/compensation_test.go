package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/testdb"
)

var errInjected = errors.New("injected storage failure")

type faults struct {
	insertBin  bool
	deleteNote bool
	createNote bool
	deleteBin  bool
}

// faultyStore fails selected writes.
type faultyStore struct {
	Store
	f *faults
}

func (s *faultyStore) InsertBinEntry(ctx context.Context, arg db.InsertBinEntryParams) error {
	if s.f.insertBin {
		return errInjected
	}
	return s.Store.InsertBinEntry(ctx, arg)
}

func (s *faultyStore) DeleteNote(ctx context.Context, arg db.DeleteNoteParams) (int64, error) {
	if s.f.deleteNote {
		return 0, errInjected
	}
	return s.Store.DeleteNote(ctx, arg)
}

func (s *faultyStore) CreateNote(ctx context.Context, arg db.CreateNoteParams) error {
	if s.f.createNote {
		return errInjected
	}
	return s.Store.CreateNote(ctx, arg)
}

func (s *faultyStore) DeleteBinEntry(ctx context.Context, arg db.DeleteBinEntryParams) (int64, error) {
	if s.f.deleteBin {
		return 0, errInjected
	}
	return s.Store.DeleteBinEntry(ctx, arg)
}

type faultyTransactor struct {
	db *db.DB
	f  *faults
}

func (t faultyTransactor) InTx(ctx context.Context, fn func(Store) error) error {
	return t.db.InTx(ctx, func(q *db.Queries) error {
		return fn(&faultyStore{Store: q, f: t.f})
	})
}

func newFaultyService(d *db.DB, transactional bool, f *faults) *Service {
	opts := []Option{WithClock(clock.NewFake(epoch))}
	if transactional {
		opts = append(opts, WithTransactor(faultyTransactor{db: d, f: f}))
	}
	return NewService(&faultyStore{Store: d, f: f}, entitlement.NewResolver(d), opts...)
}

func testInjectedFailures_NeverLeaveNoteInBothTables(t *rapid.T) {
	d, err := testdb.NewInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	ctx := context.Background()

	f := &faults{}
	svc := newFaultyService(d, rapid.Bool().Draw(t, "transactional"), f)

	n, err := svc.Create(ctx, "u1", input("fragile"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	startInBin := rapid.Bool().Draw(t, "startInBin")
	if startInBin {
		if err := svc.SoftDelete(ctx, "u1", n.ID); err != nil {
			t.Fatalf("soft delete: %v", err)
		}
	}

	// Only forward steps fail; the compensating writes of the fallback path
	// use the other kind of delete and stay healthy.
	if startInBin {
		*f = faults{
			createNote: rapid.Bool().Draw(t, "failCreateNote"),
			deleteBin:  rapid.Bool().Draw(t, "failDeleteBin"),
		}
	} else {
		*f = faults{
			insertBin:  rapid.Bool().Draw(t, "failInsertBin"),
			deleteNote: rapid.Bool().Draw(t, "failDeleteNote"),
		}
	}

	var opErr error
	if startInBin {
		_, opErr = svc.Restore(ctx, "u1", n.ID)
	} else {
		opErr = svc.SoftDelete(ctx, "u1", n.ID)
	}
	*f = faults{}

	live, bin := liveAndBinIDs(t, d, "u1")
	if len(live)+len(bin) != 1 {
		t.Fatalf("note duplicated or lost: live=%v bin=%v err=%v", live, bin, opErr)
	}

	moved := (startInBin && len(live) == 1) || (!startInBin && len(bin) == 1)
	if opErr == nil && !moved {
		t.Fatalf("operation reported success but note did not move")
	}
	if opErr != nil && moved {
		t.Fatalf("operation failed (%v) but note moved", opErr)
	}
	if opErr != nil && !errors.Is(opErr, errInjected) {
		t.Fatalf("unexpected error: %v", opErr)
	}
}

func TestInjectedFailures_NeverLeaveNoteInBothTables(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testInjectedFailures_NeverLeaveNoteInBothTables)
}

func FuzzInjectedFailures_NeverLeaveNoteInBothTables(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testInjectedFailures_NeverLeaveNoteInBothTables))
}

// undoFailingStore lets the first DeleteBinEntry (the compensation) fail as
// well, to exercise the error report when an undo cannot run.
type undoFailingStore struct {
	Store
}

func (s undoFailingStore) DeleteNote(context.Context, db.DeleteNoteParams) (int64, error) {
	return 0, errInjected
}

func (s undoFailingStore) DeleteBinEntry(context.Context, db.DeleteBinEntryParams) (int64, error) {
	return 0, errors.New("undo failed")
}

func TestSoftDelete_ReportsFailedCompensation(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	ctx := context.Background()
	plain := NewService(d, entitlement.NewResolver(d), WithClock(clock.NewFake(epoch)))
	n, err := plain.Create(ctx, "u1", input("stuck"))
	require.NoError(t, err)

	svc := NewService(undoFailingStore{Store: d}, entitlement.NewResolver(d), WithClock(clock.NewFake(epoch)))
	err = svc.SoftDelete(ctx, "u1", n.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), "compensation failed")
}

func TestSoftDelete_CompensationSurvivesCancelledContext(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	f := &faults{}
	svc := newFaultyService(d, false, f)

	n, err := svc.Create(context.Background(), "u1", input("cancel me"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.deleteNote = true
	cancelling := &cancelOnDeleteStore{Store: &faultyStore{Store: d, f: f}, cancel: cancel}
	svc = NewService(cancelling, entitlement.NewResolver(d), WithClock(clock.NewFake(epoch)))

	err = svc.SoftDelete(ctx, "u1", n.ID)
	require.ErrorIs(t, err, errInjected)

	live, bin := liveAndBinIDs(t, d, "u1")
	assert.Equal(t, []string{n.ID}, live)
	assert.Empty(t, bin)
}

// cancelOnDeleteStore cancels the request context the moment the live delete
// is attempted, as a client disconnect would.
type cancelOnDeleteStore struct {
	Store
	cancel context.CancelFunc
}

func (s *cancelOnDeleteStore) DeleteNote(ctx context.Context, arg db.DeleteNoteParams) (int64, error) {
	s.cancel()
	return s.Store.DeleteNote(ctx, arg)
}
