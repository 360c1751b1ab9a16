package notes

import (
	"context"
	"html/template"
	"time"

	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/errs"
)

// RetentionPeriod is how long a binned note is advertised as recoverable.
// Nothing in the web app enforces it; cmd/binsweep does.
const RetentionPeriod = 30 * 24 * time.Hour

// ExpiryWarningDays is the days-remaining threshold at which the bin page
// highlights an entry.
const ExpiryWarningDays = 7

var (
	// ErrUnauthorized is returned when no user identity is supplied.
	ErrUnauthorized = entitlement.ErrUnauthorized

	// ErrQuotaExceeded is returned when a free user already holds the maximum
	// number of live notes.
	ErrQuotaExceeded = errs.New(errs.ResourceExhausted, "note limit reached")

	// ErrNotFound is returned when the note is not in the expected state for
	// the caller (missing, owned by someone else, or in the other table).
	ErrNotFound = errs.New(errs.NotFound, "note not found")
)

// Format names the markup a description was submitted in.
type Format string

const (
	// FormatMarkdown is the plain textarea on the new-note page.
	FormatMarkdown Format = "markdown"
	// FormatHTML is the rich-text editor's serialized HTML.
	FormatHTML Format = "html"
)

// Input is the user-supplied content of a create or update.
type Input struct {
	Title       string
	Description string
	Format      Format
}

// Note is a live note.
type Note struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DescriptionHTML marks the stored description as safe markup. Descriptions
// are sanitized on write, so the stored value is already trusted.
func (n Note) DescriptionHTML() template.HTML {
	return template.HTML(n.Description)
}

// BinEntry is a soft-deleted note with its advisory retention state.
type BinEntry struct {
	Note
	DeletedAt      time.Time `json:"deleted_at"`
	DaysRemaining  int       `json:"days_remaining"`
	DueForDeletion bool      `json:"due_for_deletion"`
	ExpiringSoon   bool      `json:"-"`
}

// Export is a point-in-time copy of everything a user holds.
type Export struct {
	ExportedAt time.Time  `json:"exported_at"`
	Notes      []Note     `json:"notes"`
	RecycleBin []BinEntry `json:"recycle_bin"`
}

// SweepResult reports a retention sweep.
type SweepResult struct {
	Cutoff  time.Time
	Purged  int64
	Entries []BinEntry
}

// Store is the slice of storage the lifecycle needs. *db.Queries and *db.DB
// satisfy it.
type Store interface {
	CreateNote(ctx context.Context, arg db.CreateNoteParams) error
	GetNote(ctx context.Context, arg db.GetNoteParams) (db.Note, error)
	ListNotes(ctx context.Context, userID string) ([]db.Note, error)
	UpdateNote(ctx context.Context, arg db.UpdateNoteParams) (int64, error)
	SetNotePinned(ctx context.Context, arg db.SetNotePinnedParams) (int64, error)
	DeleteNote(ctx context.Context, arg db.DeleteNoteParams) (int64, error)

	InsertBinEntry(ctx context.Context, arg db.InsertBinEntryParams) error
	GetBinEntry(ctx context.Context, arg db.GetBinEntryParams) (db.RecycleBinEntry, error)
	ListBinEntries(ctx context.Context, userID string) ([]db.RecycleBinEntry, error)
	ListBinEntriesBefore(ctx context.Context, cutoff int64) ([]db.RecycleBinEntry, error)
	DeleteBinEntry(ctx context.Context, arg db.DeleteBinEntryParams) (int64, error)
	DeleteAllBinEntries(ctx context.Context, userID string) (int64, error)
	DeleteBinEntriesBefore(ctx context.Context, cutoff int64) (int64, error)
}

// Transactor runs fn against a Store bound to one transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Entitlements gates note creation and restore.
type Entitlements interface {
	CanCreateNote(ctx context.Context, userID string) (entitlement.Decision, error)
}

func fromDB(n db.Note) Note {
	return Note{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Pinned:      n.Pinned != 0,
		CreatedAt:   time.Unix(n.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(n.UpdatedAt, 0).UTC(),
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
