package web

import (
	"net/http"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/notes"
)

const binPath = "/dashboard/recycle-bin"

// HandleRecycleBin lists binned notes, most recently deleted first.
func (h *WebHandler) HandleRecycleBin(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	entries, err := h.Notes.ListBin(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "list_bin", err, binPath)
		return
	}
	h.render(w, r, http.StatusOK, "recycle_bin.html", RecycleBinData{
		PageData:      h.pageData(r, "Recycle bin", "bin"),
		Entries:       entries,
		RetentionDays: int(notes.RetentionPeriod.Hours() / 24),
		Usage:         h.usage(r, userID),
	})
}

// HandleRestore moves a binned note back. Restoring counts against the
// free-tier cap like a create does.
func (h *WebHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Notes.Restore(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, "restore", err, binPath)
		return
	}
	redirectWithFlash(w, r, binPath, "restored")
}

// HandlePurge permanently deletes one binned note.
func (h *WebHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := h.Notes.Purge(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, "purge", err, binPath)
		return
	}
	redirectWithFlash(w, r, binPath, "purged")
}

// HandleEmptyBin permanently deletes everything in the user's bin.
func (h *WebHandler) HandleEmptyBin(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notes.EmptyBin(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, "empty_bin", err, binPath)
		return
	}
	logFor(r).Info("bin_emptied", "purged", n)
	redirectWithFlash(w, r, binPath, "emptied")
}
