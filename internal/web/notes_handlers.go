package web

import (
	"errors"
	"net/http"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/urlutil"
)

const dashboardPath = "/dashboard"

func (h *WebHandler) usage(r *http.Request, userID string) entitlement.Usage {
	u, err := h.Entitlements.Usage(r.Context(), userID)
	if err != nil {
		logFor(r).Warn("usage_lookup_failed", "error", err)
	}
	return u
}

// HandleDashboard lists live notes, pinned first then newest.
func (h *WebHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	list, err := h.Notes.List(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "list_notes", err, dashboardPath)
		return
	}
	h.render(w, r, http.StatusOK, "dashboard.html", DashboardData{
		PageData: h.pageData(r, "Your notes", "notes"),
		Notes:    list,
		Usage:    h.usage(r, userID),
	})
}

// HandleNewNotePage shows the create form. Users at the cap are sent to
// billing up front rather than after typing a note.
func (h *WebHandler) HandleNewNotePage(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	u := h.usage(r, userID)
	if u.AtLimit && !u.Active {
		redirectWithFlash(w, r, billingPath, "quota")
		return
	}
	h.render(w, r, http.StatusOK, "note_form.html", NoteFormData{
		PageData: h.pageData(r, "New note", "notes"),
		Format:   notes.FormatMarkdown,
		Usage:    u,
	})
}

func formInput(r *http.Request, defaultFormat notes.Format) notes.Input {
	format := notes.Format(r.FormValue("format"))
	if format == "" {
		format = defaultFormat
	}
	return notes.Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Format:      format,
	}
}

// maxNoteFormBytes leaves room for form encoding around a description at
// notes.MaxDescriptionBytes, so an oversized description still reaches
// validation and gets the form back.
const maxNoteFormBytes = 4 * notes.MaxDescriptionBytes

// parseNoteForm reports whether the body parsed. It has already answered
// when it returns false.
func (h *WebHandler) parseNoteForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteFormBytes)
	err := r.ParseForm()
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		h.Renderer.RenderError(w, http.StatusRequestEntityTooLarge, "This note is too large to save.")
		return false
	}
	h.Renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
	return false
}

// HandleCreateNote handles the create-note form.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	if !h.parseNoteForm(w, r) {
		return
	}
	userID := auth.GetUserID(r.Context())
	in := formInput(r, notes.FormatMarkdown)

	note, err := h.Notes.Create(r.Context(), userID, in)
	if errs.Has(err, errs.InvalidArgument) {
		data := NoteFormData{
			PageData:    h.pageData(r, "New note", "notes"),
			FormTitle:   in.Title,
			Description: in.Description,
			Format:      in.Format,
			Usage:       h.usage(r, userID),
		}
		data.Error = errs.MessageOf(err)
		h.render(w, r, http.StatusUnprocessableEntity, "note_form.html", data)
		return
	}
	if err != nil {
		h.handleError(w, r, "create_note", err, dashboardPath)
		return
	}
	redirectWithFlash(w, r, "/dashboard/show/"+note.ID, "created")
}

// HandleShowNote shows one note.
func (h *WebHandler) HandleShowNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.Notes.Get(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, "get_note", err, dashboardPath)
		return
	}
	h.render(w, r, http.StatusOK, "note_show.html", NoteViewData{
		PageData: h.pageData(r, note.Title, "notes"),
		Note:     note,
	})
}

// HandleEditNotePage shows the edit form with the stored description.
func (h *WebHandler) HandleEditNotePage(w http.ResponseWriter, r *http.Request) {
	note, err := h.Notes.Get(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, "get_note", err, dashboardPath)
		return
	}
	h.render(w, r, http.StatusOK, "note_form.html", NoteFormData{
		PageData:    h.pageData(r, "Edit: "+note.Title, "notes"),
		Note:        note,
		FormTitle:   note.Title,
		Description: note.Description,
		Format:      notes.FormatHTML,
	})
}

// HandleUpdateNote handles the edit form.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	if !h.parseNoteForm(w, r) {
		return
	}
	userID := auth.GetUserID(r.Context())
	noteID := r.PathValue("id")
	in := formInput(r, notes.FormatHTML)

	note, err := h.Notes.Update(r.Context(), userID, noteID, in)
	if errs.Has(err, errs.InvalidArgument) {
		current, getErr := h.Notes.Get(r.Context(), userID, noteID)
		if getErr != nil {
			h.handleError(w, r, "get_note", getErr, dashboardPath)
			return
		}
		data := NoteFormData{
			PageData:    h.pageData(r, "Edit: "+current.Title, "notes"),
			Note:        current,
			FormTitle:   in.Title,
			Description: in.Description,
			Format:      in.Format,
		}
		data.Error = errs.MessageOf(err)
		h.render(w, r, http.StatusUnprocessableEntity, "note_form.html", data)
		return
	}
	if err != nil {
		h.handleError(w, r, "update_note", err, dashboardPath)
		return
	}
	redirectWithFlash(w, r, "/dashboard/show/"+note.ID, "updated")
}

// HandleTogglePin flips the pinned flag and returns to where the form was.
func (h *WebHandler) HandleTogglePin(w http.ResponseWriter, r *http.Request) {
	back := returnTo(r, dashboardPath)
	if _, err := h.Notes.TogglePin(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, "toggle_pin", err, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// HandleSoftDelete moves a note to the recycle bin.
func (h *WebHandler) HandleSoftDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Notes.SoftDelete(r.Context(), auth.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, "soft_delete", err, dashboardPath)
		return
	}
	redirectWithFlash(w, r, dashboardPath, "deleted")
}

// returnTo reads the form's local return path.
func returnTo(r *http.Request, fallback string) string {
	return urlutil.LocalPathOr(r.FormValue("return_to"), fallback)
}
