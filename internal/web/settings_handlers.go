package web

import (
	"net/http"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/errs"
)

const settingsPath = "/dashboard/settings"

func (h *WebHandler) settingsData(r *http.Request) SettingsData {
	data := SettingsData{
		PageData:      h.pageData(r, "Settings", "settings"),
		ColorSchemes:  auth.ColorSchemes,
		ExportEnabled: h.Exporter != nil,
	}
	if data.User != nil {
		data.Name = data.User.Name
		data.ColorScheme = data.User.ColorScheme
	}
	return data
}

// HandleSettings shows the profile form.
func (h *WebHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "settings.html", h.settingsData(r))
}

// HandleUpdateSettings saves the display name and color scheme.
func (h *WebHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	name := r.FormValue("name")
	scheme := r.FormValue("color")

	err := h.Users.UpdateProfile(r.Context(), auth.GetUserID(r.Context()), name, scheme)
	if errs.Has(err, errs.InvalidArgument) {
		data := h.settingsData(r)
		data.Name, data.ColorScheme = name, scheme
		data.Error = errs.MessageOf(err)
		h.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}
	if err != nil {
		h.handleError(w, r, "update_settings", err, settingsPath)
		return
	}
	redirectWithFlash(w, r, settingsPath, "settings_saved")
}

// HandleExport uploads a JSON snapshot and sends the browser to its
// short-lived download link.
func (h *WebHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.Exporter == nil {
		redirectWithFlash(w, r, settingsPath, "export_disabled")
		return
	}
	res, err := h.Exporter.Run(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, "export", err, settingsPath)
		return
	}
	http.Redirect(w, r, res.URL, http.StatusSeeOther)
}
