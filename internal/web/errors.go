package web

import (
	"log/slog"
	"net/http"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/billing"
	"github.com/kuitang/notesaas/internal/errs"
	"github.com/kuitang/notesaas/internal/obs"
)

const billingPath = billing.PagePath

func logFor(r *http.Request) *slog.Logger {
	return obs.From(r.Context()).With("pkg", "web")
}

// handleError turns a service error into the response the user sees.
// back is where a not-found redirects to.
func (h *WebHandler) handleError(w http.ResponseWriter, r *http.Request, op string, err error, back string) {
	code := errs.CodeOf(err)
	switch code {
	case errs.Unauthenticated:
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
	case errs.ResourceExhausted:
		logFor(r).Info("quota_exceeded", "op", op)
		redirectWithFlash(w, r, billingPath, "quota")
	case errs.NotFound:
		logFor(r).Info("not_found", "op", op, "error", err)
		redirectWithFlash(w, r, back, "not_found")
	case errs.InvalidArgument, errs.FailedPrecondition:
		logFor(r).Info("rejected", "op", op, "error", err)
		h.Renderer.RenderError(w, code.HTTPStatus(), errs.MessageOf(err))
	default:
		logFor(r).Error("operation_failed", "op", op, "error", err)
		h.Renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
