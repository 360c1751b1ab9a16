// Package web serves the server-rendered notes UI and the payment webhook.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/notesaas/internal/notes"
)

//go:embed templates
var embeddedTemplates embed.FS

const (
	baseTemplate  = "base.html"
	errorTemplate = "error.html"
)

// Renderer holds one parsed template set per page, each combined with the
// shared base layout.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses the templates in fsys. A nil fsys uses the templates
// compiled into the binary.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	if fsys == nil {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded templates: %w", err)
		}
		fsys = sub
	}
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page with data inside the base layout.
func (r *Renderer) Render(w http.ResponseWriter, name string, data any) error {
	return r.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func (r *Renderer) RenderStatus(w http.ResponseWriter, status int, name string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	// Render into a buffer so a template error never leaves half a page.
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(buf.String()))
	return err
}

// RenderError renders the error page, falling back to plain text.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	data := ErrorPageData{
		PageData:  PageData{Title: http.StatusText(code)},
		Message:   message,
		ErrorCode: code,
	}
	if err := r.RenderStatus(w, code, errorTemplate, data); err != nil {
		http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
	}
}

func (r *Renderer) parseTemplates(fsys fs.FS) error {
	base, err := fs.ReadFile(fsys, baseTemplate)
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == baseTemplate || path.Ext(p) != ".html" {
			return nil
		}
		page, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", p, err)
		}

		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(base))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", p, err)
		}
		if _, err := tmpl.Parse(string(page)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", p, err)
		}

		r.mu.Lock()
		r.templates[p] = tmpl
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	if len(r.templates) == 0 {
		return fmt.Errorf("no page templates found")
	}
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"formatDate": formatDate,
		"truncate":   truncate,
		"plainText":  notes.PlainText,
		"themeLabel": themeLabel,
		"editorHTML": editorHTML,
		"unixDate":   unixDate,
	}
}

// editorHTML seeds the rich editor. Input that fails sanitization (for
// example a re-rendered invalid submission) is shown escaped.
func editorHTML(s string) template.HTML {
	safe, err := notes.SanitizeDescription(notes.FormatHTML, s)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(safe)
}

func unixDate(sec int64) string {
	if sec == 0 {
		return ""
	}
	return formatDate(time.Unix(sec, 0).UTC())
}

// formatTime formats t as "Jan 2, 2006 3:04 PM".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// truncate shortens s to n runes, ending with "..." when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// themeLabel turns "theme-violet" into "Violet".
func themeLabel(scheme string) string {
	name := strings.TrimPrefix(scheme, "theme-")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
