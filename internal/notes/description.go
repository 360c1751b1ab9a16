package notes

import (
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/notesaas/internal/errs"
)

const (
	// MaxTitleRunes bounds a title after trimming.
	MaxTitleRunes = 200

	// MaxDescriptionBytes bounds both the submitted description and the
	// stored HTML. It matches the CHECK on notes.description.
	MaxDescriptionBytes = 1 << 20
)

var (
	ErrTitleRequired       = errs.New(errs.InvalidArgument, "title is required")
	ErrTitleTooLong        = errs.New(errs.InvalidArgument, "title is too long")
	ErrDescriptionRequired = errs.New(errs.InvalidArgument, "description is required")
	ErrDescriptionTooLong  = errs.New(errs.InvalidArgument, "description is too long")
	ErrUnknownFormat       = errs.New(errs.InvalidArgument, "unknown description format")
)

var (
	ugcPolicy  = bluemonday.UGCPolicy()
	textPolicy = bluemonday.StrictPolicy()
)

// normalize validates in and returns the trimmed title and the sanitized
// description HTML.
func normalize(in Input) (title, description string, err error) {
	title = strings.TrimSpace(in.Title)
	if title == "" {
		return "", "", ErrTitleRequired
	}
	if len([]rune(title)) > MaxTitleRunes {
		return "", "", ErrTitleTooLong
	}

	description, err = SanitizeDescription(in.Format, in.Description)
	if err != nil {
		return "", "", err
	}
	return title, description, nil
}

// SanitizeDescription converts raw input to safe HTML. Markdown is rendered
// first; either way the result passes through the UGC policy, and must still
// carry visible text afterwards.
func SanitizeDescription(format Format, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrDescriptionRequired
	}
	if len(raw) > MaxDescriptionBytes {
		return "", ErrDescriptionTooLong
	}

	var rendered []byte
	switch format {
	case FormatMarkdown, "":
		rendered = renderMarkdown(raw)
	case FormatHTML:
		rendered = []byte(raw)
	default:
		return "", ErrUnknownFormat
	}

	safe := strings.TrimSpace(string(ugcPolicy.SanitizeBytes(rendered)))
	if PlainText(safe) == "" {
		return "", ErrDescriptionRequired
	}
	// Rendering markdown adds markup, so input under the limit can still
	// come out over it.
	if len(safe) > MaxDescriptionBytes {
		return "", ErrDescriptionTooLong
	}
	return safe, nil
}

// PlainText strips all markup and returns the trimmed visible text.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func renderMarkdown(s string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(s))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}
