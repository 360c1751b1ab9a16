// Package testutil provides rapid generators shared by the note, entitlement
// and billing property tests. The string generators lean hard on edge cases.
package testutil

import (
	"strings"

	"pgregory.net/rapid"
)

// NoteTitle generates titles that survive trimming: at least one visible rune.
func NoteTitle() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringMatching(`[a-zA-Z0-9][a-zA-Z0-9 ]{0,60}`),
		unicodeText(),
		sqlInjection(),
	)
}

// NoteBody generates Markdown bodies with at least one word of visible text.
func NoteBody() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9]{1,12}`), 1, 20).Draw(t, "words")
		prefix := rapid.SampledFrom([]string{"", "# ", "- ", "**", "> "}).Draw(t, "prefix")
		return prefix + strings.Join(words, " ")
	})
}

// Blank generates strings that are empty after trimming.
func Blank() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"",
		" ",
		"\t",
		"\n\n",
		"\r\n",
		" \t \n ",
		" ",
		"　",
	})
}

// HostileMarkup generates markup that must never reach a page unsanitized.
func HostileMarkup() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		`<script>alert('xss')</script>`,
		`<img src=x onerror=alert(1)>`,
		`<a href="javascript:alert(1)">x</a>`,
		`<iframe src="https://evil.example"></iframe>`,
		`<div onclick="steal()">click</div>`,
		`<svg onload=alert(1)>`,
		`<style>body{display:none}</style>`,
	})
}

// UserID generates opaque, non-empty user identifiers.
func UserID() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		prefix := rapid.StringMatching("[a-z]{1,10}").Draw(t, "prefix")
		suffix := rapid.StringMatching("[0-9]{1,5}").Draw(t, "suffix")
		return prefix + "-" + suffix
	})
}

func sqlInjection() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		`' OR 1=1 --`,
		`'; DROP TABLE notes; --`,
		`" OR "1"="1`,
		`1; SELECT * FROM users`,
		`' UNION SELECT * FROM recycle_bin --`,
		`'; DELETE FROM subscriptions; --`,
	})
}

func unicodeText() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"日本語",
		"中文测试",
		"العربية",
		"🔥🎉💻🚀",
		"emoji🔥in🎉middle",
		"Zürich",
		"Москва",
		"한국어",
		"à",
		"math∑∏∫",
	})
}
