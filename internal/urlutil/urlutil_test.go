package urlutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testBuildAbsolute_SingleSlashJoin(t *rapid.T) {
	host := rapid.StringMatching(`https?://[a-z]{3,12}\.[a-z]{2,6}(:[0-9]{4})?`).Draw(t, "host")
	trailing := strings.Repeat("/", rapid.IntRange(0, 3).Draw(t, "trailing"))
	segment := rapid.StringMatching(`[a-z]{1,8}(/[a-z]{1,8}){0,2}`).Draw(t, "path")
	leading := rapid.Bool().Draw(t, "leading_slash")

	path := segment
	if leading {
		path = "/" + segment
	}
	got := BuildAbsolute(host+trailing, path)
	if want := host + "/" + segment; got != want {
		t.Fatalf("BuildAbsolute(%q, %q) = %q, want %q", host+trailing, path, got, want)
	}
}

func TestBuildAbsolute_SingleSlashJoin(t *testing.T) {
	rapid.Check(t, testBuildAbsolute_SingleSlashJoin)
}

func FuzzBuildAbsolute_SingleSlashJoin(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testBuildAbsolute_SingleSlashJoin))
}

func TestBuildAbsolute_Edges(t *testing.T) {
	t.Parallel()
	cases := []struct{ base, path, want string }{
		{"https://notes.test/", "", "https://notes.test"},
		{"  https://notes.test  ", "/dashboard", "https://notes.test/dashboard"},
		{"https://notes.test", "https://checkout.stripe.com/x", "https://checkout.stripe.com/x"},
		{"", "/dashboard", "/dashboard"},
	}
	for _, tc := range cases {
		if got := BuildAbsolute(tc.base, tc.path); got != tc.want {
			t.Fatalf("BuildAbsolute(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestIsLocalPath(t *testing.T) {
	t.Parallel()
	for target, want := range map[string]bool{
		"/dashboard":                true,
		"/dashboard/notes/1?edit=1": true,
		"":                          false,
		"dashboard":                 false,
		"//evil.test":               false,
		"/\\evil.test":              false,
		"https://evil.test/":        false,
		"/a\r\nSet-Cookie:x":        false,
	} {
		if got := IsLocalPath(target); got != want {
			t.Fatalf("IsLocalPath(%q) = %v, want %v", target, got, want)
		}
	}
	if got := LocalPathOr("//evil.test", "/dashboard"); got != "/dashboard" {
		t.Fatalf("LocalPathOr fallback mismatch: %q", got)
	}
}
