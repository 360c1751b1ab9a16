package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{
	Unauthenticated,
	ResourceExhausted,
	InvalidArgument,
	NotFound,
	FailedPrecondition,
	Internal,
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
	if !Has(err, code) {
		t.Fatalf("Has(%q) = false", code)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testWrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause lost through Wrap")
	}
	if !errors.Is(wrapped, New(code, message)) {
		t.Fatalf("errors.Is against same-code sentinel failed")
	}
}

func TestWrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testWrappedTypedError)
}

func TestIs_DistinguishesCodesAndMessages(t *testing.T) {
	t.Parallel()
	quota := New(ResourceExhausted, "note quota exceeded")
	missing := New(NotFound, "note not found")

	if errors.Is(fmt.Errorf("ctx: %w", quota), missing) {
		t.Fatal("different codes must not match")
	}
	if errors.Is(New(NotFound, "user not found"), missing) {
		t.Fatal("same code with different message must not match")
	}
	if !errors.Is(New(NotFound, "anything"), &Error{Code: NotFound}) {
		t.Fatal("code-only target should match any message")
	}
}

func testUntypedAndNilFallbacks(t *rapid.T) {
	raw := rapid.StringMatching(`[a-zA-Z0-9 _:\-./]{1,80}`).Draw(t, "raw")
	untyped := errors.New(raw)

	if got := CodeOf(untyped); got != Internal {
		t.Fatalf("CodeOf(untyped) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(untyped); got != "internal error" {
		t.Fatalf("MessageOf(untyped) mismatch: got=%q want=%q", got, "internal error")
	}
	if got := CodeOf(nil); got != Internal {
		t.Fatalf("CodeOf(nil) mismatch: got=%q want=%q", got, Internal)
	}
	if Has(nil, Internal) {
		t.Fatal("Has(nil) must be false")
	}
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testUntypedAndNilFallbacks)
}

func testHTTPStatus_Mapping(t *rapid.T) {
	cases := map[Code]int{
		Unauthenticated:    http.StatusUnauthorized,
		ResourceExhausted:  http.StatusPaymentRequired,
		InvalidArgument:    http.StatusBadRequest,
		NotFound:           http.StatusNotFound,
		FailedPrecondition: http.StatusConflict,
	}

	code := rapid.OneOf(
		rapid.SampledFrom(allCodes),
		rapid.Custom(func(t *rapid.T) Code {
			return Code(rapid.StringMatching(`[a-z_]{0,20}`).Draw(t, "raw_code"))
		}),
	).Draw(t, "code")

	want, ok := cases[code]
	if !ok {
		want = http.StatusInternalServerError
	}
	if got := code.HTTPStatus(); got != want {
		t.Fatalf("HTTPStatus mismatch: code=%q got=%d want=%d", code, got, want)
	}
}

func TestHTTPStatus_Mapping(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testHTTPStatus_Mapping)
}

func FuzzHTTPStatus_Mapping(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testHTTPStatus_Mapping))
}

func TestNewf_FormatsQuotaMessage(t *testing.T) {
	t.Parallel()
	err := Newf(ResourceExhausted, "free plan allows %d notes", 10)
	if got := MessageOf(fmt.Errorf("create: %w", err)); got != "free plan allows 10 notes" {
		t.Fatalf("MessageOf mismatch: got=%q", got)
	}
	if !errors.Is(err, &Error{Code: ResourceExhausted}) {
		t.Fatal("code-only target should match Newf errors")
	}
}
