// Package obs owns the process-wide JSON logger. Request handlers pull a
// logger out of the context so every line carries the request id, the
// signed-in user and, while a billing event is applied, the event id.
package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type correlationKey struct{}

// Correlation is the set of ids stamped on log lines of one request.
type Correlation struct {
	RequestID string
	UserID    string
	EventID   string
}

func (c Correlation) attrs() []any {
	var out []any
	if c.RequestID != "" {
		out = append(out, "request_id", c.RequestID)
	}
	if c.UserID != "" {
		out = append(out, "user_id", c.UserID)
	}
	if c.EventID != "" {
		out = append(out, "event_id", c.EventID)
	}
	return out
}

var (
	mu    sync.RWMutex
	root  *slog.Logger
	level = new(slog.LevelVar)
)

// Init installs the JSON logger on stderr as the slog default. Calling it
// twice is harmless.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		install(os.Stderr)
	}
}

// SetLevel changes the minimum level at runtime.
func SetLevel(l slog.Level) { level.Set(l) }

// ParseLevel accepts debug, info, warn or error. Anything else is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SetOutputForTests points the logger at w until the returned func runs.
func SetOutputForTests(w io.Writer) func() {
	mu.Lock()
	prev := root
	install(w)
	mu.Unlock()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if prev == nil {
			install(os.Stderr)
			return
		}
		root = prev
		slog.SetDefault(prev)
	}
}

// install must be called with mu held.
func install(w io.Writer) {
	root = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}))
	slog.SetDefault(root)
}

func current() *slog.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l == nil {
		Init()
		mu.RLock()
		l = root
		mu.RUnlock()
	}
	return l
}

// Pkg is the logger for code that runs outside a request.
func Pkg(pkg string) *slog.Logger {
	return current().With("pkg", pkg)
}

// From returns the logger for ctx with its correlation ids attached.
func From(ctx context.Context) *slog.Logger {
	attrs := CorrelationFromContext(ctx).attrs()
	if len(attrs) == 0 {
		return current()
	}
	return current().With(attrs...)
}

// CorrelationFromContext returns the ids stored in ctx, if any.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*Correlation)) context.Context {
	c := CorrelationFromContext(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// WithRequestID sets the request id for the rest of the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *Correlation) { c.RequestID = id })
}

// WithUserID tags later log lines with the signed-in user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withCorrelation(ctx, func(c *Correlation) { c.UserID = strings.TrimSpace(userID) })
}

// WithEventID tags later log lines with the billing event being applied.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return withCorrelation(ctx, func(c *Correlation) { c.EventID = eventID })
}
