package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format is "json", "text" or "auto". Auto selects text when Output is a
	// terminal and JSON otherwise.
	Format string

	// Output is the writer for log output (defaults to os.Stderr)
	Output io.Writer

	// AddSource includes file and line number in log records
	AddSource bool

	// RedactPatterns are additional regex patterns for sensitive data redaction
	RedactPatterns []string

	// Secrets are literal values (bot tokens) that must never reach the log
	Secrets []string
}

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// PassIDKey carries the id of the dispatch pass being logged.
	PassIDKey ContextKey = "pass_id"

	// ChannelIDKey carries the chat channel an event belongs to.
	ChannelIDKey ContextKey = "channel_id"
)

// DefaultRedactPatterns contains regex patterns for common sensitive data.
var DefaultRedactPatterns = []string{
	// Discord bot tokens
	`[MNO][A-Za-z\d_-]{23,28}\.[A-Za-z\d_-]{6,7}\.[A-Za-z\d_-]{27,40}`,

	// Authorization headers
	`(?i)(bot|bearer)\s+[A-Za-z0-9_\-\.]{24,}`,

	`(?i)(secret|password|passwd|token)[\s:=]+["\']?([^\s"']{8,})["\']?`,
}

const redacted = "[REDACTED]"

// NewLogger creates a structured logger with level and format selection and
// redaction of secrets in messages and string-valued attributes.
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	redacts := make([]*regexp.Regexp, 0, len(DefaultRedactPatterns)+len(config.RedactPatterns))
	for _, pattern := range append(append([]string{}, DefaultRedactPatterns...), config.RedactPatterns...) {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}
	secrets := make([]string, 0, len(config.Secrets))
	for _, s := range config.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	r := &redactor{patterns: redacts, secrets: secrets}

	opts := &slog.HandlerOptions{
		Level:       LogLevelFromString(config.Level),
		AddSource:   config.AddSource,
		ReplaceAttr: r.replaceAttr,
	}

	var handler slog.Handler
	if resolveFormat(config.Format, config.Output) == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}
	return slog.New(contextHandler{Handler: handler})
}

func resolveFormat(format string, out io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return "text"
	case "auto":
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return "text"
		}
		return "json"
	default:
		return "json"
	}
}

type redactor struct {
	patterns []*regexp.Regexp
	secrets  []string
}

func (r *redactor) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.redactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.redactString(err.Error()))
		}
	}
	return a
}

func (r *redactor) redactString(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// contextHandler adds well-known correlation values carried by the context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if id, ok := ctx.Value(PassIDKey).(string); ok && id != "" {
		rec.AddAttrs(slog.String(string(PassIDKey), id))
	}
	if id, ok := ctx.Value(ChannelIDKey).(string); ok && id != "" {
		rec.AddAttrs(slog.String(string(ChannelIDKey), id))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithPassID adds a dispatch pass id to the context.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, PassIDKey, id)
}

// WithChannelID adds a chat channel id to the context.
func WithChannelID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ChannelIDKey, id)
}

// PassID retrieves the dispatch pass id from the context.
func PassID(ctx context.Context) string {
	if id, ok := ctx.Value(PassIDKey).(string); ok {
		return id
	}
	return ""
}

// LogLevelFromString converts a string to a slog.Level.
// Returns LevelInfo if the string is not recognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
