package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// prettyField controls how one well-known key is printed.
type prettyField struct {
	label  string // printed key; empty keeps the original
	render func(v slog.Value) (text, color string)
}

// prettyFields covers the keys the request log and the auth audit emit.
var prettyFields = map[string]prettyField{
	"method":       {render: renderMethod},
	"path":         {render: renderAs(ansiCyan)},
	"route":        {render: renderAs(ansiCyan)},
	"status":       {render: renderStatus},
	"status_class": {label: "class", render: renderStatusClass},
	"duration_ms":  {label: "duration", render: renderDurationMS},
	"result":       {render: renderResult},
	"request_id":   {render: renderAs(ansiDim)},

	"password":      {render: renderRedacted},
	"token":         {render: renderRedacted},
	"authorization": {render: renderRedacted},
}

// prettyHandler writes one key=value line per record for a developer
// terminal. Production runs use the JSON handler.
type prettyHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	opts   slog.HandlerOptions
	color  bool
	prefix string // open groups, "a.b."
	preset string // attrs from WithAttrs, already rendered
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{w: w, mu: &sync.Mutex{}, color: color}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "ts=%s lvl=%s msg=%s",
		paint(ts.Format("15:04:05.000"), ansiDim, h.color),
		levelTag(r.Level, h.color),
		paint(r.Message, ansiBright, h.color),
	)

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(paint(filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line), ansiDim, h.color))
		}
	}

	b.WriteString(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.preset)
	for _, a := range attrs {
		h.writeAttr(&b, h.prefix, a)
	}
	cp := *h
	cp.preset = b.String()
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func (h *prettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if key == "" && a.Value.Kind() != slog.KindGroup {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		// An unnamed group inlines its members.
		if key != "" {
			prefix += key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, prefix, ga)
		}
		return
	}

	label, text := key, ""
	if f, ok := prettyFields[strings.ToLower(key)]; ok {
		var color string
		text, color = f.render(a.Value)
		text = paint(text, color, h.color && color != "")
		if f.label != "" {
			label = f.label
		}
	} else {
		text = quoteIfNeeded(valueToString(a.Value))
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(label)
	b.WriteByte('=')
	b.WriteString(text)
}

func renderAs(color string) func(slog.Value) (string, string) {
	return func(v slog.Value) (string, string) {
		return quoteIfNeeded(valueToString(v)), color
	}
}

func renderRedacted(slog.Value) (string, string) { return "[REDACTED]", ansiDim }

func renderMethod(v slog.Value) (string, string) {
	m := strings.ToUpper(strings.TrimSpace(v.String()))
	switch m {
	case "GET":
		return m, ansiGreen
	case "POST":
		return m, ansiBlue
	case "PUT", "PATCH":
		return m, ansiYellow
	case "DELETE":
		return m, ansiRed
	default:
		return m, ansiMagenta
	}
}

func renderStatus(v slog.Value) (string, string) {
	n, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v)), ""
	}
	return strconv.FormatInt(n, 10), statusColor(int(n))
}

func renderStatusClass(v slog.Value) (string, string) {
	class := strings.TrimSpace(v.String())
	if len(class) == 3 && strings.HasSuffix(class, "xx") && class[0] >= '2' && class[0] <= '5' {
		return class, statusColor(int(class[0]-'0') * 100)
	}
	return quoteIfNeeded(class), ""
}

func renderDurationMS(v slog.Value) (string, string) {
	ms, ok := valueToInt64(v)
	if !ok {
		return quoteIfNeeded(valueToString(v)), ""
	}
	text := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return text, ansiRed
	case ms >= 250:
		return text, ansiYellow
	default:
		return text, ansiDim
	}
}

func renderResult(v slog.Value) (string, string) {
	result := strings.ToLower(strings.TrimSpace(v.String()))
	switch result {
	case "success", "ok":
		return result, ansiGreen
	case "redirect":
		return result, ansiCyan
	case "client_error", "fail":
		return result, ansiYellow
	case "server_error":
		return result, ansiRed
	default:
		return quoteIfNeeded(result), ""
	}
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func levelTag(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		return paint("[ERROR]", ansiRed, color)
	case level >= slog.LevelWarn:
		return paint("[WARN]", ansiYellow, color)
	case level < slog.LevelInfo:
		return paint("[DEBUG]", ansiMagenta, color)
	default:
		return paint("[INFO]", ansiBlue, color)
	}
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprint(v.Any())
	default:
		// slog.Value.String formats the scalar kinds the same way strconv does.
		return v.String()
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true // #nosec G115 -- log display only.
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func paint(s, code string, color bool) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}
