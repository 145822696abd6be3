package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"ledgerforge/internal/report"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, invalidInvocationf("invalid --log-level %q (expected debug|info|warn|error)", raw)
	}
}

// levelRewriter renders the level attribute, colored only when enabled.
func levelRewriter(enabled bool) func([]string, slog.Attr) slog.Attr {
	paint := func(text string, attr color.Attribute) string {
		if !enabled {
			return text
		}
		return report.Colorizer(attr).Sprint(text)
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.LevelKey || len(groups) != 0 {
			return a
		}
		level := a.Value.Any().(slog.Level)

		var levelText string
		switch level {
		case slog.LevelDebug:
			levelText = "DEBUG"
		case slog.LevelInfo:
			levelText = paint("INFO", color.FgGreen)
		case slog.LevelWarn:
			levelText = paint("WARN", color.FgYellow)
		case slog.LevelError:
			levelText = paint("ERROR", color.FgRed)
		default:
			levelText = level.String()
		}
		a.Value = slog.StringValue(levelText)
		return a
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger returns a human-readable tint logger or a JSON logger writing to w.
func newLogger(w io.Writer, format string, level slog.Level, noColor bool) *slog.Logger {
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  time.DateTime,
		ReplaceAttr: levelRewriter(!noColor),
		NoColor:     noColor,
	}))
}
