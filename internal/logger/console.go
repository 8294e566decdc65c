package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger writes "[HH:MM:SS] [LEVEL] message" lines to a writer.
// Level tags are coloured when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	now         func() time.Time
}

// NewConsoleLogger creates a ConsoleLogger that writes to writer.
// If writer is nil, messages are silently discarded.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: IsTerminal(writer),
		now:         time.Now,
	}
}

// IsTerminal reports whether w is a TTY that should receive colour. It
// honours NO_COLOR through fatih/color.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("debug", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("info", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("warn", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("error", message) }

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || logLevelToInt(level) < logLevelToInt(cl.logLevel) {
		return
	}

	tag := levelTag(level)
	if cl.colorOutput {
		tag = levelColor(level).Sprint(tag)
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s %s\n", cl.now().Format("15:04:05"), tag, message)
}

func levelTag(level string) string {
	switch level {
	case "debug":
		return "[DEBUG]"
	case "warn":
		return "[WARN]"
	case "error":
		return "[ERROR]"
	default:
		return "[INFO]"
	}
}

func levelColor(level string) *color.Color {
	switch level {
	case "debug":
		return color.New(color.FgHiBlack)
	case "warn":
		return color.New(color.FgYellow)
	case "error":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
