package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

func parseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger writes colored category-tagged lines to the terminal and the
// same entries as JSON to a per-day file under LOG_DIR (default "logs").
// The minimum level comes from LOG_LEVEL (DEBUG, INFO, WARN, ERROR).
type Logger struct {
	logFile  *os.File
	minLevel Level
}

func NewLogger() *Logger {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create log directory:", err)
	}

	name := filepath.Join(dir, fmt.Sprintf("booking-core-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}

	l := &Logger{
		logFile:  logFile,
		minLevel: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	l.Info("LOGGER", fmt.Sprintf("Logging to %s at level %s", name, l.minLevel))
	return l
}

func (l *Logger) write(level Level, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	e := entry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	fmt.Print(l.terminalLine(e))
	if l.logFile != nil {
		if raw, err := json.Marshal(e); err == nil {
			l.logFile.Write(append(raw, '\n'))
		}
	}
}

func levelColors(level string) (*color.Color, *color.Color) {
	switch level {
	case "DEBUG":
		return color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)
	case "WARN":
		return color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)
	case "ERROR", "FATAL":
		return color.New(color.FgRed), color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)
	}
}

func (l *Logger) terminalLine(e entry) string {
	levelColor, categoryColor := levelColors(e.Level)

	// e.Timestamp is RFC3339-like; the time-of-day part starts at offset 11.
	timeStr := color.New(color.FgBlue).Sprint(e.Timestamp[11:19])
	levelStr := levelColor.Sprintf("%-5s", e.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", e.Category)

	if e.File != "" && e.Line > 0 {
		caller := color.New(color.FgMagenta).Sprintf(" (%s:%d)", e.File, e.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, e.Message, caller)
	}
	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, e.Message)
}

func (l *Logger) Debug(category, message string) {
	l.write(LevelDebug, category, message)
}

func (l *Logger) Info(category, message string) {
	l.write(LevelInfo, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.write(LevelWarn, category, message)
}

func (l *Logger) Error(category, message string) {
	l.write(LevelError, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.write(LevelFatal, category, message)
	os.Exit(1)
}

// Domain-specific helpers so call sites stay one-liners.

func (l *Logger) LogBooking(action, bookingID, message string) {
	l.Info("BOOKING", fmt.Sprintf("[%s] %s - %s", action, bookingID, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogProcess(processName, message string) {
	l.Info("PROCESS", fmt.Sprintf("[%s] %s", processName, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
