// Package logger provides a minimal leveled logger for the library's
// background components. Level, format and destination are process-wide.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	mu            sync.Mutex
	currentLevel  = LevelInfo
	currentFormat = FormatText
	logger        = stdlog.New(os.Stdout, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(format) {
	case "json":
		currentFormat = FormatJSON
	default:
		currentFormat = FormatText
	}
}

// SetOutput redirects log output. Accepts "stdout", "stderr" or a file
// path (opened append-only, created if missing).
func SetOutput(output string) error {
	var w io.Writer
	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w = f
	}

	mu.Lock()
	defer mu.Unlock()
	logger = stdlog.New(w, "", 0)
	return nil
}

func log(level Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()

	if level < currentLevel {
		return
	}

	message := fmt.Sprintf(format, v...)
	now := time.Now()

	if currentFormat == FormatJSON {
		line, err := json.Marshal(map[string]string{
			"time":    now.Format(time.RFC3339),
			"level":   level.String(),
			"message": message,
		})
		if err == nil {
			logger.Println(string(line))
		}
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	logger.Println(fmt.Sprintf("[%s] [%s] ", timestamp, level.String()) + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
