package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/menta2k/yolo-labeler/internal/config"
)

// Logger provides leveled logging (debug/info/warning/error) to the console
// and, when a log directory is configured, to per-level files.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debug      bool
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger. The log directory is created when set.
func New(cfg config.LogConfig) (*Logger, error) {
	l := &Logger{debug: cfg.Debug}
	if cfg.Dir == "" {
		l.setupLoggers(os.Stdout, os.Stdout, os.Stderr)
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	var writers [3]io.Writer
	for i, name := range []string{"info.log", "warning.log", "error.log"} {
		f, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, f)
		writers[i] = f
	}
	l.setupLoggers(
		io.MultiWriter(os.Stdout, writers[0]),
		io.MultiWriter(os.Stdout, writers[1]),
		io.MultiWriter(os.Stderr, writers[2]),
	)
	return l, nil
}

// NewWriter creates a Logger that writes every level to w
func NewWriter(w io.Writer, debug bool) *Logger {
	l := &Logger{debug: debug}
	l.setupLoggers(w, w, w)
	return l
}

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return NewWriter(io.Discard, false)
}

func (l *Logger) setupLoggers(info, warning, errw io.Writer) {
	flags := log.Ldate | log.Ltime
	l.debugLog = log.New(info, "DEBUG   ", flags|log.Lshortfile)
	l.infoLog = log.New(info, "INFO    ", flags)
	l.warningLog = log.New(warning, "WARNING ", flags)
	l.errorLog = log.New(errw, "ERROR   ", flags)
}

// Debug writes a formatted debug-level entry when debug logging is enabled
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Output(2, fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close closes any open log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}
