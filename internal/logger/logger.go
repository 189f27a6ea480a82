// Package logger provides leveled logging for pdfrag.
// Debug and Info messages are printed to stderr only in verbose mode;
// warnings and errors are always printed. When a log file is attached,
// every Info, Warn and Error line is also appended to it with a timestamp,
// so long ingestion runs leave a trail even without --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	file    io.Writer
	now     = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for console logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetFileOutput sets the writer that receives timestamped log lines.
// Pass nil to detach.
func SetFileOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	file = w
}

// OpenLogFile opens path for appending and attaches it as the file output.
// The caller closes the returned file on shutdown.
func OpenLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetFileOutput(f)
	return f, nil
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
		writeFile("DEBUG", format, args)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
	writeFile("INFO", format, args)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
	writeFile("WARN", format, args)
}

// Error prints an error message.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[ERROR] "+format+"\n", args...)
	writeFile("ERROR", format, args)
}

// writeFile appends a timestamped line to the file output (caller holds read lock).
func writeFile(level, format string, args []any) {
	if file == nil {
		return
	}
	fmt.Fprintf(file, "%s - %s - "+format+"\n",
		append([]any{now().Format("2006-01-02 15:04:05"), level}, args...)...)
}
