// Package logger is the process-wide log used by the builder and the paflow
// command. Nothing is written until Init or SetOutput is called.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	output       io.Writer
	verbose      bool
	mu           sync.Mutex
)

// Init directs the global logger to the specified log file path, appending
// to it.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	// Close previous log file if exists
	closeFile()

	logFile = f
	output = f
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)

	return nil
}

// SetOutput directs the global logger to w. A nil writer disables logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	output = w
	if w == nil {
		globalLogger = nil
		return
	}
	globalLogger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// SetVerbose enables or disables debug messages.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// Close closes the log file and disables logging.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	globalLogger = nil
	output = nil
}

func closeFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func printf(level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Printf("["+level+"] "+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	printf("INFO", format, v...)
}

// Debug logs a debug message when verbose output is enabled.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	on := verbose
	mu.Unlock()

	if on {
		printf("DEBUG", format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	printf("ERROR", format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	printf("WARN", format, v...)
}

// GetWriter returns the underlying writer, or io.Discard when logging is off.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if output != nil {
		return output
	}
	return io.Discard
}
