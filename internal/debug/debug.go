package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/phpref/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're running as a stdio MCP server (set by main).
// Debug output to stdio would corrupt the protocol stream, so it is
// suppressed unless routed to a file.
var MCPMode = false

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "phpref-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

func logf(category, format string, args ...interface{}) {
	debugMutex.Lock()
	w := debugOutput
	debugMutex.Unlock()

	if w == nil {
		if MCPMode || EnableDebug != "true" {
			return
		}
		w = os.Stderr
	}

	fmt.Fprintf(w, "[%s] %s %s\n",
		category,
		time.Now().Format("15:04:05.000"),
		fmt.Sprintf(format, args...))
}

// LogIndexing logs index scan events (file added/removed, scan progress).
func LogIndexing(format string, args ...interface{}) {
	logf("index", format, args...)
}

// LogRefactor logs edit-planner decisions (accepted/skipped call sites,
// candidate pre-filtering).
func LogRefactor(format string, args ...interface{}) {
	logf("refactor", format, args...)
}

// LogWatcher logs file-watcher events after debouncing.
func LogWatcher(format string, args ...interface{}) {
	logf("watch", format, args...)
}
