package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitrefresh/internal/logger"
)

// Failure classes shared by the refresh components. Each one is resolved at
// the lowest layer that can handle it; only a cycle status crosses upward.
var (
	// ErrStoreUnreachable means the habit database could not be opened or read.
	ErrStoreUnreachable = errors.New("habit store unreachable")
	// ErrDecode marks a single habit row that could not be decoded.
	ErrDecode = errors.New("habit row decode failed")
	// ErrTimerServiceUnavailable means no wake service could arm a timer.
	ErrTimerServiceUnavailable = errors.New("timer service unavailable")
	// ErrFallbackTimeout marks the end of the fallback grace period.
	ErrFallbackTimeout = errors.New("fallback grace period elapsed")
	// ErrUnexpected wraps a failure recovered at the resolver boundary.
	ErrUnexpected = errors.New("unexpected refresh failure")
	// ErrGuardConflict means the day guard changed between read and write.
	ErrGuardConflict = errors.New("day guard changed concurrently")
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
