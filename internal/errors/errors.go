package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig             = "CONFIG"
	ErrExec               = "EXEC"
	ErrLock               = "LOCK"
	ErrKeyExists          = "KEY_EXISTS"
	ErrGeneration         = "GENERATION"
	ErrPassphraseMismatch = "PASSPHRASE_MISMATCH"
	ErrPassphraseWeak     = "PASSPHRASE_WEAK"
	ErrCancelled          = "CANCELLED"
	ErrKeyUnavailable     = "KEY_UNAVAILABLE"
	ErrUnverified         = "PASSPHRASE_UNVERIFIED"
	ErrConfigWrite        = "CONFIG_WRITE"
	ErrInstall            = "INSTALL"
	ErrTimeout            = "TIMEOUT"
	ErrBusy               = "BUSY"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error

	// ExitCode is the exit status of a failed external process, kept for
	// diagnostics. Zero when no process was involved.
	ExitCode int
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrExec code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrExec,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewInstallFailed creates an INSTALL error carrying the installer's exit code.
func NewInstallFailed(tool string, exitCode int, stderr string) *Error {
	e := &Error{
		Code:       ErrInstall,
		Message:    fmt.Sprintf("Couldn't install %s", tool),
		Suggestion: "Check your network connection and try again, or install it manually from its home page.",
		ExitCode:   exitCode,
	}
	if s := strings.TrimSpace(stderr); s != "" {
		e.Cause = errors.New(s)
	}
	return e
}

// NewTimeout creates a TIMEOUT error for an operation that exceeded its deadline.
func NewTimeout(operation string, cause error) *Error {
	return &Error{
		Code:       ErrTimeout,
		Message:    fmt.Sprintf("%s timed out", operation),
		Suggestion: "Try again, or raise the limit under 'timeouts' in your config.",
		Cause:      cause,
	}
}

// Cancelled is returned when the user declines a prompt. It is an expected
// exit path, not a failure.
func Cancelled() *Error {
	return &Error{
		Code:    ErrCancelled,
		Message: "Cancelled",
	}
}

// FromContext maps a context error to a structured error. Deadline expiry
// becomes TIMEOUT; cancellation becomes CANCELLED. Returns nil for nil.
func FromContext(err error, operation string) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeout(operation, err)
	case errors.Is(err, context.Canceled):
		return Cancelled()
	}
	return Wrap(err, operation+" failed")
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var tbErr *Error
	if errors.As(err, &tbErr) {
		return tbErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost structured Error in err's chain,
// or an empty string.
func CodeOf(err error) string {
	var tbErr *Error
	if errors.As(err, &tbErr) {
		return tbErr.Code
	}
	return ""
}

// UserMessage returns a one-line message suitable for showing to the end
// user. Process exit codes and raw stderr are left out.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var tbErr *Error
	if errors.As(err, &tbErr) {
		if tbErr.Suggestion != "" {
			return tbErr.Message + ". " + tbErr.Suggestion
		}
		return tbErr.Message
	}
	return err.Error()
}

// ExitError carries a process exit code out of a command without printing
// another error message.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the code from an ExitError in err's chain.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
