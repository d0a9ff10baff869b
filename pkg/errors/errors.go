package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Git and network errors (1xxx)
	ErrCodeGitClone           ErrorCode = "RH1001"
	ErrCodeGitCheckout        ErrorCode = "RH1002"
	ErrCodeGitHistory         ErrorCode = "RH1003"
	ErrCodeCommitNotFound     ErrorCode = "RH1004"
	ErrCodeNetworkUnavailable ErrorCode = "RH1005"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound     ErrorCode = "RH2001"
	ErrCodeConfigInvalid      ErrorCode = "RH2002"
	ErrCodeManifestUnreadable ErrorCode = "RH2003"
	ErrCodeEncryptionFailed   ErrorCode = "RH2004"

	// Install and build errors (3xxx)
	ErrCodeMissingTool   ErrorCode = "RH3001"
	ErrCodeInstallFailed ErrorCode = "RH3002"
	ErrCodeBuildFailed   ErrorCode = "RH3003"
	ErrCodeTimeout       ErrorCode = "RH3004"

	// Patch and restore errors (4xxx)
	ErrCodePatchConflict     ErrorCode = "RH4001"
	ErrCodeBackupFailed      ErrorCode = "RH4002"
	ErrCodeRestoreIncomplete ErrorCode = "RH4003"

	// Docker and database errors (5xxx)
	ErrCodePortInUse      ErrorCode = "RH5001"
	ErrCodeContainerStart ErrorCode = "RH5002"
	ErrCodeDBNotReady     ErrorCode = "RH5003"
	ErrCodeDockerMissing  ErrorCode = "RH5004"

	// File system errors (6xxx)
	ErrCodeFileNotFound  ErrorCode = "RH6001"
	ErrCodeFileOperation ErrorCode = "RH6002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "RH9001"
	ErrCodeServiceUnavailable ErrorCode = "RH9002"
	ErrCodeMaxRetriesExceeded ErrorCode = "RH9003"
	ErrCodeResourceExhausted  ErrorCode = "RH9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // Repository failed, batch continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// GitError creates a git-related error, promoting recognizable network
// failures to a recoverable network code
func GitError(code ErrorCode, message string, cause error) *AppError {
	var err *AppError
	if cause != nil {
		err = Wrap(cause, code, message)
		msg := cause.Error()
		if strings.Contains(msg, "connection") ||
			strings.Contains(msg, "timeout") ||
			strings.Contains(msg, "unreachable") {
			err.Code = ErrCodeNetworkUnavailable
			_ = err.WithSuggestions(
				"Check your network connection",
				"Verify the repository URL is reachable",
			).AsRecoverable()
		}
	} else {
		err = New(code, message)
	}
	return err
}

// MissingToolError reports an absent global tool, resolvable once rather
// than per-repository
func MissingToolError(tool string) *AppError {
	return New(ErrCodeMissingTool, fmt.Sprintf("required tool '%s' not found in PATH", tool)).
		WithContext("tool", tool).
		WithSuggestions(
			fmt.Sprintf("Install '%s' globally and re-run", tool),
			"Verify PATH in the shell running the harness",
		)
}

// TimeoutError reports a bounded subprocess that exceeded its deadline
func TimeoutError(operation string, timeout time.Duration) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s exceeded %s timeout", operation, timeout)).
		WithContext("operation", operation).
		WithContext("timeout", timeout.String()).
		WithSuggestions(
			"Re-run with a larger --timeout",
			"Check for hung network requests in the install",
		).
		AsRecoverable()
}

// PatchConflictError reports a detector whose expected pattern was absent
func PatchConflictError(file, pattern string) *AppError {
	return New(ErrCodePatchConflict, fmt.Sprintf("expected pattern not found in %s", file)).
		WithContext("file", file).
		WithContext("pattern", pattern).
		WithSuggestions(
			"Inspect the file manually; the project may have changed shape",
			"Adjust or disable the detector for this repository",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'repoharness init' to recreate the configuration",
		)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
