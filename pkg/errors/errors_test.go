package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeGitClone, "clone failed")

	assert.Equal(t, ErrCodeGitClone, err.Code)
	assert.Equal(t, "clone failed", err.Message)
	assert.Equal(t, SeverityError, err.Severity)
	assert.False(t, err.Recoverable)
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, ErrCodeInstallFailed, "install failed")

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "underlying failure")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "should be nil"))
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeGitCheckout, "checkout failed").
		WithContext("sha", "abc123")
	outer := Wrap(inner, ErrCodeGitClone, "clone stage failed")

	assert.Equal(t, "abc123", outer.Context["sha"])
}

func TestIs(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out")
	target := New(ErrCodeTimeout, "different message")

	assert.True(t, errors.Is(err, target))
	assert.False(t, errors.Is(err, New(ErrCodeBuildFailed, "x")))
}

func TestGitErrorPromotesNetworkFailures(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantCode ErrorCode
	}{
		{
			name:     "connection refused becomes network code",
			cause:    fmt.Errorf("dial tcp: connection refused"),
			wantCode: ErrCodeNetworkUnavailable,
		},
		{
			name:     "host unreachable becomes network code",
			cause:    fmt.Errorf("host unreachable"),
			wantCode: ErrCodeNetworkUnavailable,
		},
		{
			name:     "plain git failure keeps original code",
			cause:    fmt.Errorf("object not found"),
			wantCode: ErrCodeGitClone,
		},
		{
			name:     "nil cause keeps original code",
			cause:    nil,
			wantCode: ErrCodeGitClone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GitError(ErrCodeGitClone, "clone failed", tt.cause)
			assert.Equal(t, tt.wantCode, err.Code)
		})
	}
}

func TestMissingToolError(t *testing.T) {
	err := MissingToolError("yarn")

	assert.Equal(t, ErrCodeMissingTool, err.Code)
	assert.Equal(t, "yarn", err.Context["tool"])
	assert.NotEmpty(t, err.Suggestions)
}

func TestTimeoutErrorIsRecoverable(t *testing.T) {
	err := TimeoutError("npm install", 10*time.Minute)

	assert.Equal(t, ErrCodeTimeout, err.Code)
	assert.True(t, IsRecoverable(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodePatchConflict, GetErrorCode(PatchConflictError("config.py", "OpenAI(")))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain error")))
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryableError: func(err error) bool {
			return true
		},
	}

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeNetworkUnavailable, "flaky").AsRecoverable()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return New(ErrCodePatchConflict, "not transient")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustion(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		Multiplier:     1.0,
		RetryableError: func(err error) bool { return true },
	}

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		return New(ErrCodeDBNotReady, "still starting")
	})

	require.Error(t, err)
	assert.Equal(t, ErrCodeMaxRetriesExceeded, GetErrorCode(err))
}
