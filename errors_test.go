package mcshell

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRecognizesEngineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"validation", &ErrValidation{StageIndex: 0, Field: "x", Reason: "y"}, KindValidation},
		{"command not allowed", &ErrCommandNotAllowed{Command: "rm"}, KindCommandNotAllowed},
		{"command failed", &ErrCommandFailed{Command: "jq", ExitCode: 1}, KindCommandFailed},
		{"tool invocation", &ErrToolInvocation{Server: "s", Tool: "t"}, KindToolInvocation},
		{"tool transport", &ErrToolTransport{Server: "s", Cause: errors.New("boom")}, KindToolTransport},
		{"buffer limit", &ErrBufferLimitExceeded{Name: "b", Limit: 10}, KindBufferLimit},
		{"foreach limit", &ErrForEachLimitExceeded{StageIndex: 0, Limit: 10}, KindForEachLimit},
		{"cancelled", &ErrCancelled{}, KindCancelled},
		{"not found", &ErrNotFound{Server: "s"}, KindNotFound},
		{"runtime unavailable", &ErrRuntimeUnavailable{}, KindRuntimeUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := Classify(tc.err)
			assert.True(t, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestClassifyUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", &ErrNotFound{Server: "s"})
	kind, ok := Classify(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
}

func TestClassifyReturnsFalseForForeignErrors(t *testing.T) {
	kind, ok := Classify(errors.New("plain error"))
	assert.False(t, ok)
	assert.Empty(t, kind)
}

func TestErrToolTransportUnwraps(t *testing.T) {
	cause := errors.New("dial failed")
	err := &ErrToolTransport{Server: "s", Cause: cause}
	assert.Equal(t, cause, errors.Unwrap(err))
}
