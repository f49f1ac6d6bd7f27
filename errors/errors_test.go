package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeInvocation, true},
		{ErrCodeStorage, true},
		{ErrCodeConfiguration, false},
		{ErrCodeInternal, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			err := New(tc.code, "msg")
			if err.Retryable != tc.want {
				t.Errorf("got retryable=%v, want %v", err.Retryable, tc.want)
			}
		})
	}
}

func TestConfiguration_IsFatal(t *testing.T) {
	err := Configuration("grouping.size", "not a number")
	if !err.Fatal() {
		t.Error("configuration errors must be fatal")
	}
	if err.Details["setting"] != "grouping.size" {
		t.Errorf("got setting %v", err.Details["setting"])
	}
	if !strings.Contains(err.Error(), "not a number") {
		t.Errorf("message lost: %q", err.Error())
	}
}

func TestUnresolvedField(t *testing.T) {
	err := UnresolvedField("grouping", "region")
	if err.Code != ErrCodeUnresolvedField {
		t.Errorf("got %s, want %s", err.Code, ErrCodeUnresolvedField)
	}
	if !err.Fatal() {
		t.Error("unresolved field must be fatal")
	}
}

func TestSchemaDrift_Message(t *testing.T) {
	err := SchemaDrift("region", "E", int64(3))
	if !strings.Contains(err.Error(), "string") || !strings.Contains(err.Error(), "int64") {
		t.Errorf("expected both types in message, got %q", err.Error())
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := Invocation("child", fmt.Errorf("boom"))
	wrapped := fmt.Errorf("group 3: %w", base)

	if !IsCode(wrapped, ErrCodeInvocation) {
		t.Error("expected IsCode to see through fmt wrapping")
	}
	if IsCode(wrapped, ErrCodeStopped) {
		t.Error("unexpected match for STOPPED")
	}
	if CodeOf(wrapped) != ErrCodeInvocation {
		t.Errorf("got %s", CodeOf(wrapped))
	}
	if CodeOf(stderrors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Storage("journal.record", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
}

func TestWithDetail(t *testing.T) {
	err := Stopped("executor").WithDetail("step", "exec").WithCause(stderrors.New("ctx"))
	if err.Details["step"] != "exec" {
		t.Errorf("got %v", err.Details["step"])
	}
	if err.Cause == nil {
		t.Error("expected cause")
	}
}

func TestNotFound_EmptyID(t *testing.T) {
	err := NotFound("pipeline", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no id detail")
	}
}
