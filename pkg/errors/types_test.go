package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "message is empty")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}
	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}
	if len(err.Stack) == 0 {
		t.Error("Stack should be captured")
	}
	if err.Retryable {
		t.Error("Retryable should default to false")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("disk full")
	err := Wrap(underlying, ErrCodeStorageWrite, "insert task")

	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() = %q, want underlying text", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see the underlying error")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "noop"); err != nil {
		t.Error("Wrap of nil should return nil")
	}
}

func TestErrorString_SortsContext(t *testing.T) {
	err := New(ErrCodeActionExecution, "delete failed").
		WithContext("kind", "delete_task").
		WithContext("index", 2)

	want := "[ACTION_EXECUTION] delete failed {index: 2, kind: delete_task}"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsCode_ThroughFmtWrap(t *testing.T) {
	inner := New(ErrCodeNotFound, "task missing")
	outer := fmt.Errorf("execute: %w", inner)

	if !IsCode(outer, ErrCodeNotFound) {
		t.Error("IsCode should walk the chain")
	}
	if GetCode(outer) != ErrCodeNotFound {
		t.Errorf("GetCode = %v", GetCode(outer))
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != "" {
		t.Error("nil error should have empty code")
	}
	if GetCode(errors.New("plain")) != ErrCodeInternal {
		t.Error("foreign error should map to INTERNAL")
	}
}

func TestIsRetryable(t *testing.T) {
	err := New(ErrCodeModelTimeout, "deadline").WithRetryable(true)
	if !IsRetryable(err) {
		t.Error("expected retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestPublic(t *testing.T) {
	if got := New(ErrCodeInternal, "x").Public(); got != "something went wrong" {
		t.Errorf("Public() = %q", got)
	}
	err := New(ErrCodeChatProcessing, "model down").WithUserMessage("Could not process message")
	if got := err.Public(); got != "Could not process message" {
		t.Errorf("Public() = %q", got)
	}
}

func TestWithRemediation(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "missing key").WithRemediation("set GOOGLE_API_KEY")
	if len(err.Remediation) != 1 || err.Remediation[0] != "set GOOGLE_API_KEY" {
		t.Errorf("Remediation = %v", err.Remediation)
	}
	if New(ErrCodeInternal, "x").WithRemediation().Remediation != nil {
		t.Error("empty remediation should leave field nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeInvalidInput:     http.StatusBadRequest,
		ErrCodeUnauthorized:     http.StatusUnauthorized,
		ErrCodeNotFound:         http.StatusNotFound,
		ErrCodeRateLimited:      http.StatusTooManyRequests,
		ErrCodeChatProcessing:   http.StatusBadGateway,
		ErrCodeStorageWrite:     http.StatusInternalServerError,
		ErrCodeModelUnavailable: http.StatusBadGateway,
	}
	for code, want := range cases {
		if got := HTTPStatus(New(code, "x")); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestStackTrace(t *testing.T) {
	err := New(ErrCodeInternal, "boom")
	if !strings.Contains(err.StackTrace(), "TestStackTrace") {
		t.Errorf("stack trace should include caller:\n%s", err.StackTrace())
	}
}
