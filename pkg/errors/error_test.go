package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "codepulse/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{LanguageNotSupported, "Unsupported language"},
		{TestCaseNotFound, "No test cases found for this problem"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ValidationFailed, 400},
		{LanguageNotSupported, 400},
		{TokenInvalid, 401},
		{TestCaseNotFound, 404},
		{SubmissionNotFound, 404},
		{TooManyRequests, 429},
		{JudgeQueueFull, 503},
		{JudgeSystemError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(LanguageNotSupported, "language %q is not supported", "rust")
	if err.Error() != `language "rust" is not supported` {
		t.Errorf("Error() = %v", err.Error())
	}
	if err.Stack == "" {
		t.Error("expected stack to be captured")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, DatabaseError)

	if wrappedErr.Code != DatabaseError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, DatabaseError)
	}
	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapRecodesCodedError(t *testing.T) {
	coded := New(CacheError)
	if got := Wrap(coded, JudgeSystemError); got != coded || got.Code != JudgeSystemError {
		t.Fatalf("expected coded error to be re-coded in place, got %+v", got)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(SubmissionNotFound), want: SubmissionNotFound},
		{name: "wrapped custom error", err: fmt.Errorf("load: %w", New(TestCaseNotFound)), want: TestCaseNotFound},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(LanguageNotSupported)

	if !Is(err, LanguageNotSupported) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, DatabaseError) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, LanguageNotSupported) {
		t.Error("Is() should return false for nil error")
	}
}

func TestGetErrorWrapsPlainError(t *testing.T) {
	err := GetError(errors.New("boom"))
	if err.Code != InternalServerError {
		t.Fatalf("expected internal code, got %v", err.Code)
	}
	if err.Error() != "boom" {
		t.Fatalf("expected original message, got %q", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("language", "required")
	if err.Code != ValidationFailed {
		t.Error("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "language" || err.Details["reason"] != "required" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
