package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeSchema, "test message: %s", "value")

	if err.Code != ErrCodeSchema {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeSchema)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "SCHEMA: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("unexpected end of input")
	err := Wrap(ErrCodeCodec, cause, "decode json")

	if err.Code != ErrCodeCodec {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeCodec)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeSchema, "test"),
			code:     ErrCodeSchema,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeSchema, "test"),
			code:     ErrCodeCodec,
			expected: false,
		},
		{
			name:     "outer code of wrapped error",
			err:      Wrap(ErrCodeCodec, New(ErrCodeDisallowedClass, "inner"), "outer"),
			code:     ErrCodeCodec,
			expected: true,
		},
		{
			name:     "inner code of wrapped error",
			err:      Wrap(ErrCodeCodec, New(ErrCodeDisallowedClass, "inner"), "outer"),
			code:     ErrCodeDisallowedClass,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeSchema,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeSchema,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeUnknownType, "test"),
			expected: ErrCodeUnknownType,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDisallowed(t *testing.T) {
	err := Disallowed("evil.Payload")

	if !Is(err, ErrCodeDisallowedClass) {
		t.Fatalf("Disallowed() code = %v, want %v", err.Code, ErrCodeDisallowedClass)
	}

	var dc *DisallowedClassError
	if !errors.As(err, &dc) {
		t.Fatal("errors.As(*DisallowedClassError) = false, want true")
	}
	if dc.Tag != "evil.Payload" {
		t.Errorf("Tag = %q, want %q", dc.Tag, "evil.Payload")
	}
	if dc.Code() != ErrCodeDisallowedClass {
		t.Errorf("Code() = %v, want %v", dc.Code(), ErrCodeDisallowedClass)
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidFormat,
		ErrCodeInvalidTag,
		ErrCodeInvalidKey,
		ErrCodeSchema,
		ErrCodeDisallowedClass,
		ErrCodeUnknownType,
		ErrCodeMalformedReference,
		ErrCodeCodec,
		ErrCodeCycle,
		ErrCodeDepthExceeded,
		ErrCodeNotFound,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
