package errors

import (
	"errors"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "input error",
			category:   CategoryInput,
			code:       CodeMalformedPayload,
			message:    "malformed payload",
			cause:      errors.New("unexpected token"),
			expectCode: 2,
		},
		{
			name:       "table error",
			category:   CategoryTable,
			code:       CodeNoHeaderRow,
			message:    "no header row",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeMissingCredentials,
			message:    "missing api key",
			cause:      errors.New("env not set"),
			expectCode: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("expected message %s, got %s", tt.message, err.Message)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestReconcilerErrorWithContext(t *testing.T) {
	err := New(CategoryInput, CodeUnreadableFile, "test error").
		WithContext("file", "act.xlsx").
		WithContext("sheets", 3).
		WithSuggestion("check file format")

	if err.Context["file"] != "act.xlsx" {
		t.Errorf("expected file context 'act.xlsx', got %v", err.Context["file"])
	}
	if err.Context["sheets"] != 3 {
		t.Errorf("expected sheets context 3, got %v", err.Context["sheets"])
	}
	if err.Suggestion != "check file format" {
		t.Errorf("expected suggestion 'check file format', got %s", err.Suggestion)
	}

	expected := "test error (suggestion: check file format)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("InputError", func(t *testing.T) {
		cause := errors.New("illegal base64 data")
		err := InputError(CodeBadEncoding, "act.xlsx", cause)

		if err.Category != CategoryInput {
			t.Errorf("expected input category, got %s", err.Category)
		}
		if err.Context["detail"] != "act.xlsx" {
			t.Errorf("expected detail context, got %v", err.Context["detail"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
		if err.Cause != cause {
			t.Errorf("expected cause %v, got %v", cause, err.Cause)
		}
	})

	t.Run("TableError", func(t *testing.T) {
		err := TableError(CodeUnknownSystem, "Лист1", nil)

		if err.Category != CategoryTable {
			t.Errorf("expected table category, got %s", err.Category)
		}
		if err.Context["sheet"] != "Лист1" {
			t.Errorf("expected sheet context, got %v", err.Context["sheet"])
		}
	})

	t.Run("ExternalError", func(t *testing.T) {
		err := ExternalError(CodeServiceTimeout, "https://llm.example/completion", errors.New("deadline exceeded"))

		if err.Category != CategoryExternal {
			t.Errorf("expected external category, got %s", err.Category)
		}
		if err.GetExitCode() != 6 {
			t.Errorf("expected exit code 6, got %d", err.GetExitCode())
		}
	})

	t.Run("PayloadError", func(t *testing.T) {
		err := PayloadError(250000, 200000)

		if err.Category != CategoryPayload {
			t.Errorf("expected payload category, got %s", err.Category)
		}
		if err.Context["size"] != 250000 || err.Context["limit"] != 200000 {
			t.Errorf("expected size/limit context, got %v", err.Context)
		}
	})
}

func TestIsReconcilerError(t *testing.T) {
	reconcilerErr := New(CategoryInput, CodeMalformedPayload, "test")
	genericErr := errors.New("generic error")

	if !IsReconcilerError(reconcilerErr) {
		t.Error("expected IsReconcilerError to return true for ReconcilerError")
	}
	if IsReconcilerError(genericErr) {
		t.Error("expected IsReconcilerError to return false for generic error")
	}
	if IsReconcilerError(nil) {
		t.Error("expected IsReconcilerError to return false for nil")
	}
}

func TestAsReconcilerError(t *testing.T) {
	reconcilerErr := New(CategoryTable, CodeNoStructure, "test")

	if extracted, ok := AsReconcilerError(reconcilerErr); !ok || extracted != reconcilerErr {
		t.Error("expected AsReconcilerError to extract ReconcilerError")
	}
	if _, ok := AsReconcilerError(errors.New("generic")); ok {
		t.Error("expected AsReconcilerError to return false for generic error")
	}
	if _, ok := AsReconcilerError(nil); ok {
		t.Error("expected AsReconcilerError to return false for nil")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	reconcilerErr := New(CategoryInput, CodeMalformedPayload, "test")
	genericErr := errors.New("generic error")

	if result := WrapIfNeeded(reconcilerErr, CategoryInternal, CodeUnexpectedError, "wrapped"); result != reconcilerErr {
		t.Error("expected WrapIfNeeded to return original ReconcilerError")
	}

	result := WrapIfNeeded(genericErr, CategoryInternal, CodeUnexpectedError, "wrapped")
	if result.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}
	if result.Category != CategoryInternal {
		t.Error("expected wrapped error to have correct category")
	}

	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestHasCategory(t *testing.T) {
	err := InputError(CodeMalformedPayload, "bad body", nil)

	if !HasCategory(err, CategoryInput) {
		t.Error("expected input category")
	}
	if HasCategory(err, CategoryPayload) {
		t.Error("did not expect payload category")
	}
	if HasCategory(errors.New("generic"), CategoryInput) {
		t.Error("generic errors have no category")
	}
}

func TestFormatForResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"ascii", errors.New("plain failure"), "plain failure"},
		{"cyrillic", errors.New("лист"), `лист`},
		{"mixed", errors.New("sheet №1"), `sheet №1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatForResponse(tt.err); got != tt.expected {
				t.Errorf("FormatForResponse() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryInput, 2},
		{CategoryTable, 3},
		{CategoryExtraction, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
		{CategoryExternal, 6},
		{CategoryPayload, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}
