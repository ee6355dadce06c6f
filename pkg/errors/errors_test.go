package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeNoValidRows,
			message:    "no rows",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "storage error",
			category:   CategoryStorage,
			code:       CodeWriteFailed,
			message:    "write failed",
			cause:      errors.New("disk full"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AppError
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
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a stack trace to be captured")
			}
		})
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("NoValidRows", func(t *testing.T) {
		err := ParseError(CodeNoValidRows, "statement.xlsx", nil)
		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Message != "0 valid rows found in statement.xlsx" {
			t.Errorf("unexpected message %q", err.Message)
		}
	})

	t.Run("AthleteNotFound", func(t *testing.T) {
		err := ValidationError(CodeAthleteNotFound, "athlete_id", "a-404", nil)
		if err.Context["value"] != "a-404" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
		if err.GetExitCode() != 3 {
			t.Errorf("expected exit code 3, got %d", err.GetExitCode())
		}
	})

	t.Run("StorageError", func(t *testing.T) {
		cause := errors.New("locked")
		err := StorageError(CodeStoreUnavailable, "club.db", cause)
		if !errors.Is(err, cause) {
			t.Error("expected storage error to wrap its cause")
		}
	})
}

func TestAsAppError(t *testing.T) {
	base := ValidationError(CodeAthleteNotFound, "athlete_id", "x", nil)
	wrapped := fmt.Errorf("manual match: %w", base)

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError in chain")
	}
	if got != base {
		t.Error("expected the original AppError")
	}
	if !IsCode(wrapped, CodeAthleteNotFound) {
		t.Error("expected IsCode to find athlete_not_found")
	}
	if IsCode(errors.New("plain"), CodeAthleteNotFound) {
		t.Error("plain errors carry no code")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("expected nil for nil error")
	}

	app := New(CategoryParse, CodeInvalidFormat, "bad")
	if WrapIfNeeded(app, CategoryInternal, CodeUnexpectedError, "x") != app {
		t.Error("expected existing AppError to be returned unchanged")
	}

	plain := errors.New("boom")
	wrapped := WrapIfNeeded(plain, CategoryInternal, CodeUnexpectedError, "wrapped")
	if wrapped.Category != CategoryInternal || wrapped.Cause != plain {
		t.Errorf("unexpected wrap result: %+v", wrapped)
	}
}

func TestErrorSummary(t *testing.T) {
	empty := NewErrorSummary(nil)
	if empty.Error() != "no errors" {
		t.Errorf("expected 'no errors', got %q", empty.Error())
	}

	summary := NewErrorSummary([]*AppError{
		New(CategoryStorage, CodeWriteFailed, "a"),
		New(CategoryStorage, CodeWriteFailed, "b"),
		New(CategoryValidation, CodeAthleteNotFound, "c"),
	})
	if summary.Total != 3 {
		t.Errorf("expected 3 errors, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryStorage] != 2 {
		t.Errorf("expected 2 storage errors, got %d", summary.ByCategory[CategoryStorage])
	}
	if !summary.HasCode(CodeAthleteNotFound) {
		t.Error("expected athlete_not_found in summary")
	}
}
