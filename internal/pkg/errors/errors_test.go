package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetails(map[string]string{"field": "name"})

	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %s, want name", err.Details["field"])
	}
}

func TestConfigError(t *testing.T) {
	err := ConfigError("method", "hamming")

	if err.Code != CodeConfig {
		t.Errorf("Code = %s, want %s", err.Code, CodeConfig)
	}
	if err.Details["param"] != "method" || err.Details["value"] != "hamming" {
		t.Errorf("Details = %v, want param=method value=hamming", err.Details)
	}
	if got, want := err.Error(), `CONFIG_ERROR: invalid method: "hamming"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadError(t *testing.T) {
	err := LoadError("/data/train2id.txt", errors.New("no such file"))

	if err.Details["path"] != "/data/train2id.txt" {
		t.Errorf("Details[path] = %s", err.Details["path"])
	}
	if !IsLoad(err) {
		t.Error("IsLoad() = false, want true")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("computing table: %w", ConfigError("method", "x"))

	if !IsConfig(wrapped) {
		t.Error("IsConfig() should unwrap fmt.Errorf chains")
	}
	if IsLoad(wrapped) {
		t.Error("IsLoad() = true for a config error")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain) should be empty")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NotFoundError("table")) {
		t.Error("IsNotFound() = false for NotFoundError")
	}
	if IsNotFound(ValidationError("x")) {
		t.Error("IsNotFound() = true for ValidationError")
	}
}
