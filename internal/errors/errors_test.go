package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodeCanceled,
		CodeSchema,
		CodeMalformed,
		CodeMissingField,
		CodeSourceRead,
		CodeFileNotFound,
		CodeNoSourceMatch,
		CodeSinkWrite,
		CodeSinkFlush,
		CodeDatabaseConnection,
		CodeDatabaseQuery,
		CodeScanFailed,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestSchemaError(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		err := ErrMissingField("host.address")
		if err.Code != CodeMissingField {
			t.Errorf("Expected code %s, got %s", CodeMissingField, err.Code)
		}
		expected := "[MISSING_FIELD] Required field missing (field: host.address)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("with source", func(t *testing.T) {
		base := ErrMissingField("scaninfo")
		err := base.WithSource("scan1.xml")
		expected := "[MISSING_FIELD] Required field missing (field: scaninfo) (source: scan1.xml)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
		if base.Source != "" {
			t.Error("WithSource should not modify the original error")
		}
	})

	t.Run("malformed wraps cause", func(t *testing.T) {
		cause := fmt.Errorf("XML syntax error on line 3")
		err := ErrMalformed(cause)
		if err.Unwrap() != cause {
			t.Error("Wrapped error should be unwrappable")
		}
		if !IsSchemaError(fmt.Errorf("decode: %w", err)) {
			t.Error("IsSchemaError should see through wrapping")
		}
	})
}

func TestSourceError(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := ErrSourceRead("missing.xml", fmt.Errorf("open: %w", fs.ErrNotExist))
		if err.Code != CodeFileNotFound {
			t.Errorf("Expected code %s, got %s", CodeFileNotFound, err.Code)
		}
	})

	t.Run("other read failure", func(t *testing.T) {
		cause := fmt.Errorf("permission denied")
		err := ErrSourceRead("scan.xml", cause)
		if err.Code != CodeSourceRead {
			t.Errorf("Expected code %s, got %s", CodeSourceRead, err.Code)
		}
		if !errors.Is(err, cause) {
			t.Error("Should unwrap to original error")
		}
	})
}

func TestSinkError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := ErrSinkWrite("out.csv", cause)
	expected := "[SINK_WRITE] Failed to write output (sink: out.csv): disk full"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
	if ErrSinkFlush("", cause).Code != CodeSinkFlush {
		t.Error("Flush errors should carry the flush code")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		fatal     bool
		skippable bool
	}{
		{"schema error", ErrMissingField("scaninfo"), CodeMissingField, false, true},
		{"source error", ErrSourceRead("a.xml", fmt.Errorf("boom")), CodeSourceRead, false, true},
		{"sink error", ErrSinkWrite("stdout", fmt.Errorf("broken pipe")), CodeSinkWrite, true, false},
		{"config error", ErrConfigMissing("export.format"), CodeConfiguration, true, false},
		{"wrapped sink error", fmt.Errorf("batch: %w", ErrSinkFlush("db", fmt.Errorf("tx"))), CodeSinkFlush, true, false},
		{"plain error", fmt.Errorf("plain"), CodeUnknown, false, false},
		{"nil error", nil, CodeUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %s, want %s", got, tt.code)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			if got := IsSkippable(tt.err); got != tt.skippable {
				t.Errorf("IsSkippable() = %v, want %v", got, tt.skippable)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := ErrConfigInvalid("export.workers", -1)
	if !IsCode(err, CodeValidation) {
		t.Error("Expected validation code")
	}
	if IsCode(nil, CodeUnknown) {
		t.Error("nil error should not match any code")
	}
	if err.Value != -1 {
		t.Errorf("Expected value -1, got %v", err.Value)
	}
}

func TestScanError(t *testing.T) {
	cause := fmt.Errorf("nmap not found")
	err := WrapScanError(CodeScanFailed, "scanner execution failed", []string{"10.0.0.1"}, cause)
	if !errors.Is(err, cause) {
		t.Error("Should unwrap to original error")
	}
	if GetCode(err) != CodeScanFailed {
		t.Errorf("Expected code %s, got %s", CodeScanFailed, GetCode(err))
	}
	if WrapConfigError(CodeConfiguration, "bad", cause).Unwrap() != cause {
		t.Error("Config error should unwrap")
	}
}

func TestAttachSource(t *testing.T) {
	err := AttachSource(ErrMissingField("verbose"), "b.xml")
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected schema error, got %T", err)
	}
	if schemaErr.Source != "b.xml" {
		t.Errorf("Expected source b.xml, got %q", schemaErr.Source)
	}

	again := AttachSource(err, "other.xml")
	if !errors.As(again, &schemaErr) || schemaErr.Source != "b.xml" {
		t.Error("AttachSource should not replace an existing source")
	}

	plain := fmt.Errorf("plain")
	if AttachSource(plain, "c.xml") != plain {
		t.Error("Non-schema errors should be returned unchanged")
	}
	if !IsSourceError(ErrSourceRead("c.xml", plain)) {
		t.Error("Expected source error")
	}
}

func TestDatabaseError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: password=secret")
	err := ErrDatabaseConnection(cause)

	if strings.Contains(err.Error(), "secret") {
		t.Errorf("Expected cause to stay out of the message, got %q", err.Error())
	}
	if GetCode(err) != CodeDatabaseConnection {
		t.Errorf("Expected %s, got %s", CodeDatabaseConnection, GetCode(err))
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}

	wrapped := ErrSinkWrite("database", err)
	if GetCode(wrapped) != CodeSinkWrite {
		t.Errorf("Expected sink code to take precedence, got %s", GetCode(wrapped))
	}
}
