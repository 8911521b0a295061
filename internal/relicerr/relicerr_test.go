package relicerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := Newf(InvalidLocator, "unrecognized host: %s", "example.org")
		want := "[INVALID_LOCATOR] unrecognized host: example.org"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("exit status 128")
		err := New(ToolFailure, "git clone failed", cause)
		if !strings.Contains(err.Error(), "exit status 128") {
			t.Errorf("Error() should include cause, got %q", err.Error())
		}
	})
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(ToolFailure, "wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var re *Error
	if !errors.As(wrapped, &re) {
		t.Fatal("errors.As should find *Error through wrapping")
	}
	if re.Code != ToolFailure {
		t.Errorf("Code = %v, want %v", re.Code, ToolFailure)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"coded error", Newf(JobNotFound, "no such job"), JobNotFound},
		{"wrapped coded error", fmt.Errorf("ctx: %w", Newf(Timeout, "slow")), Timeout},
		{"plain error", errors.New("plain"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := Newf(AllAttributionsFailed, "every lookup failed")
	if !HasCode(err, AllAttributionsFailed) {
		t.Error("HasCode should match the error's own code")
	}
	if HasCode(err, InvalidLocator) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(nil, Internal) {
		t.Error("HasCode(nil) should be false")
	}
}

func TestWithDetails(t *testing.T) {
	err := Newf(ParseFailure, "bad line").WithDetails(map[string]interface{}{
		"line": "not:a:number",
	})
	if err.Details == nil {
		t.Error("Details should be set")
	}
}
