package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeNotFound, "review item %s", "abc")
	if err.Error() != "NOT_FOUND: review item abc" {
		t.Errorf("Error() = %q", err.Error())
	}
	if UserMessage(err) != "review item abc" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeInternal, cause, "save layout")
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if err.Error() != "INTERNAL: save layout: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct match", New(CodeForbidden, "x"), CodeForbidden, true},
		{"different code", New(CodeForbidden, "x"), CodeNotFound, false},
		{"wrapped with fmt", fmt.Errorf("ctx: %w", New(CodeInvalidState, "x")), CodeInvalidState, true},
		{"plain error", errors.New("x"), CodeInternal, false},
		{"nil", nil, CodeInternal, false},
		{"empty code never matches", errors.New("x"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(errors.New("x")) != "" {
		t.Error("plain error should have no code")
	}
	if GetCode(fmt.Errorf("a: %w", New(CodeProvider, "p"))) != CodeProvider {
		t.Error("wrapped code not found")
	}
	if UserMessage(errors.New("plain")) != "plain" {
		t.Error("plain message mismatch")
	}
}
