package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrValidation", ErrValidation, "validation failed"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrUpstream", ErrUpstream, "upstream error"},
		{"ErrInvalidTransition", ErrInvalidTransition, "invalid status transition"},
		{"ErrSyncInProgress", ErrSyncInProgress, "sync already in progress"},
		{"ErrUnsupportedMethod", ErrUnsupportedMethod, "unsupported ingestion method"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrSessionNotFound", ErrSessionNotFound, "session not found"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrValidation,
		ErrUnauthorized,
		ErrUpstream,
		ErrInvalidTransition,
		ErrSyncInProgress,
		ErrUnsupportedMethod,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrSessionNotFound,
		ErrInvalidCredentials,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("slug", "%q is taken", "acme")
	if err.Error() != `slug: "acme" is taken` {
		t.Errorf("unexpected message %q", err.Error())
	}

	wrapped := fmt.Errorf("create source: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Error("wrapped ValidationError should match ErrValidation")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("ValidationError should not match ErrNotFound")
	}

	var ve *ValidationError
	if !errors.As(wrapped, &ve) || ve.Field != "slug" {
		t.Error("errors.As should recover the field")
	}
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  *UpstreamError
		msg  string
	}{
		{"status and message", &UpstreamError{StatusCode: 500, Message: "boom"}, "upstream returned 500: boom"},
		{"status only", &UpstreamError{StatusCode: 503}, "upstream returned 503"},
		{"transport", &UpstreamError{Err: errors.New("dial tcp: refused")}, "upstream unreachable: dial tcp: refused"},
		{"empty", &UpstreamError{}, "upstream error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
			if !errors.Is(tt.err, ErrUpstream) {
				t.Error("should match ErrUpstream")
			}
		})
	}
}
