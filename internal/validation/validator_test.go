package validation

import (
	"errors"
	"testing"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

type sample struct {
	Company string `json:"company" validate:"required,max=5"`
	Slug    string `json:"slug" validate:"required,slug"`
	Method  string `json:"method" validate:"required,method"`
	Limit   int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        sample
		wantField string
		wantMsg   string
	}{
		{"valid", sample{"Acme", "acme", "rss", 10}, "", ""},
		{"missing company", sample{"", "acme", "rss", 10}, "company", "is required"},
		{"long company", sample{"Acme Corp", "acme", "rss", 10}, "company", "must be at most 5 characters"},
		{"bad slug", sample{"Acme", "Acme Corp", "rss", 10}, "slug", "must contain only lowercase letters, digits and single hyphens"},
		{"bad method", sample{"Acme", "acme", "ftp", 10}, "method", "must be one of github_json, rss, scrape, statuspage_api"},
		{"limit too high", sample{"Acme", "acme", "rss", 500}, "limit", "must be less than or equal to 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *domain.ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, ve.Field)
			}
			if ve.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, ve.Message)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Error("expected errors.Is(err, domain.ErrValidation)")
			}
		})
	}
}

func TestGetValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
