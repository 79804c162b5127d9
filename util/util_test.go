package util

import (
	"regexp"
	"testing"
)

func TestGenerateWebhookTokenShapeAndUniqueness(t *testing.T) {
	token, err := GenerateWebhookToken()
	if err != nil {
		t.Fatalf("GenerateWebhookToken() error = %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("len(token) = %d, want 32", len(token))
	}
	if !regexp.MustCompile(`^[a-zA-Z0-9]{32}$`).MatchString(token) {
		t.Fatalf("token %q contains unexpected characters", token)
	}

	other, err := GenerateWebhookToken()
	if err != nil {
		t.Fatalf("GenerateWebhookToken() second call error = %v", err)
	}
	if token == other {
		t.Fatalf("two consecutive tokens were identical: %q", token)
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("abc123", "abc123") {
		t.Error("SecureCompare(equal) = false, want true")
	}
	if SecureCompare("abc123", "abc124") {
		t.Error("SecureCompare(differing last byte) = true, want false")
	}
	if SecureCompare("short", "shorter") {
		t.Error("SecureCompare(different lengths) = true, want false")
	}
	if SecureCompare("", "") != true {
		t.Error("SecureCompare(empty, empty) = false, want true")
	}
}

func TestGenerateSlugShape(t *testing.T) {
	slug := GenerateSlug()
	if !regexp.MustCompile(`^[a-z]+-[a-z]+-[0-9a-f]{4}$`).MatchString(slug) {
		t.Fatalf("slug %q does not match adjective-noun-xxxx shape", slug)
	}
}

func TestGenerateSlugVariesAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[GenerateSlug()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected GenerateSlug to produce varied output across 20 calls, got %d distinct values", len(seen))
	}
}
