package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoader_ValidMinimalJSON(t *testing.T) {
	jsonContent := `{
  "iris": ["https://data.gov.cz/zdroj/datové-sady/00025593/790624c7"]
}`

	settings, err := NewDefaultLoader().Parse([]byte(jsonContent), FormatJSON)
	if err != nil {
		t.Fatalf("Failed to parse valid config: %v", err)
	}

	if len(settings.IRIs) != 1 {
		t.Fatalf("Expected 1 IRI, got %d", len(settings.IRIs))
	}
	if settings.Endpoint != DefaultEndpoint {
		t.Errorf("Expected default endpoint %q, got %q", DefaultEndpoint, settings.Endpoint)
	}
	if settings.TimeoutSeconds != 30 {
		t.Errorf("Expected default timeout 30, got %d", settings.TimeoutSeconds)
	}
	if !settings.IncludesDocuments() {
		t.Error("Expected documents to be included by default")
	}
}

func TestLoader_ValidYAML(t *testing.T) {
	yamlContent := `
iris:
  - https://example.com/dataset/a
  - https://example.com/dataset/b
endpoint: https://catalog.example.com/graphql
timeout_seconds: 10
include_documents: false
`

	settings, err := NewDefaultLoader().Parse([]byte(yamlContent), FormatYAML)
	if err != nil {
		t.Fatalf("Failed to parse valid config: %v", err)
	}

	if len(settings.IRIs) != 2 {
		t.Fatalf("Expected 2 IRIs, got %d", len(settings.IRIs))
	}
	if settings.Endpoint != "https://catalog.example.com/graphql" {
		t.Errorf("Unexpected endpoint: %q", settings.Endpoint)
	}
	if settings.TimeoutSeconds != 10 {
		t.Errorf("Expected timeout 10, got %d", settings.TimeoutSeconds)
	}
	if settings.IncludesDocuments() {
		t.Error("Expected documents to be excluded")
	}
}

func TestLoader_MissingIRIs(t *testing.T) {
	_, err := NewDefaultLoader().Parse([]byte(`{}`), FormatJSON)
	if err == nil {
		t.Fatal("Expected validation error for missing iris, got nil")
	}
	if !strings.Contains(err.Error(), "iris") {
		t.Errorf("Expected error to mention iris, got: %v", err)
	}
}

func TestLoader_BlankIRI(t *testing.T) {
	_, err := NewDefaultLoader().Parse([]byte(`{"iris": ["https://example.com/a", "  "]}`), FormatJSON)
	if err == nil {
		t.Fatal("Expected validation error for blank IRI, got nil")
	}
	if !strings.Contains(err.Error(), "iris[1]") {
		t.Errorf("Expected error to name iris[1], got: %v", err)
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("TAP_TEST_IRI", "https://example.com/dataset/env")

	settings, err := NewDefaultLoader().Parse([]byte(`{"iris": ["$TAP_TEST_IRI"]}`), FormatJSON)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if settings.IRIs[0] != "https://example.com/dataset/env" {
		t.Errorf("Expected expanded IRI, got %q", settings.IRIs[0])
	}
}

func TestLoader_LoadSelectsFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("iris:\n  - https://example.com/a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"iris": ["https://example.com/a"]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{yamlPath, jsonPath} {
		settings, err := NewDefaultLoader().Load(path)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", path, err)
		}
		if len(settings.IRIs) != 1 {
			t.Errorf("%s: expected 1 IRI, got %d", path, len(settings.IRIs))
		}
	}
}

func TestLoader_AuthValidation(t *testing.T) {
	jsonContent := `{
  "iris": ["https://example.com/a"],
  "auth": {"type": "api_key", "api_key": {"value": "secret"}}
}`

	_, err := NewDefaultLoader().Parse([]byte(jsonContent), FormatJSON)
	if err == nil {
		t.Fatal("Expected validation error for api_key auth without header or query_param")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("Expected error to mention api_key, got: %v", err)
	}
}

func TestLoader_RetryDefaults(t *testing.T) {
	jsonContent := `{
  "iris": ["https://example.com/a"],
  "retry": {"max_attempts": 3}
}`

	settings, err := NewDefaultLoader().Parse([]byte(jsonContent), FormatJSON)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if settings.Retry.InitialBackoff != 1.0 {
		t.Errorf("Expected default initial backoff 1.0, got %v", settings.Retry.InitialBackoff)
	}
	if settings.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("Expected default multiplier 2.0, got %v", settings.Retry.BackoffMultiplier)
	}
	if len(settings.Retry.RetryableStatuses) == 0 {
		t.Error("Expected default retryable statuses to be set")
	}
}

func TestLoader_InvalidRetry(t *testing.T) {
	jsonContent := `{
  "iris": ["https://example.com/a"],
  "retry": {"max_attempts": 0, "retryable_statuses": [999]}
}`

	_, err := NewDefaultLoader().Parse([]byte(jsonContent), FormatJSON)
	if err == nil {
		t.Fatal("Expected validation error for invalid retry config")
	}
}
