package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the on-disk encoding of a settings file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type ValidationError struct {
	Field   string
	Message string
}

// Returns the string representation of validation error
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator checks a parsed Settings for problems
type Validator interface {
	Validate(settings *Settings) []ValidationError
}

// DefaultValueSetter handles the interface for setting default values
type DefaultValueSetter interface {
	SetDefaults(settings *Settings)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// Loader parses Settings files with expansion, defaults and validation
type Loader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

// NewLoader creates a new Loader with the given components
func NewLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *Loader {
	return &Loader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// NewDefaultLoader wires the expander, defaults and validators used by the tap CLI.
func NewDefaultLoader() *Loader {
	return NewLoader(
		&EnvExpander{},
		&SettingsDefaults{},
		&RequiredFieldValidator{},
		&AuthValidator{},
		&RetryValidator{},
	)
}

// Load reads a settings file. The format is chosen by file extension:
// .yaml/.yml parse as YAML, anything else as JSON (the Singer convention).
func (l *Loader) Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	return l.Parse(data, format)
}

// Parse parses raw settings data in the given format
func (l *Loader) Parse(data []byte, format Format) (*Settings, error) {
	// Expand variables if an expander is configured
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var settings Settings
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	// Set default values if a default setter is configured
	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(&settings)
	}

	// Validate the settings
	var allErrors []ValidationError
	for _, validator := range l.validators {
		errs := validator.Validate(&settings)
		allErrors = append(allErrors, errs...)
	}

	if len(allErrors) > 0 {
		return nil, fmt.Errorf("validation errors: %v", allErrors)
	}

	return &settings, nil
}

// DefaultEndpoint is the national catalog GraphQL endpoint.
const DefaultEndpoint = "https://data.gov.cz/graphql"

// SettingsDefaults implements DefaultValueSetter for Settings
type SettingsDefaults struct{}

// SetDefaults sets default values for Settings
func (d *SettingsDefaults) SetDefaults(settings *Settings) {
	if settings.Endpoint == "" {
		settings.Endpoint = DefaultEndpoint
	}

	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}

	if settings.Retry != nil {
		if settings.Retry.InitialBackoff <= 0 {
			settings.Retry.InitialBackoff = 1.0
		}
		if settings.Retry.BackoffMultiplier <= 0 {
			settings.Retry.BackoffMultiplier = 2.0
		}
		if len(settings.Retry.RetryableStatuses) == 0 {
			settings.Retry.RetryableStatuses = []int{429, 500, 502, 503, 504}
		}
	}
}

// RequiredFieldValidator validates required fields for the tap
type RequiredFieldValidator struct{}

// Validate checks that all required fields are present
func (v *RequiredFieldValidator) Validate(settings *Settings) []ValidationError {
	var errs []ValidationError

	if len(settings.IRIs) == 0 {
		errs = append(errs, ValidationError{Field: "iris", Message: "at least one IRI is required"})
	}

	for i, iri := range settings.IRIs {
		if strings.TrimSpace(iri) == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("iris[%d]", i), Message: "must not be blank"})
		}
	}

	if settings.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "endpoint", Message: "is required"})
	}

	return errs
}

// AuthValidator handles authentication validation
type AuthValidator struct{}

// Validate checks that authentication configuration is valid
func (v *AuthValidator) Validate(settings *Settings) []ValidationError {
	var errs []ValidationError

	// Skip validation if auth is not configured
	if settings.Auth == nil {
		return errs
	}

	switch settings.Auth.Type {
	case AuthTypeBasic:
		if settings.Auth.Basic == nil {
			errs = append(errs, ValidationError{Field: "auth.basic", Message: "is required for basic auth"})
		} else {
			if settings.Auth.Basic.Username == "" {
				errs = append(errs, ValidationError{Field: "auth.basic.username", Message: "is required for basic auth"})
			}
			if settings.Auth.Basic.Password == "" {
				errs = append(errs, ValidationError{Field: "auth.basic.password", Message: "is required for basic auth"})
			}
		}
	case AuthTypeBearer:
		if settings.Auth.Bearer == nil || settings.Auth.Bearer.Token == "" {
			errs = append(errs, ValidationError{Field: "auth.bearer.token", Message: "is required for bearer auth"})
		}
	case AuthTypeAPIKey:
		if settings.Auth.APIKey == nil {
			errs = append(errs, ValidationError{Field: "auth.api_key", Message: "is required for api_key auth"})
		} else {
			if settings.Auth.APIKey.Value == "" {
				errs = append(errs, ValidationError{Field: "auth.api_key.value", Message: "is required for api_key auth"})
			}
			if settings.Auth.APIKey.Header == "" && settings.Auth.APIKey.QueryParam == "" {
				errs = append(errs, ValidationError{Field: "auth.api_key", Message: "either header or query_param must be specified for api_key auth"})
			}
		}
	default:
		errs = append(errs, ValidationError{Field: "auth.type", Message: fmt.Sprintf("unknown auth type: %s", settings.Auth.Type)})
	}

	return errs
}

// RetryValidator validates the retry policy
type RetryValidator struct{}

// Validate checks that the retry configuration is sane
func (v *RetryValidator) Validate(settings *Settings) []ValidationError {
	var errs []ValidationError

	if settings.Retry == nil {
		return errs
	}

	if settings.Retry.MaxAttempts <= 0 {
		errs = append(errs, ValidationError{Field: "retry.max_attempts", Message: "must be positive"})
	}
	for _, status := range settings.Retry.RetryableStatuses {
		if status < 100 || status > 599 {
			errs = append(errs, ValidationError{Field: "retry.retryable_statuses", Message: fmt.Sprintf("invalid status code: %d", status)})
		}
	}

	return errs
}
