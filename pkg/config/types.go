package config

// Settings represents the full tap configuration.
type Settings struct {
	IRIs             []string          `json:"iris" yaml:"iris"`                                             // Required: dataset IRIs to extract
	Endpoint         string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`                 // Catalog GraphQL endpoint
	UserAgent        string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`             // Optional User-Agent header
	TimeoutSeconds   int               `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`   // HTTP timeout (default 30)
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`                   // Extra HTTP headers
	Auth             *Auth             `json:"auth,omitempty" yaml:"auth,omitempty"`                         // Optional authentication
	Retry            *Retry            `json:"retry,omitempty" yaml:"retry,omitempty"`                       // Optional retry policy
	IncludeDocuments *bool             `json:"include_documents,omitempty" yaml:"include_documents,omitempty"` // Sync distribution rows too (default true)
}

// IncludesDocuments reports whether per-dataset document streams are enabled.
func (s *Settings) IncludesDocuments() bool {
	return s.IncludeDocuments == nil || *s.IncludeDocuments
}

// Auth defines auth methods.
type Auth struct {
	Type   AuthType    `json:"type" yaml:"type"`                           // Required authentication type
	Basic  *BasicAuth  `json:"basic,omitempty" yaml:"basic,omitempty"`     // Basic authentication
	Bearer *BearerAuth `json:"bearer,omitempty" yaml:"bearer,omitempty"`   // Bearer token authentication
	APIKey *APIKeyAuth `json:"api_key,omitempty" yaml:"api_key,omitempty"` // API key authentication
}

// AuthType defines current supported authentication types
type AuthType string

const (
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "api_key"
)

// BasicAuth contains auth credentials for the catalog
type BasicAuth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// BearerAuth contains a static bearer token
type BearerAuth struct {
	Token string `json:"token" yaml:"token"`
}

// APIKeyAuth contains API key details
type APIKeyAuth struct {
	Header     string `json:"header,omitempty" yaml:"header,omitempty"`           // Header name
	QueryParam string `json:"query_param,omitempty" yaml:"query_param,omitempty"` // Query parameter name
	Value      string `json:"value" yaml:"value"`                                 // API key value
}

// Retry configures the retry transport for catalog and distribution requests
type Retry struct {
	MaxAttempts       int     `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff    float64 `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`       // Seconds
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty" yaml:"backoff_multiplier,omitempty"` // Per-attempt multiplier
	RetryableStatuses []int   `json:"retryable_statuses,omitempty" yaml:"retryable_statuses,omitempty"` // Statuses worth retrying
}
