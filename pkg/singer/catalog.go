package singer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Catalog is the discovery document listing available streams.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one discoverable stream.
type CatalogEntry struct {
	TapStreamID   string     `json:"tap_stream_id"`
	Stream        string     `json:"stream"`
	Schema        *Schema    `json:"schema"`
	KeyProperties []string   `json:"key_properties"`
	Metadata      []Metadata `json:"metadata,omitempty"`
}

// Metadata is a breadcrumb-scoped metadata entry.
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NewStreamMetadata builds the standard root metadata for a stream.
func NewStreamMetadata(selected bool) []Metadata {
	return []Metadata{
		{
			Breadcrumb: []string{},
			Metadata: map[string]interface{}{
				"selected":  selected,
				"inclusion": "available",
			},
		},
	}
}

// IsSelected reports whether the stream should sync. Streams without
// root metadata or without an explicit "selected" flag default to true.
func (e *CatalogEntry) IsSelected() bool {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 0 {
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok {
			return selected
		}
	}
	return true
}

// Get finds a stream entry by its tap_stream_id.
func (c *Catalog) Get(streamID string) (*CatalogEntry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == streamID {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// Write renders the catalog document as indented JSON.
func (c *Catalog) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// ReadCatalog loads a catalog document from a file.
func ReadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return &catalog, nil
}

// ReadState loads an initial state document from a file.
func ReadState(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state map[string]interface{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}
	return state, nil
}
