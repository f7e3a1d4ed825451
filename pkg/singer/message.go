package singer

import (
	"encoding/json"
	"io"
	"time"
)

// Message type constants per the Singer specification.
const (
	MessageTypeSchema = "SCHEMA"
	MessageTypeRecord = "RECORD"
	MessageTypeState  = "STATE"
)

// SchemaMessage declares a stream's schema before its records.
type SchemaMessage struct {
	Type          string   `json:"type"`
	Stream        string   `json:"stream"`
	Schema        *Schema  `json:"schema"`
	KeyProperties []string `json:"key_properties"`
}

// RecordMessage carries one extracted record.
type RecordMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted,omitempty"`
}

// StateMessage carries the tap's bookmark state.
type StateMessage struct {
	Type  string                 `json:"type"`
	Value map[string]interface{} `json:"value"`
}

// Writer emits Singer messages as JSON lines.
type Writer struct {
	enc *json.Encoder
}

// NewWriter creates a Writer emitting to w (stdout in production).
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// WriteSchema emits a SCHEMA message.
func (w *Writer) WriteSchema(stream string, schema *Schema, keyProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return w.enc.Encode(SchemaMessage{
		Type:          MessageTypeSchema,
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	})
}

// WriteRecord emits a RECORD message stamped with the extraction time.
func (w *Writer) WriteRecord(stream string, record map[string]interface{}, extracted time.Time) error {
	msg := RecordMessage{
		Type:   MessageTypeRecord,
		Stream: stream,
		Record: record,
	}
	if !extracted.IsZero() {
		msg.TimeExtracted = extracted.UTC().Format(time.RFC3339)
	}
	return w.enc.Encode(msg)
}

// WriteState emits a STATE message.
func (w *Writer) WriteState(value map[string]interface{}) error {
	if value == nil {
		value = map[string]interface{}{}
	}
	return w.enc.Encode(StateMessage{
		Type:  MessageTypeState,
		Value: value,
	})
}
