package singer

// Schema is a minimal JSON Schema document, enough to declare Singer
// stream schemas.
type Schema struct {
	Type        []string           `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// StringType returns a fresh string schema.
func StringType() *Schema { return &Schema{Type: []string{"string"}} }

// DateType returns a string schema with date format.
func DateType() *Schema { return &Schema{Type: []string{"string"}, Format: "date"} }

// DateTimeType returns a string schema with date-time format.
func DateTimeType() *Schema { return &Schema{Type: []string{"string"}, Format: "date-time"} }

// NumberType returns a fresh number schema.
func NumberType() *Schema { return &Schema{Type: []string{"number"}} }

// IntegerType returns a fresh integer schema.
func IntegerType() *Schema { return &Schema{Type: []string{"integer"}} }

// BooleanType returns a fresh boolean schema.
func BooleanType() *Schema { return &Schema{Type: []string{"boolean"}} }

// Property declares one named field of an object schema.
type Property struct {
	Name     string
	Schema   *Schema
	Required bool
}

// ObjectSchema assembles an object schema from properties. Optional
// properties get a "null" variant added to their type list.
func ObjectSchema(props ...Property) *Schema {
	s := &Schema{
		Type:       []string{"object"},
		Properties: make(map[string]*Schema, len(props)),
	}

	for _, p := range props {
		child := p.Schema
		if child == nil {
			child = StringType()
		}
		if p.Required {
			s.Required = append(s.Required, p.Name)
		} else if !hasNull(child.Type) {
			child.Type = append(child.Type, "null")
		}
		s.Properties[p.Name] = child
	}

	return s
}

func hasNull(types []string) bool {
	for _, t := range types {
		if t == "null" {
			return true
		}
	}
	return false
}
