package govdata

import (
	"strings"

	"github.com/gosimple/slug"

	"github.com/saturnines/tap-govdata/pkg/singer"
)

// Distribution is one distribution of a catalog dataset.
type Distribution struct {
	AccessURL  string // Where the data lives
	ConformsTo string // CSVW table schema URL
}

// Dataset is the catalog metadata for one dataset.
type Dataset struct {
	IRI                string
	Title              string
	Description        string
	AccrualPeriodicity string
	Documentation      string
	IsPartOf           string
	Distribution       []Distribution
}

// TitleSlug returns the slugified dataset title, used as a stream name.
func (d *Dataset) TitleSlug() string {
	return strings.ReplaceAll(slug.Make(d.Title), "-", "_")
}

// DocumentColumn is one column of a CSVW table schema.
type DocumentColumn struct {
	Name        string `json:"name"`
	Titles      string `json:"titles"`
	Description string `json:"dc:description"`
	Required    bool   `json:"required"`
	Datatype    string `json:"datatype"`
}

// Property converts the column into a Singer schema property.
func (c DocumentColumn) Property() singer.Property {
	var s *singer.Schema
	switch c.Datatype {
	case "date":
		s = singer.DateType()
	case "number":
		s = singer.NumberType()
	case "integer":
		s = singer.IntegerType()
	case "boolean":
		s = singer.BooleanType()
	default:
		s = singer.StringType()
	}
	s.Description = c.Description

	return singer.Property{
		Name:     c.Name,
		Schema:   s,
		Required: c.Required,
	}
}

// DocumentSchema is the CSVW table schema of a dataset distribution.
type DocumentSchema struct {
	PrimaryKey string           `json:"primaryKey"`
	Columns    []DocumentColumn `json:"columns"`
}

// ObjectSchema converts the table schema into a Singer stream schema.
func (s *DocumentSchema) ObjectSchema() *singer.Schema {
	props := make([]singer.Property, 0, len(s.Columns))
	for _, column := range s.Columns {
		props = append(props, column.Property())
	}
	return singer.ObjectSchema(props...)
}
