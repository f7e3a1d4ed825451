package tap

import (
	"time"

	"github.com/saturnines/tap-govdata/pkg/govdata"
	"github.com/saturnines/tap-govdata/pkg/singer"
)

// MetadataStreamID is the tap_stream_id of the dataset metadata stream.
const MetadataStreamID = "datasets"

// datasetIRIMetadataKey carries the configured IRI in catalog metadata
// so downstream tooling can trace a document stream back to its source.
const datasetIRIMetadataKey = "tap-govdata.dataset-iri"

// MetadataSchema declares the schema of the dataset metadata stream.
func MetadataSchema() *singer.Schema {
	return singer.ObjectSchema(
		singer.Property{Name: "iri", Schema: singer.StringType(), Required: true},
		singer.Property{Name: "title", Schema: singer.StringType(), Required: true},
		singer.Property{Name: "description", Schema: singer.StringType(), Required: true},
		singer.Property{Name: "accrual_periodicity", Schema: singer.StringType()},
		singer.Property{Name: "documentation", Schema: singer.StringType()},
		singer.Property{Name: "is_part_of", Schema: singer.StringType()},
		singer.Property{Name: "access_url", Schema: singer.StringType()},
		singer.Property{Name: "conforms_to", Schema: singer.StringType()},
		singer.Property{Name: "retrieved_at", Schema: singer.DateTimeType(), Required: true},
	)
}

// metadataRecord flattens a dataset into one metadata stream record.
func metadataRecord(ds *govdata.Dataset, retrieved time.Time) map[string]interface{} {
	record := map[string]interface{}{
		"iri":          ds.IRI,
		"title":        ds.Title,
		"description":  ds.Description,
		"retrieved_at": retrieved.UTC().Format(time.RFC3339),
	}

	setOptional := func(key, value string) {
		if value != "" {
			record[key] = value
		} else {
			record[key] = nil
		}
	}
	setOptional("accrual_periodicity", ds.AccrualPeriodicity)
	setOptional("documentation", ds.Documentation)
	setOptional("is_part_of", ds.IsPartOf)
	setOptional("access_url", ds.Distribution[0].AccessURL)
	setOptional("conforms_to", ds.Distribution[0].ConformsTo)

	return record
}

// documentKeyProperties returns the key properties declared by a CSVW
// table schema.
func documentKeyProperties(schema *govdata.DocumentSchema) []string {
	if schema.PrimaryKey == "" {
		return []string{}
	}
	return []string{schema.PrimaryKey}
}
